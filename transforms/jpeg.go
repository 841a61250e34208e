package transforms

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"math/rand"

	"github.com/publicMindee/doctr/tensor"
)

// RandomJpegQuality re-encodes the image as JPEG with a quality drawn in
// [MinQuality, 100], adding compression artifacts.
type RandomJpegQuality struct {
	MinQuality int
}

// NewRandomJpegQuality returns a RandomJpegQuality. The usual value is 60.
func NewRandomJpegQuality(minQuality int) *RandomJpegQuality {
	return &RandomJpegQuality{MinQuality: max(1, min(100, minQuality))}
}

// Apply implements Transform. The image must be (H, W, C) with one or three
// channels.
func (j *RandomJpegQuality) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	quality := j.MinQuality + intn(rng, 101-j.MinQuality)

	src, err := tensor.ToImage(img)
	if err != nil {
		panic(fmt.Sprintf("transforms: RandomJpegQuality: %v", err))
	}
	// grayscale JPEGs are only written from *image.Gray
	if img.Dim(2) == 1 {
		gray := image.NewGray(src.Bounds())
		draw.Draw(gray, gray.Bounds(), src, image.Point{}, draw.Src)
		src = gray
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		panic(fmt.Sprintf("transforms: RandomJpegQuality: %v", err))
	}
	decoded, err := jpeg.Decode(&buf)
	if err != nil {
		panic(fmt.Sprintf("transforms: RandomJpegQuality: %v", err))
	}
	return tensor.FromImage(decoded)
}

func (j *RandomJpegQuality) String() string {
	return fmt.Sprintf("RandomJpegQuality(min_quality=%d)", j.MinQuality)
}
