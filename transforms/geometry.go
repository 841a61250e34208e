package transforms

import (
	"fmt"
	"image"
	"math"
	"math/rand"

	"golang.org/x/image/draw"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
	"github.com/publicMindee/doctr/tensor"
)

// Resize scales an (H, W, C) image with one or three channels to
// OutputSize (height, width). With PreserveAspectRatio the image is scaled
// to fit and zero-padded on the right and bottom. Values are clamped to
// [0, 1] and resampled at 16-bit precision.
type Resize struct {
	OutputSize          [2]int
	Method              preprocess.Interpolation
	PreserveAspectRatio bool

	scaler draw.Scaler
}

// NewResize returns a Resize transform.
func NewResize(outputSize [2]int, method preprocess.Interpolation, preserveAspectRatio bool) (*Resize, error) {
	if outputSize[0] <= 0 || outputSize[1] <= 0 {
		return nil, fmt.Errorf("%w: output size must be positive, got %v", nn.ErrInvalidConfig, outputSize)
	}
	if method == "" {
		method = preprocess.Bilinear
	}
	scaler, ok := method.Scaler()
	if !ok {
		return nil, fmt.Errorf("%w: unknown interpolation %q", nn.ErrInvalidConfig, method)
	}
	return &Resize{
		OutputSize:          outputSize,
		Method:              method,
		PreserveAspectRatio: preserveAspectRatio,
		scaler:              scaler,
	}, nil
}

// Apply implements Transform.
func (r *Resize) Apply(img *tensor.Tensor, _ *rand.Rand) *tensor.Tensor {
	src, err := tensor.ToImage(img)
	if err != nil {
		panic(fmt.Sprintf("transforms: Resize: %v", err))
	}

	h, w := r.OutputSize[0], r.OutputSize[1]
	target := image.Rect(0, 0, w, h)
	if r.PreserveAspectRatio {
		scale := math.Min(float64(h)/float64(img.Dim(0)), float64(w)/float64(img.Dim(1)))
		nw := max(1, min(w, int(math.Round(float64(img.Dim(1))*scale))))
		nh := max(1, min(h, int(math.Round(float64(img.Dim(0))*scale))))
		target = image.Rect(0, 0, nw, nh)
	}

	var dst draw.Image
	if img.Dim(2) == 1 {
		dst = image.NewGray16(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA64(image.Rect(0, 0, w, h))
	}
	r.scaler.Scale(dst, target, src, src.Bounds(), draw.Src, nil)

	return tensor.FromImage(dst)
}

func (r *Resize) String() string {
	return fmt.Sprintf("Resize(output_size=(%d, %d), method='%s')", r.OutputSize[0], r.OutputSize[1], r.Method)
}

// Normalize standardizes every channel: (x - mean) / std.
type Normalize struct {
	Mean []float32
	Std  []float32
}

// NewNormalize returns a Normalize transform. Mean and std must have the
// same length and std must not contain zeros.
func NewNormalize(mean, std []float32) (*Normalize, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, fmt.Errorf("%w: mean and std must have the same non-zero length", nn.ErrInvalidConfig)
	}
	for _, s := range std {
		if s == 0 {
			return nil, fmt.Errorf("%w: std must be non-zero", nn.ErrInvalidConfig)
		}
	}
	return &Normalize{
		Mean: append([]float32(nil), mean...),
		Std:  append([]float32(nil), std...),
	}, nil
}

// Apply implements Transform. The channel count must match the mean length.
func (n *Normalize) Apply(img *tensor.Tensor, _ *rand.Rand) *tensor.Tensor {
	c := channels(img)
	if c != len(n.Mean) {
		panic(fmt.Sprintf("transforms: Normalize: %d channels for %d means", c, len(n.Mean)))
	}
	out := img.Clone()
	data := out.Data()
	for i := range data {
		data[i] = (data[i] - n.Mean[i%c]) / n.Std[i%c]
	}
	return out
}

func (n *Normalize) String() string {
	return fmt.Sprintf("Normalize(mean=%v, std=%v)", n.Mean, n.Std)
}
