package recognition

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// ExtractCrops cuts the regions given in relative coordinates out of a page.
// Boxes are clipped to the page and every crop is at least one pixel wide
// and high. Crops share pixels with the page when its type allows it.
func ExtractCrops(page image.Image, boxes []model.BBox) ([]image.Image, error) {
	if page == nil || page.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty page", nn.ErrInvalidInput)
	}

	b := page.Bounds()
	crops := make([]image.Image, len(boxes))
	for i, box := range boxes {
		if box.Max.X < box.Min.X || box.Max.Y < box.Min.Y {
			return nil, fmt.Errorf("%w: box %d has negative size", nn.ErrInvalidInput, i)
		}
		box = box.Clip()
		r := image.Rect(
			int(math.Round(box.Min.X*float64(b.Dx()))),
			int(math.Round(box.Min.Y*float64(b.Dy()))),
			int(math.Round(box.Max.X*float64(b.Dx()))),
			int(math.Round(box.Max.Y*float64(b.Dy()))),
		)
		r = atLeastOnePixel(r, b.Dx(), b.Dy()).Add(b.Min)
		crops[i] = crop(page, r)
	}
	return crops, nil
}

func atLeastOnePixel(r image.Rectangle, w, h int) image.Rectangle {
	if r.Dx() == 0 {
		if r.Max.X < w {
			r.Max.X++
		} else {
			r.Min.X--
		}
	}
	if r.Dy() == 0 {
		if r.Max.Y < h {
			r.Max.Y++
		} else {
			r.Min.Y--
		}
	}
	return r
}

func crop(page image.Image, r image.Rectangle) image.Image {
	if s, ok := page.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), page, r.Min, draw.Src)
	return dst
}
