package tensor

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Channels returns the number of channels the pipeline reads from an image.
// Grayscale and alpha-only images have one channel, CMYK images four and
// every other color model three (RGB, alpha is dropped).
func Channels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16, *image.Alpha, *image.Alpha16:
		return 1
	case *image.CMYK:
		return 4
	default:
		switch img.ColorModel() {
		case color.GrayModel, color.Gray16Model:
			return 1
		case color.CMYKModel:
			return 4
		}
		return 3
	}
}

// FromImage converts an image to an (H, W, C) tensor with values scaled to
// [0, 1]. The channel count follows [Channels].
func FromImage(img image.Image) *Tensor {
	b := img.Bounds()
	c := Channels(img)
	out := New(b.Dy(), b.Dx(), c)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			for _, v := range pixel(img, x, y, c) {
				out.data[i] = v
				i++
			}
		}
	}
	return out
}

// pixel returns the c channel values of a pixel in [0, 1]
func pixel(img image.Image, x, y, c int) []float32 {
	switch c {
	case 1:
		g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
		return []float32{float32(g.Y) / 0xffff}
	case 4:
		k := color.CMYKModel.Convert(img.At(x, y)).(color.CMYK)
		return []float32{float32(k.C) / 255, float32(k.M) / 255, float32(k.Y) / 255, float32(k.K) / 255}
	default:
		r, g, b, _ := img.At(x, y).RGBA()
		return []float32{float32(r) / 0xffff, float32(g) / 0xffff, float32(b) / 0xffff}
	}
}

// ToImage converts an (H, W, C) tensor with values in [0, 1] back to an
// image. One-channel tensors produce *image.Gray16, three-channel tensors
// *image.RGBA64. Values outside [0, 1] are clamped.
func ToImage(t *Tensor) (image.Image, error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("%w: expected (H, W, C), got %v", ErrShape, t.shape)
	}
	h, w, c := t.shape[0], t.shape[1], t.shape[2]
	switch c {
	case 1:
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, y, color.Gray16{Y: to16(t.data[y*w+x])})
			}
		}
		return img, nil
	case 3:
		img := image.NewRGBA64(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				img.SetRGBA64(x, y, color.RGBA64{
					R: to16(t.data[i]),
					G: to16(t.data[i+1]),
					B: to16(t.data[i+2]),
					A: 0xffff,
				})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrShape, c)
	}
}

func to16(v float32) uint16 {
	v = float32(math.Max(0, math.Min(1, float64(v))))
	return uint16(math.Round(float64(v) * 0xffff))
}
