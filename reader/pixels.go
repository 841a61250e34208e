package reader

import (
	"fmt"
	"image"
	"image/color"
)

// PixelLayout describes how an uncompressed pixel buffer is packed.
type PixelLayout int

const (
	// Gray1 packs 8 bi-level pixels per byte, most significant bit first.
	// A 0 bit is black. Rows are padded to a whole byte.
	Gray1 PixelLayout = iota
	// Gray4 packs two pixels per byte, high nibble first.
	Gray4
	// Gray8 stores one byte per pixel.
	Gray8
	// RGB stores three bytes per pixel.
	RGB
	// CMYK stores four bytes per pixel.
	CMYK
)

// String returns the layout name.
func (l PixelLayout) String() string {
	switch l {
	case Gray1:
		return "gray1"
	case Gray4:
		return "gray4"
	case Gray8:
		return "gray8"
	case RGB:
		return "rgb"
	case CMYK:
		return "cmyk"
	default:
		return fmt.Sprintf("PixelLayout(%d)", int(l))
	}
}

// ParsePixelLayout returns the layout with the given name.
func ParsePixelLayout(name string) (PixelLayout, error) {
	for l := Gray1; l <= CMYK; l++ {
		if l.String() == name {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown pixel layout %q", ErrInvalidImage, name)
}

// FromPixels converts a raw pixel buffer to an image. Gray layouts give an
// *image.Gray, RGB and CMYK an opaque *image.RGBA.
func FromPixels(data []byte, width, height int, layout PixelLayout) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrInvalidImage, width, height)
	}

	switch layout {
	case Gray1:
		return bilevelGray(data, width, height)
	case Gray4:
		return nibbleGray(data, width, height)
	case Gray8:
		if err := checkSize(data, width*height, layout); err != nil {
			return nil, err
		}
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, data[:width*height])
		return img, nil
	case RGB:
		return rgbImage(data, width, height)
	case CMYK:
		return cmykImage(data, width, height)
	default:
		return nil, fmt.Errorf("%w: unsupported pixel layout %v", ErrInvalidImage, layout)
	}
}

func checkSize(data []byte, expected int, layout PixelLayout) error {
	if len(data) < expected {
		return fmt.Errorf("%w: insufficient data for %v image: got %d, expected %d", ErrInvalidImage, layout, len(data), expected)
	}
	return nil
}

func bilevelGray(data []byte, width, height int) (*image.Gray, error) {
	bytesPerRow := (width + 7) / 8
	if err := checkSize(data, bytesPerRow*height, Gray1); err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := data[y*bytesPerRow:]
		for x := 0; x < width; x++ {
			bit := (row[x/8] >> (7 - x%8)) & 1
			if bit == 1 {
				img.Pix[y*width+x] = 255
			}
		}
	}
	return img, nil
}

func nibbleGray(data []byte, width, height int) (*image.Gray, error) {
	bytesPerRow := (width + 1) / 2
	if err := checkSize(data, bytesPerRow*height, Gray4); err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		row := data[y*bytesPerRow:]
		for x := 0; x < width; x++ {
			nibble := row[x/2] & 0x0F
			if x%2 == 0 {
				nibble = row[x/2] >> 4
			}
			img.Pix[y*width+x] = nibble * 17
		}
	}
	return img, nil
}

func rgbImage(data []byte, width, height int) (*image.RGBA, error) {
	if err := checkSize(data, width*height*3, RGB); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		copy(img.Pix[i*4:i*4+3], data[i*3:i*3+3])
		img.Pix[i*4+3] = 255
	}
	return img, nil
}

func cmykImage(data []byte, width, height int) (*image.RGBA, error) {
	if err := checkSize(data, width*height*4, CMYK); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		p := data[i*4 : i*4+4]
		r, g, b := color.CMYKToRGB(p[0], p[1], p[2], p[3])
		img.Pix[i*4+0] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
		img.Pix[i*4+3] = 255
	}
	return img, nil
}
