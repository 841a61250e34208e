package reader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/publicMindee/doctr/internal/pdf"
)

// blankDPI is the resolution of the white page produced for PDF pages that
// paint no image
const blankDPI = 150

func openPDF(data []byte) (*pdf.Document, []pdf.Page, error) {
	doc, err := pdf.Open(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(pages) == 0 {
		return nil, nil, fmt.Errorf("%w: PDF has no pages", ErrInvalidImage)
	}
	return doc, pages, nil
}

func countPDFPages(data []byte) (int, error) {
	_, pages, err := openPDF(data)
	return len(pages), err
}

// readPDF returns the largest image painted on each page, turned by the
// page rotation. Pages without an image come out blank.
func readPDF(data []byte, o options) ([]*image.RGBA, error) {
	doc, pages, err := openPDF(data)
	if err != nil {
		return nil, err
	}
	if o.maxPages > 0 && len(pages) > o.maxPages {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyPages, len(pages), o.maxPages)
	}

	out := make([]*image.RGBA, 0, len(pages))
	for i, p := range pages {
		src, err := pdfPage(doc, p, o)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		src = rotate(src, p.Rotate)
		img, err := toPage(src, o)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		out = append(out, img)
	}
	return out, nil
}

func pdfPage(doc *pdf.Document, p pdf.Page, o options) (image.Image, error) {
	var largest *pdf.Image
	for _, img := range doc.Images(p) {
		if largest == nil || img.Width*img.Height > largest.Width*largest.Height {
			largest = img
		}
	}

	if largest == nil {
		w, h := p.Size()
		pw, ph := int(w*blankDPI/72), int(h*blankDPI/72)
		if pw <= 0 || ph <= 0 {
			return nil, fmt.Errorf("%w: page size %gx%g", ErrInvalidImage, w, h)
		}
		if err := o.checkPixels(pw, ph); err != nil {
			return nil, err
		}
		blank := image.NewGray(image.Rect(0, 0, pw, ph))
		for i := range blank.Pix {
			blank.Pix[i] = 0xff
		}
		return blank, nil
	}

	if err := o.checkPixels(largest.Width, largest.Height); err != nil {
		return nil, err
	}
	return decodePDFImage(largest, o)
}

// decodePDFImage decodes JPEG data directly and hands raw samples to
// FromPixels
func decodePDFImage(img *pdf.Image, o options) (image.Image, error) {
	data, err := img.Samples()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	switch img.Codec {
	case "":
	case "DCTDecode":
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: image %s: %v", ErrInvalidImage, img.Name, err)
		}
		if err := o.checkPixels(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
		src, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: image %s: %v", ErrInvalidImage, img.Name, err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: image %s uses unsupported %s", ErrInvalidImage, img.Name, img.Codec)
	}

	var layout PixelLayout
	switch {
	case img.Components == 1 && img.BitsPerComponent == 1:
		layout = Gray1
	case img.Components == 1 && img.BitsPerComponent == 4:
		layout = Gray4
	case img.Components == 1 && img.BitsPerComponent == 8:
		layout = Gray8
	case img.Components == 3 && img.BitsPerComponent == 8:
		layout = RGB
	case img.Components == 4 && img.BitsPerComponent == 8:
		layout = CMYK
	default:
		return nil, fmt.Errorf("%w: image %s has %d components at %d bits", ErrInvalidImage, img.Name, img.Components, img.BitsPerComponent)
	}
	return FromPixels(data, img.Width, img.Height, layout)
}

// rotate turns src clockwise by a multiple of 90 degrees
func rotate(src image.Image, degrees int) image.Image {
	if degrees%360 == 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	var at func(x, y int) (int, int)
	switch degrees % 360 {
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		at = func(x, y int) (int, int) { return h - 1 - y, x }
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		at = func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
		at = func(x, y int) (int, int) { return y, w - 1 - x }
	default:
		return src
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := at(x, y)
			dst.SetRGBA(dx, dy, color.RGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA))
		}
	}
	return dst
}
