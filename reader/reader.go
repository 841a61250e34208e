package reader

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/publicMindee/doctr/format"
)

// DefaultMaxPixels is the largest page, in pixels, read unless WithMaxPixels
// says otherwise. It fits an A4 page scanned at 600 dpi.
const DefaultMaxPixels = 40_000_000

// DefaultMaxPages is the largest number of PDF pages read unless
// WithMaxPages says otherwise.
const DefaultMaxPages = 100

var (
	// ErrInvalidImage is returned when content cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")

	// ErrTooLarge is returned for pages with more pixels than allowed. It
	// also matches ErrInvalidImage.
	ErrTooLarge = fmt.Errorf("%w: too many pixels", ErrInvalidImage)

	// ErrTooManyPages is returned for documents with more pages than
	// allowed. It also matches ErrInvalidImage.
	ErrTooManyPages = fmt.Errorf("%w: too many pages", ErrInvalidImage)

	// ErrMultiPage is returned when a multi-page document is given where a
	// single image is expected. It also matches ErrInvalidImage.
	ErrMultiPage = fmt.Errorf("%w: document has several pages", ErrInvalidImage)
)

// Option configures how a page is read.
type Option func(*options)

type options struct {
	height, width int
	bgr           bool
	maxPixels     int
	maxPages      int
}

func newOptions(opts []Option) options {
	o := options{maxPixels: DefaultMaxPixels, maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithSize resizes the decoded page to exactly height x width pixels.
// Non-positive values leave the page at its original size.
func WithSize(height, width int) Option {
	return func(o *options) {
		o.height = height
		o.width = width
	}
}

// WithBGR returns pages with the red and blue channels swapped.
func WithBGR() Option {
	return func(o *options) {
		o.bgr = true
	}
}

// WithMaxPixels rejects pages larger than n pixels before they are
// decoded. n <= 0 removes the limit.
func WithMaxPixels(n int) Option {
	return func(o *options) {
		o.maxPixels = n
	}
}

// WithMaxPages rejects PDF documents with more than n pages. n <= 0
// removes the limit.
func WithMaxPages(n int) Option {
	return func(o *options) {
		o.maxPages = n
	}
}

// checkPixels fails when a w x h page exceeds the limit
func (o options) checkPixels(w, h int) error {
	if o.maxPixels > 0 && w > 0 && h > 0 && w > o.maxPixels/h {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrTooLarge, w, h, o.maxPixels)
	}
	return nil
}

// ReadImage reads the image file at path. A PDF holding a single page is
// accepted too.
func ReadImage(path string, opts ...Option) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := ReadImageBytes(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ReadImageBytes decodes an encoded image held in memory. A PDF with more
// than one page yields ErrMultiPage.
func ReadImageBytes(data []byte, opts ...Option) (*image.RGBA, error) {
	pages, err := ReadPagesBytes(data, opts...)
	if err != nil {
		return nil, err
	}
	if len(pages) != 1 {
		return nil, fmt.Errorf("%w: got %d pages", ErrMultiPage, len(pages))
	}
	return pages[0], nil
}

// ReadPages reads every page of the file at path: one page for an image,
// one per page for a PDF.
func ReadPages(path string, opts ...Option) ([]*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	pages, err := ReadPagesBytes(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pages, nil
}

// ReadPagesBytes is ReadPages for content held in memory.
func ReadPagesBytes(data []byte, opts ...Option) ([]*image.RGBA, error) {
	o := newOptions(opts)

	switch format.DetectFromMagic(data) {
	case format.PDF:
		return readPDF(data, o)
	case format.Unknown:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: empty content", ErrInvalidImage)
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := o.checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img, err := toPage(src, o)
	if err != nil {
		return nil, err
	}
	return []*image.RGBA{img}, nil
}

// CountPages returns the number of pages ReadPages would return, without
// decoding any pixels.
func CountPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	kind, err := format.DetectFromReader(f)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if kind != format.PDF {
		return 1, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	n, err := countPDFPages(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// FromImages reads every path in order and fails on the first unreadable
// file. PDF files contribute all of their pages.
func FromImages(paths ...string) ([]image.Image, error) {
	pages := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		imgs, err := ReadPages(path)
		if err != nil {
			return nil, err
		}
		for _, img := range imgs {
			pages = append(pages, img)
		}
	}
	return pages, nil
}

// toPage copies src into an opaque RGBA page, resized when requested
func toPage(src image.Image, o options) (*image.RGBA, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrInvalidImage)
	}

	var img *image.RGBA
	if o.height > 0 && o.width > 0 && (o.height != b.Dy() || o.width != b.Dx()) {
		img = image.NewRGBA(image.Rect(0, 0, o.width, o.height))
		xdraw.BiLinear.Scale(img, img.Bounds(), src, b, draw.Src, nil)
	} else {
		img = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	}
	opaque(img)

	if o.bgr {
		swapRB(img)
	}
	return img, nil
}

// opaque drops transparency, pages are treated as three-channel images
func opaque(img *image.RGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}

func swapRB(img *image.RGBA) {
	for i := 0; i+2 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
	}
}
