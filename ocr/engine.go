// Package ocr runs end-to-end text recognition on page images and returns
// structured documents.
//
// Two engines implement [Engine]:
//
//   - [Predictor] chains a text detection predictor and a text recognition
//     predictor, then arranges the recognized words into lines and blocks
//     with a [DocumentBuilder].
//   - [TesseractEngine] wraps the Tesseract OCR engine via gosseract. It is
//     only available when built with the "ocr" tag:
//
//	go build -tags ocr
//
// Tesseract must then be installed on the system. On macOS:
//
//	brew install tesseract
//
// On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
package ocr

import (
	"errors"
	"image"

	"github.com/publicMindee/doctr/model"
)

// ErrOCRNotEnabled is returned when the Tesseract engine is requested but
// was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Engine turns page images into a document
type Engine interface {
	// Name identifies the engine in logs and API responses
	Name() string

	// Process reads every page and returns one document whose pages follow
	// the input order
	Process(pages []image.Image) (*model.Document, error)
}

// PageSegMode represents Tesseract page segmentation modes.
// These control how Tesseract analyzes the page layout.
type PageSegMode int

const (
	PSM_OSD_ONLY               PageSegMode = 0  // Orientation and script detection only
	PSM_AUTO_OSD               PageSegMode = 1  // Automatic with OSD
	PSM_AUTO_ONLY              PageSegMode = 2  // Automatic, no OSD or OCR
	PSM_AUTO                   PageSegMode = 3  // Fully automatic (default)
	PSM_SINGLE_COLUMN          PageSegMode = 4  // Single column of variable sizes
	PSM_SINGLE_BLOCK_VERT_TEXT PageSegMode = 5  // Single uniform block of vertically aligned text
	PSM_SINGLE_BLOCK           PageSegMode = 6  // Single uniform block of text
	PSM_SINGLE_LINE            PageSegMode = 7  // Single text line
	PSM_SINGLE_WORD            PageSegMode = 8  // Single word
	PSM_CIRCLE_WORD            PageSegMode = 9  // Single word in a circle
	PSM_SINGLE_CHAR            PageSegMode = 10 // Single character
	PSM_SPARSE_TEXT            PageSegMode = 11 // Find as much text as possible
	PSM_SPARSE_TEXT_OSD        PageSegMode = 12 // Sparse text with OSD
	PSM_RAW_LINE               PageSegMode = 13 // Treat image as single text line
)

// TesseractConfig holds the settings of the Tesseract engine
type TesseractConfig struct {
	// Languages are Tesseract language codes, e.g. "eng", "fra" (default: eng)
	Languages []string

	// PageSegMode is the page segmentation mode (default: PSM_AUTO)
	PageSegMode PageSegMode
}

// DefaultTesseractConfig returns English with automatic segmentation
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		Languages:   []string{"eng"},
		PageSegMode: PSM_AUTO,
	}
}

// relativeBox converts a pixel rectangle, measured from the top-left corner
// of the page, to page-relative coordinates clipped to the page
func relativeBox(r image.Rectangle, dims model.Dimensions) model.BBox {
	w, h := float64(dims.Width), float64(dims.Height)
	return model.NewBBoxFromPoints(
		model.Point{X: float64(r.Min.X) / w, Y: float64(r.Min.Y) / h},
		model.Point{X: float64(r.Max.X) / w, Y: float64(r.Max.Y) / h},
	).Clip()
}

// pageDimensions returns the pixel size of an image
func pageDimensions(img image.Image) model.Dimensions {
	b := img.Bounds()
	return model.Dimensions{Height: b.Dy(), Width: b.Dx()}
}
