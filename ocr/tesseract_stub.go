//go:build !ocr

package ocr

import (
	"image"

	"github.com/publicMindee/doctr/model"
)

// TesseractEngine is a stub engine that returns errors for all operations.
type TesseractEngine struct{}

// NewTesseractEngine returns an error indicating OCR support is not enabled.
// To enable OCR, rebuild with: go build -tags ocr
func NewTesseractEngine(config TesseractConfig) (*TesseractEngine, error) {
	return nil, ErrOCRNotEnabled
}

// Close is a no-op for the stub engine.
// It is safe to call on a nil engine.
func (e *TesseractEngine) Close() error {
	return nil
}

// Name implements Engine
func (e *TesseractEngine) Name() string { return "tesseract" }

// Process returns an error indicating OCR support is not enabled.
func (e *TesseractEngine) Process(pages []image.Image) (*model.Document, error) {
	return nil, ErrOCRNotEnabled
}
