//go:build ocr

package ocr

import (
	"image"
	"image/color"
	"testing"
)

// createTestImage creates a simple image with a text-like pattern.
// OCR might or might not recognize anything in it.
func createTestImage(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	for x := 10; x < 50; x++ {
		for y := 10; y < 30; y++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

func TestTesseractEngine(t *testing.T) {
	engine, err := NewTesseractEngine(DefaultTesseractConfig())
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	defer engine.Close()

	// The image is just a rectangle, only the document structure is checked
	doc, err := engine.Process([]image.Image{createTestImage(100, 50), createTestImage(80, 40)})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if doc.PageCount() != 2 {
		t.Fatalf("got %d pages, want 2", doc.PageCount())
	}
	page, _ := doc.GetPage(1)
	if page.Index() != 1 || page.Dimensions().Width != 80 || page.Dimensions().Height != 40 {
		t.Errorf("unexpected page metadata: %d %v", page.Index(), page.Dimensions())
	}
	for _, w := range page.Words() {
		g := w.Geometry()
		if g.Min.X < 0 || g.Max.X > 1 || g.Min.Y < 0 || g.Max.Y > 1 {
			t.Errorf("word %q has geometry %v outside the page", w.Value(), g)
		}
	}
}
