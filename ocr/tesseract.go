//go:build ocr

package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sort"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/publicMindee/doctr/model"
)

// TesseractEngine wraps Tesseract. Calls are serialized because a gosseract
// client holds a single image at a time.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
	config TesseractConfig
}

// NewTesseractEngine creates a Tesseract engine.
// The engine should be closed when no longer needed to release resources.
func NewTesseractEngine(config TesseractConfig) (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if len(config.Languages) > 0 {
		if err := client.SetLanguage(config.Languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(config.PageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return &TesseractEngine{client: client, config: config}, nil
}

// Close releases OCR resources.
func (e *TesseractEngine) Close() error {
	if e != nil && e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Name implements Engine
func (e *TesseractEngine) Name() string { return "tesseract" }

// Process implements Engine. Words keep the block and line structure found
// by Tesseract.
func (e *TesseractEngine) Process(pages []image.Image) (*model.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]model.Page, len(pages))
	for i, img := range pages {
		page, err := e.recognize(img, i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		out[i] = page
	}
	return model.NewDocument(out), nil
}

func (e *TesseractEngine) recognize(img image.Image, index int) (model.Page, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return model.Page{}, fmt.Errorf("encode image: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return model.Page{}, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return model.Page{}, fmt.Errorf("OCR failed: %w", err)
	}

	// boxes are relative to the encoded image, whose origin is always 0,0
	dims := pageDimensions(img)

	type lineKey struct{ block, par, line int }
	grouped := make(map[lineKey][]model.Word)
	var keys []lineKey
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		word := model.NewWord(text, b.Confidence/100, relativeBox(b.Box, dims))

		k := lineKey{b.BlockNum, b.ParNum, b.LineNum}
		if _, ok := grouped[k]; !ok {
			keys = append(keys, k)
		}
		grouped[k] = append(grouped[k], word)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.block != b.block {
			return a.block < b.block
		}
		if a.par != b.par {
			return a.par < b.par
		}
		return a.line < b.line
	})

	var blocks []model.Block
	var lines []model.Line
	for i, k := range keys {
		lines = append(lines, model.NewLine(grouped[k]))
		if i == len(keys)-1 || keys[i+1].block != k.block {
			blocks = append(blocks, model.NewBlock(lines, nil))
			lines = nil
		}
	}
	return model.NewPage(blocks, index, dims, model.Orientation{}, model.Language{Value: strings.Join(e.config.Languages, "+")}), nil
}
