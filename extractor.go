package doctr

import (
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/ocr"
	"github.com/publicMindee/doctr/reader"
)

var (
	// ErrNoEngine is returned by terminal operations when no engine was set
	ErrNoEngine = errors.New("no OCR engine configured")

	// ErrNoPages is returned when there is nothing to read
	ErrNoPages = errors.New("no pages to process")
)

// Extractor provides a fluent interface for running OCR on page images.
// Each configuration method returns a new Extractor instance, making it
// safe for concurrent use and allowing method chaining.
type Extractor struct {
	// Source, paths or decoded images
	paths  []string
	images []image.Image

	engine ocr.Engine

	// Configuration
	options ExtractOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Extractor with a deep copy of options.
func (e *Extractor) clone() *Extractor {
	return &Extractor{
		paths:   e.paths,
		images:  e.images,
		engine:  e.engine,
		options: e.options.clone(),
		err:     e.err,
	}
}

// ============================================================================
// Configuration Methods (return new Extractor instance)
// ============================================================================

// WithEngine selects the engine running OCR.
//
// Example:
//
//	text, _, err := doctr.Open("scan.png").WithEngine(engine).Text()
func (e *Extractor) WithEngine(engine ocr.Engine) *Extractor {
	newExt := e.clone()
	newExt.engine = engine
	return newExt
}

// Pages specifies which pages to read (1-indexed, in input order).
// Multiple calls are cumulative.
//
// Example:
//
//	text, _, err := doctr.Open(paths...).WithEngine(engine).Pages(1, 3).Text()
func (e *Extractor) Pages(pages ...int) *Extractor {
	newExt := e.clone()
	newExt.options.pages = append(newExt.options.pages, pages...)
	return newExt
}

// PageRange specifies a range of pages to read (1-indexed, inclusive).
func (e *Extractor) PageRange(start, end int) *Extractor {
	newExt := e.clone()
	if start > end {
		newExt.err = fmt.Errorf("invalid page range %d-%d", start, end)
		return newExt
	}
	for i := start; i <= end; i++ {
		newExt.options.pages = append(newExt.options.pages, i)
	}
	return newExt
}

// Resize rescales every page read from a file to height x width pixels
// before OCR.
func (e *Extractor) Resize(height, width int) *Extractor {
	newExt := e.clone()
	if height <= 0 || width <= 0 {
		newExt.err = fmt.Errorf("invalid page size %dx%d", height, width)
		return newExt
	}
	newExt.options.height, newExt.options.width = height, width
	return newExt
}

// MinConfidence drops words recognized with a lower confidence. Lines and
// blocks left without content are dropped too.
func (e *Extractor) MinConfidence(c float64) *Extractor {
	newExt := e.clone()
	if c < 0 || c > 1 {
		newExt.err = fmt.Errorf("confidence %g out of range [0, 1]", c)
		return newExt
	}
	newExt.options.minConfidence = c
	return newExt
}

// ============================================================================
// Terminal Operations
// ============================================================================

// PageCount returns the number of input pages, counting every page of a
// PDF file. No OCR is run.
func (e *Extractor) PageCount() (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	if e.images != nil {
		return len(e.images), nil
	}
	sources, err := e.pageSources()
	if err != nil {
		return 0, err
	}
	return len(sources), nil
}

// Document runs OCR on the selected pages. Pages keep the index they have
// in the input, so selecting pages 2 and 4 yields pages with index 1 and 3.
//
// Warnings report pages where no text was found and words dropped by
// MinConfidence.
func (e *Extractor) Document() (*model.Document, []Warning, error) {
	if e.err != nil {
		return nil, nil, e.err
	}
	if e.engine == nil {
		return nil, nil, ErrNoEngine
	}

	indices, err := e.resolvePages()
	if err != nil {
		return nil, nil, err
	}

	pages, err := e.loadPages(indices)
	if err != nil {
		return nil, nil, err
	}

	doc, err := e.engine.Process(pages)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", e.engine.Name(), err)
	}
	if doc.PageCount() != len(indices) {
		return nil, nil, fmt.Errorf("%s: got %d pages for %d inputs", e.engine.Name(), doc.PageCount(), len(indices))
	}

	return e.finalize(doc, indices)
}

// Text returns the rendered text of the selected pages, pages separated by
// blank lines.
//
// Example:
//
//	text, warnings, err := doctr.Open("receipt.jpg").WithEngine(engine).Text()
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", doctr.FormatWarnings(warnings))
//	}
func (e *Extractor) Text() (string, []Warning, error) {
	doc, warnings, err := e.Document()
	if err != nil {
		return "", warnings, err
	}
	return doc.Render(), warnings, nil
}

// JSON returns the exported document encoded as JSON
func (e *Extractor) JSON() ([]byte, []Warning, error) {
	doc, warnings, err := e.Document()
	if err != nil {
		return nil, warnings, err
	}
	data, err := doc.JSON()
	return data, warnings, err
}

// HOCR returns the document rendered as hOCR
func (e *Extractor) HOCR() ([]byte, []Warning, error) {
	doc, warnings, err := e.Document()
	if err != nil {
		return nil, warnings, err
	}
	data, err := doc.HOCR()
	return data, warnings, err
}

// Words returns every recognized word in reading order
func (e *Extractor) Words() ([]model.Word, []Warning, error) {
	doc, warnings, err := e.Document()
	if err != nil {
		return nil, warnings, err
	}
	var words []model.Word
	for _, p := range doc.Pages() {
		words = append(words, p.Words()...)
	}
	return words, warnings, nil
}

// Stats returns element counts of the document
func (e *Extractor) Stats() (model.Stats, []Warning, error) {
	doc, warnings, err := e.Document()
	if err != nil {
		return model.Stats{}, warnings, err
	}
	return doc.Stats(), warnings, nil
}

// ============================================================================
// Helpers
// ============================================================================

// resolvePages converts the 1-indexed selection into sorted unique 0-indexed
// positions
func (e *Extractor) resolvePages() ([]int, error) {
	pageCount, err := e.PageCount()
	if err != nil {
		return nil, err
	}
	if pageCount == 0 {
		return nil, ErrNoPages
	}

	if len(e.options.pages) == 0 {
		indices := make([]int, pageCount)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}

	seen := make(map[int]bool)
	var indices []int
	for _, p := range e.options.pages {
		if p < 1 || p > pageCount {
			return nil, fmt.Errorf("page %d out of range (1-%d)", p, pageCount)
		}
		if !seen[p-1] {
			seen[p-1] = true
			indices = append(indices, p-1)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

func (e *Extractor) loadPages(indices []int) ([]image.Image, error) {
	pages := make([]image.Image, len(indices))

	if e.images != nil {
		for i, idx := range indices {
			if e.images[idx] == nil {
				return nil, fmt.Errorf("page %d: %w: nil image", idx+1, reader.ErrInvalidImage)
			}
			pages[i] = e.images[idx]
		}
		return pages, nil
	}

	sources, err := e.pageSources()
	if err != nil {
		return nil, err
	}

	var opts []reader.Option
	if e.options.height > 0 {
		opts = append(opts, reader.WithSize(e.options.height, e.options.width))
	}

	// each file is decoded once however many of its pages are selected
	files := make(map[string][]*image.RGBA)
	for i, idx := range indices {
		src := sources[idx]
		imgs, ok := files[src.path]
		if !ok {
			if imgs, err = reader.ReadPages(src.path, opts...); err != nil {
				return nil, fmt.Errorf("page %d: %w", idx+1, err)
			}
			files[src.path] = imgs
		}
		if src.page >= len(imgs) {
			return nil, fmt.Errorf("page %d: %s has %d pages", idx+1, src.path, len(imgs))
		}
		pages[i] = imgs[src.page]
	}
	return pages, nil
}

// pageSource locates an input page within the files given to Open
type pageSource struct {
	path string
	page int
}

func (e *Extractor) pageSources() ([]pageSource, error) {
	var sources []pageSource
	for _, path := range e.paths {
		n, err := reader.CountPages(path)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			sources = append(sources, pageSource{path: path, page: i})
		}
	}
	return sources, nil
}

// finalize restores input page indices, applies the confidence filter and
// collects warnings
func (e *Extractor) finalize(doc *model.Document, indices []int) (*model.Document, []Warning, error) {
	var warnings []Warning
	pages := doc.Pages()
	out := make([]model.Page, len(pages))

	for i, p := range pages {
		pageNo := indices[i] + 1

		blocks, dropped := filterBlocks(p.Blocks(), e.options.minConfidence)
		if dropped > 0 {
			warnings = append(warnings, Warning{
				Page:    pageNo,
				Message: fmt.Sprintf("dropped %d words below confidence %.2f", dropped, e.options.minConfidence),
			})
		}

		out[i] = model.NewPage(blocks, indices[i], p.Dimensions(), p.Orientation(), p.Language())
		if len(out[i].Words()) == 0 {
			warnings = append(warnings, Warning{Page: pageNo, Message: "no text detected"})
		}
	}
	return model.NewDocument(out), warnings, nil
}

func filterBlocks(blocks []model.Block, minConfidence float64) ([]model.Block, int) {
	if minConfidence <= 0 {
		return blocks, 0
	}

	var dropped int
	var out []model.Block
	for _, b := range blocks {
		var lines []model.Line
		for _, l := range b.Lines() {
			var words []model.Word
			for _, w := range l.Words() {
				if w.Confidence() < minConfidence {
					dropped++
					continue
				}
				words = append(words, w)
			}
			if len(words) > 0 {
				lines = append(lines, model.NewLine(words))
			}
		}
		if len(lines) > 0 || len(b.Artefacts()) > 0 {
			out = append(out, model.NewBlock(lines, b.Artefacts()))
		}
	}
	return out, dropped
}
