package model

import (
	"encoding/json"
	"strings"
)

// pageSeparator separates rendered pages
const pageSeparator = "\n\n\n\n"

// Document represents a complete OCR result made of pages
type Document struct {
	pages []Page
}

// NewDocument creates a document from its pages
func NewDocument(pages []Page) *Document {
	return &Document{pages: cloneSlice(pages)}
}

// Pages returns a copy of the document's pages
func (d *Document) Pages() []Page {
	return cloneSlice(d.pages)
}

// PageCount returns the total number of pages
func (d *Document) PageCount() int {
	return len(d.pages)
}

// GetPage returns a page by its 0-based index
func (d *Document) GetPage(index int) (Page, bool) {
	if index < 0 || index >= len(d.pages) {
		return Page{}, false
	}
	return d.pages[index], true
}

// Render returns the text of every page, pages separated by three blank lines
func (d *Document) Render() string {
	parts := make([]string, len(d.pages))
	for i, p := range d.pages {
		parts[i] = p.Render()
	}
	return strings.Join(parts, pageSeparator)
}

func (d *Document) Export() map[string]any {
	pages := make([]map[string]any, len(d.pages))
	for i, p := range d.pages {
		pages[i] = p.Export()
	}
	return map[string]any{"pages": pages}
}

// JSON encodes the exported document
func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(d.Export())
}

// Stats summarizes the content of the document
type Stats struct {
	PageCount     int
	BlockCount    int
	LineCount     int
	WordCount     int
	ArtefactCount int
	// MeanConfidence is the average word confidence (0 without words)
	MeanConfidence float64
}

// Stats returns element counts for the entire document
func (d *Document) Stats() Stats {
	var stats Stats
	var confSum float64
	stats.PageCount = len(d.pages)
	for _, p := range d.pages {
		stats.BlockCount += len(p.blocks)
		for _, b := range p.blocks {
			stats.LineCount += len(b.lines)
			stats.ArtefactCount += len(b.artefacts)
			for _, l := range b.lines {
				stats.WordCount += len(l.words)
				for _, w := range l.words {
					confSum += w.confidence
				}
			}
		}
	}
	if stats.WordCount > 0 {
		stats.MeanConfidence = confSum / float64(stats.WordCount)
	}
	return stats
}
