package model

import (
	"strings"
)

// Dimensions is the absolute size of a page in pixels
type Dimensions struct {
	Height int
	Width  int
}

// Orientation is the estimated page rotation, in degrees
type Orientation struct {
	Value      float64
	Confidence float64
}

// Language is the dominant language of a page
type Language struct {
	Value      string
	Confidence float64
}

// Page represents a single page of a document
type Page struct {
	blocks      []Block
	index       int
	dimensions  Dimensions
	orientation Orientation
	language    Language
}

// NewPage creates a page from its blocks. index is the 0-based position of
// the page in its document.
func NewPage(blocks []Block, index int, dimensions Dimensions, orientation Orientation, language Language) Page {
	return Page{
		blocks:      cloneSlice(blocks),
		index:       index,
		dimensions:  dimensions,
		orientation: orientation,
		language:    language,
	}
}

func (p Page) Blocks() []Block          { return cloneSlice(p.blocks) }
func (p Page) Index() int               { return p.index }
func (p Page) Dimensions() Dimensions   { return p.dimensions }
func (p Page) Orientation() Orientation { return p.orientation }
func (p Page) Language() Language       { return p.language }

// Words returns every word of the page in reading order
func (p Page) Words() []Word {
	var words []Word
	for _, b := range p.blocks {
		for _, l := range b.lines {
			words = append(words, l.words...)
		}
	}
	return words
}

// Render joins the rendered blocks with blank lines
func (p Page) Render() string {
	parts := make([]string, len(p.blocks))
	for i, b := range p.blocks {
		parts[i] = b.Render()
	}
	return strings.Join(parts, "\n\n")
}

func (p Page) Export() map[string]any {
	blocks := make([]map[string]any, len(p.blocks))
	for i, b := range p.blocks {
		blocks[i] = b.Export()
	}
	return map[string]any{
		"blocks":     blocks,
		"page_idx":   p.index,
		"dimensions": [2]int{p.dimensions.Height, p.dimensions.Width},
		"orientation": map[string]any{
			"value":      p.orientation.Value,
			"confidence": p.orientation.Confidence,
		},
		"language": map[string]any{
			"value":      p.language.Value,
			"confidence": p.language.Confidence,
		},
	}
}
