package ocr

import (
	"fmt"
	"math"
	"sort"

	"github.com/publicMindee/doctr/model"
)

// Word is a recognized word with its box in relative page coordinates
type Word struct {
	Value      string
	Confidence float64
	Box        model.BBox
}

// BuilderConfig holds the settings used to arrange words on a page
type BuilderConfig struct {
	// LineTolerance is the maximum vertical distance between the centre of a
	// word and the mean centre of a line, as a fraction of the mean word
	// height of the line (default: 0.5)
	LineTolerance float64

	// ParagraphBreak is the relative vertical gap between two lines above
	// which a new block starts (default: 0.035)
	ParagraphBreak float64
}

// DefaultBuilderConfig returns sensible default configuration
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		LineTolerance:  0.5,
		ParagraphBreak: 0.035,
	}
}

// DocumentBuilder arranges loose words into lines and blocks
type DocumentBuilder struct {
	config BuilderConfig
}

// NewDocumentBuilder creates a builder with default configuration
func NewDocumentBuilder() *DocumentBuilder {
	return &DocumentBuilder{config: DefaultBuilderConfig()}
}

// NewDocumentBuilderWithConfig creates a builder with custom configuration
func NewDocumentBuilderWithConfig(config BuilderConfig) *DocumentBuilder {
	return &DocumentBuilder{config: config}
}

// Config returns the builder configuration
func (b *DocumentBuilder) Config() BuilderConfig {
	return b.config
}

// Build creates a document with one page per word list
func (b *DocumentBuilder) Build(pages [][]Word, dims []model.Dimensions) (*model.Document, error) {
	if len(pages) != len(dims) {
		return nil, fmt.Errorf("got %d word lists for %d pages", len(pages), len(dims))
	}
	out := make([]model.Page, len(pages))
	for i, words := range pages {
		out[i] = b.BuildPage(words, i, dims[i])
	}
	return model.NewDocument(out), nil
}

// BuildPage arranges the words of one page. Lines run top to bottom and
// words left to right.
func (b *DocumentBuilder) BuildPage(words []Word, index int, dims model.Dimensions) model.Page {
	lines := b.groupIntoLines(words)
	blocks := b.groupIntoBlocks(lines)
	return model.NewPage(blocks, index, dims, model.Orientation{}, model.Language{})
}

// lineOverlap is the share of the shorter of two vertically adjacent words
// their extents must have in common to sit on the same line when their
// centres are too far apart
const lineOverlap = 0.8

// rows widens a box to the full page width so only vertical extents are
// compared
func rows(b model.BBox) model.BBox {
	return model.NewBBox(0, b.Min.Y, 1, b.Max.Y)
}

// groupIntoLines groups words by vertical position. A tall word joins the
// line when its extent covers the previous word's.
func (b *DocumentBuilder) groupIntoLines(words []Word) [][]Word {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.Center().Y < sorted[j].Box.Center().Y
	})

	var lines [][]Word
	var current []Word
	var sumY, sumH float64

	for _, w := range sorted {
		c := w.Box.Center().Y
		if len(current) > 0 {
			n := float64(len(current))
			prev := current[len(current)-1].Box
			if math.Abs(c-sumY/n) > b.config.LineTolerance*sumH/n &&
				rows(w.Box).OverlapRatio(rows(prev)) < lineOverlap {
				lines = append(lines, current)
				current, sumY, sumH = nil, 0, 0
			}
		}
		current = append(current, w)
		sumY += c
		sumH += w.Box.Height()
	}
	lines = append(lines, current)

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool {
			return line[i].Box.Min.X < line[j].Box.Min.X
		})
	}
	return lines
}

// groupIntoBlocks splits the lines where the vertical gap is a paragraph break
func (b *DocumentBuilder) groupIntoBlocks(lines [][]Word) []model.Block {
	var blocks []model.Block
	var current []model.Line
	var prevBottom float64

	for _, words := range lines {
		line := model.NewLine(toModelWords(words))
		g := line.Geometry()
		if len(current) > 0 && g.Min.Y-prevBottom > b.config.ParagraphBreak {
			blocks = append(blocks, model.NewBlock(current, nil))
			current = nil
		}
		if len(current) == 0 {
			prevBottom = g.Max.Y
		} else {
			prevBottom = math.Max(prevBottom, g.Max.Y)
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, model.NewBlock(current, nil))
	}
	return blocks
}

func toModelWords(words []Word) []model.Word {
	out := make([]model.Word, len(words))
	for i, w := range words {
		out[i] = model.NewWord(w.Value, w.Confidence, w.Box)
	}
	return out
}
