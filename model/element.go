package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGeometry is returned when a supplied geometry does not enclose the
// geometries of an element's children.
var ErrGeometry = errors.New("geometry does not enclose children")

// Element is the interface shared by every level of the document tree
type Element interface {
	// Render returns a human-readable text rendering of the element
	Render() string
	// Export returns a nested map mirroring the element's attributes
	Export() map[string]any
}

// Word is a single recognized word
type Word struct {
	value      string
	confidence float64
	geometry   BBox
}

// NewWord creates a word with its recognition confidence and relative geometry
func NewWord(value string, confidence float64, geometry BBox) Word {
	return Word{value: value, confidence: confidence, geometry: geometry}
}

func (w Word) Value() string       { return w.value }
func (w Word) Confidence() float64 { return w.confidence }
func (w Word) Geometry() BBox      { return w.geometry }
func (w Word) Render() string      { return w.value }

func (w Word) String() string {
	return fmt.Sprintf("Word(value=%q, confidence=%.2f)", w.value, w.confidence)
}

func (w Word) Export() map[string]any {
	return map[string]any{
		"value":      w.value,
		"confidence": w.confidence,
		"geometry":   w.geometry.export(),
	}
}

// Artefact is a non-textual element such as a QR code, a picture or a logo
type Artefact struct {
	kind       string
	confidence float64
	geometry   BBox
}

// NewArtefact creates an artefact of the given type
func NewArtefact(kind string, confidence float64, geometry BBox) Artefact {
	return Artefact{kind: kind, confidence: confidence, geometry: geometry}
}

func (a Artefact) Type() string        { return a.kind }
func (a Artefact) Confidence() float64 { return a.confidence }
func (a Artefact) Geometry() BBox      { return a.geometry }

// Render returns the upper-cased artefact type between brackets, e.g. [QR_CODE]
func (a Artefact) Render() string {
	return "[" + strings.ToUpper(a.kind) + "]"
}

func (a Artefact) Export() map[string]any {
	return map[string]any{
		"type":       a.kind,
		"confidence": a.confidence,
		"geometry":   a.geometry.export(),
	}
}

// Line is an ordered collection of words sharing a text line
type Line struct {
	words    []Word
	geometry BBox
}

// NewLine creates a line whose geometry encloses all of its words
func NewLine(words []Word) Line {
	return Line{words: cloneSlice(words), geometry: EnclosingBBox(wordBoxes(words)...)}
}

// NewLineWithGeometry creates a line with an explicit geometry, which must
// enclose every word.
func NewLineWithGeometry(words []Word, geometry BBox) (Line, error) {
	for _, w := range words {
		if !geometry.Contains(w.geometry) {
			return Line{}, fmt.Errorf("line: word %q: %w", w.value, ErrGeometry)
		}
	}
	return Line{words: cloneSlice(words), geometry: geometry}, nil
}

// Words returns a copy of the line's words
func (l Line) Words() []Word  { return cloneSlice(l.words) }
func (l Line) Geometry() BBox { return l.geometry }

// Render joins the words with single spaces
func (l Line) Render() string {
	parts := make([]string, len(l.words))
	for i, w := range l.words {
		parts[i] = w.Render()
	}
	return strings.Join(parts, " ")
}

func (l Line) Export() map[string]any {
	words := make([]map[string]any, len(l.words))
	for i, w := range l.words {
		words[i] = w.Export()
	}
	return map[string]any{
		"words":    words,
		"geometry": l.geometry.export(),
	}
}

// Block groups lines and artefacts that belong together, e.g. a paragraph
type Block struct {
	lines     []Line
	artefacts []Artefact
	geometry  BBox
}

// NewBlock creates a block whose geometry encloses all lines and artefacts
func NewBlock(lines []Line, artefacts []Artefact) Block {
	return Block{
		lines:     cloneSlice(lines),
		artefacts: cloneSlice(artefacts),
		geometry:  EnclosingBBox(blockChildBoxes(lines, artefacts)...),
	}
}

// NewBlockWithGeometry creates a block with an explicit geometry, which must
// enclose every line and artefact.
func NewBlockWithGeometry(lines []Line, artefacts []Artefact, geometry BBox) (Block, error) {
	for _, b := range blockChildBoxes(lines, artefacts) {
		if !geometry.Contains(b) {
			return Block{}, fmt.Errorf("block: %w", ErrGeometry)
		}
	}
	return Block{lines: cloneSlice(lines), artefacts: cloneSlice(artefacts), geometry: geometry}, nil
}

func (b Block) Lines() []Line         { return cloneSlice(b.lines) }
func (b Block) Artefacts() []Artefact { return cloneSlice(b.artefacts) }
func (b Block) Geometry() BBox        { return b.geometry }

// Render joins the rendered lines with newlines. Artefacts carry no text and
// are not rendered.
func (b Block) Render() string {
	parts := make([]string, len(b.lines))
	for i, l := range b.lines {
		parts[i] = l.Render()
	}
	return strings.Join(parts, "\n")
}

func (b Block) Export() map[string]any {
	lines := make([]map[string]any, len(b.lines))
	for i, l := range b.lines {
		lines[i] = l.Export()
	}
	artefacts := make([]map[string]any, len(b.artefacts))
	for i, a := range b.artefacts {
		artefacts[i] = a.Export()
	}
	return map[string]any{
		"lines":     lines,
		"artefacts": artefacts,
		"geometry":  b.geometry.export(),
	}
}

func wordBoxes(words []Word) []BBox {
	boxes := make([]BBox, len(words))
	for i, w := range words {
		boxes[i] = w.geometry
	}
	return boxes
}

func blockChildBoxes(lines []Line, artefacts []Artefact) []BBox {
	boxes := make([]BBox, 0, len(lines)+len(artefacts))
	for _, l := range lines {
		boxes = append(boxes, l.geometry)
	}
	for _, a := range artefacts {
		boxes = append(boxes, a.geometry)
	}
	return boxes
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
