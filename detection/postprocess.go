// Package detection turns page images into text regions.
//
// A detection model outputs, for every page, a probability map telling how
// likely each pixel is to belong to text. A [PostProcessor] binarizes that
// map and extracts one [Region] per connected text area. Two strategies are
// provided: [DBPostProcessor] (differentiable binarization, boxes are
// expanded to undo the shrinking applied at training time) and
// [LinkNetPostProcessor] (plain thresholding with a morphological opening).
//
// [Predictor] chains a preprocessor, a model and a post-processor, and
// [NewPredictorFromArch] builds one from a named architecture.
package detection

import (
	"fmt"
	"sort"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/tensor"
)

// Region is a detected text area in relative page coordinates
type Region struct {
	// Box is the axis-aligned bounding box, clipped to [0, 1]
	Box model.BBox

	// Polygon holds the four corners of the (possibly rotated) box,
	// clockwise from the top-left one
	Polygon []model.Point

	// Score is the mean probability of the pixels of the region
	Score float64
}

// PostProcessor extracts regions from a batch of probability maps
type PostProcessor interface {
	// Process accepts an (N, H, W) or (N, H, W, 1) tensor and returns the
	// regions of each of the N maps, in order. A map without text yields
	// an empty slice.
	Process(probMap *tensor.Tensor) ([][]Region, error)
}

// probMaps checks the shape of a probability map batch and returns N, H, W
func probMaps(t *tensor.Tensor) (n, h, w int, err error) {
	if t == nil {
		return 0, 0, 0, fmt.Errorf("%w: nil probability map", nn.ErrInvalidInput)
	}
	shape := t.Shape()
	switch {
	case len(shape) == 3:
	case len(shape) == 4 && shape[3] == 1:
	default:
		return 0, 0, 0, fmt.Errorf("%w: probability map must be (N, H, W) or (N, H, W, 1), got %v", nn.ErrInvalidInput, shape)
	}
	return shape[0], shape[1], shape[2], nil
}

// axisPolygon returns the corners of an axis-aligned box
func axisPolygon(b model.BBox) []model.Point {
	return []model.Point{
		{X: b.Min.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Min.Y},
		{X: b.Max.X, Y: b.Max.Y},
		{X: b.Min.X, Y: b.Max.Y},
	}
}

// Factory creates a post-processor with its default settings
type Factory func() PostProcessor

var registry = map[string]Factory{
	"DBPostProcessor":      func() PostProcessor { return NewDBPostProcessor() },
	"LinkNetPostProcessor": func() PostProcessor { return NewLinkNetPostProcessor() },
}

// NewPostProcessor creates a post-processor from its registered name
func NewPostProcessor(name string) (PostProcessor, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: post-processor %q", nn.ErrUnknownArchitecture, name)
	}
	return f(), nil
}

// PostProcessors lists the registered post-processor names
func PostProcessors() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
