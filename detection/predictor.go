package detection

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
	"github.com/publicMindee/doctr/tensor"
)

// Predictor localizes text on full pages. It holds no per-call state; the
// model decides whether concurrent calls are safe.
type Predictor struct {
	pre    *preprocess.PreProcessor
	model  nn.Model
	post   PostProcessor
	logger *slog.Logger
}

// Option configures a Predictor
type Option func(*Predictor)

// WithLogger sets the logger used for debug traces
func WithLogger(l *slog.Logger) Option {
	return func(p *Predictor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPredictor chains a preprocessor, a detection model and a post-processor
func NewPredictor(pre *preprocess.PreProcessor, m nn.Model, post PostProcessor, opts ...Option) *Predictor {
	p := &Predictor{
		pre:    pre,
		model:  m,
		post:   post,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PreProcessor returns the preprocessor of the predictor
func (p *Predictor) PreProcessor() *preprocess.PreProcessor { return p.pre }

// PostProcessor returns the post-processor of the predictor
func (p *Predictor) PostProcessor() PostProcessor { return p.post }

// Predict returns the regions found on each page, in page order. Boxes are
// relative to the original page size.
func (p *Predictor) Predict(pages []image.Image) ([][]Region, error) {
	if len(pages) == 0 {
		return [][]Region{}, nil
	}

	batches, err := p.pre.Process(pages)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}

	inputs := make([]*tensor.Tensor, len(batches))
	var sizes []image.Point
	for i, b := range batches {
		inputs[i] = b.Images
		sizes = append(sizes, b.Sizes...)
	}

	out, err := nn.Forward(p.model, inputs)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	regions, err := p.post.Process(out)
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	if len(regions) != len(pages) {
		return nil, fmt.Errorf("detection: %w: %d maps for %d pages", nn.ErrShapeMismatch, len(regions), len(pages))
	}

	outSize := p.pre.Config().OutputSize
	total := 0
	for i := range regions {
		regions[i] = rescale(regions[i], sizes[i], outSize)
		total += len(regions[i])
	}
	p.logger.Debug("detection done", "pages", len(pages), "batches", len(batches), "regions", total)
	return regions, nil
}

// rescale maps regions from padded-input coordinates to the coordinates of
// the resized content, which are those of the original page. Regions lying
// on the padding collapse onto the page border and are dropped.
func rescale(regions []Region, content image.Point, outSize [2]int) []Region {
	sx := float64(outSize[1]) / float64(content.X)
	sy := float64(outSize[0]) / float64(content.Y)
	if sx == 1 && sy == 1 {
		return regions
	}

	kept := regions[:0]
	for _, r := range regions {
		poly := make([]model.Point, len(r.Polygon))
		for j, pt := range r.Polygon {
			poly[j] = model.Point{X: clamp01(pt.X * sx), Y: clamp01(pt.Y * sy)}
		}
		r.Polygon = poly
		r.Box = model.NewBBox(r.Box.Min.X*sx, r.Box.Min.Y*sy, r.Box.Max.X*sx, r.Box.Max.Y*sy).Clip()
		if r.Box.IsEmpty() {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
