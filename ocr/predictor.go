package ocr

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/publicMindee/doctr/detection"
	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/recognition"
)

// Predictor is the two-stage engine: text regions are detected on each page,
// cropped, read by the recognition model and arranged into a document.
type Predictor struct {
	det     *detection.Predictor
	reco    *recognition.Predictor
	builder *DocumentBuilder
	logger  *slog.Logger
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

// WithBuilder replaces the default document builder
func WithBuilder(b *DocumentBuilder) Option {
	return func(p *Predictor) {
		if b != nil {
			p.builder = b
		}
	}
}

// NewPredictor chains a detection and a recognition predictor
func NewPredictor(det *detection.Predictor, reco *recognition.Predictor, opts ...Option) *Predictor {
	p := &Predictor{
		det:     det,
		reco:    reco,
		builder: NewDocumentBuilder(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPredictorFromArch builds both stages from architecture names around
// already loaded models
func NewPredictorFromArch(
	detArch string, detModel nn.Model, detOpts detection.ArchOptions,
	recoArch string, recoModel nn.Model, recoOpts recognition.ArchOptions,
	opts ...Option,
) (*Predictor, error) {
	p := NewPredictor(nil, nil, opts...)

	det, err := detection.NewPredictorFromArch(detArch, detModel, detOpts, detection.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	reco, err := recognition.NewPredictorFromArch(recoArch, recoModel, recoOpts, recognition.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.det, p.reco = det, reco
	return p, nil
}

// Name implements Engine
func (p *Predictor) Name() string { return "doctr" }

// Process implements Engine. Crops of all pages are recognized together so
// that recognition batches are filled across page boundaries. Words decoded
// as an empty string are dropped.
func (p *Predictor) Process(pages []image.Image) (*model.Document, error) {
	regions, err := p.det.Predict(pages)
	if err != nil {
		return nil, err
	}

	var crops []image.Image
	offsets := make([]int, len(pages)+1)
	for i, page := range pages {
		boxes := make([]model.BBox, len(regions[i]))
		for j, r := range regions[i] {
			boxes[j] = r.Box
		}
		pc, err := recognition.ExtractCrops(page, boxes)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		crops = append(crops, pc...)
		offsets[i+1] = len(crops)
	}

	preds, err := p.reco.Predict(crops)
	if err != nil {
		return nil, err
	}

	words := make([][]Word, len(pages))
	dims := make([]model.Dimensions, len(pages))
	for i, page := range pages {
		dims[i] = pageDimensions(page)
		for j, pred := range preds[offsets[i]:offsets[i+1]] {
			if pred.Value == "" {
				continue
			}
			words[i] = append(words[i], Word{
				Value:      pred.Value,
				Confidence: pred.Confidence,
				Box:        regions[i][j].Box,
			})
		}
	}

	p.logger.Debug("ocr done", "engine", p.Name(), "pages", len(pages), "crops", len(crops))
	return p.builder.Build(words, dims)
}
