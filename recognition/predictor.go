package recognition

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
	"github.com/publicMindee/doctr/tensor"
)

// Predictor reads the text of word crops
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

// NewPredictor chains a preprocessor, a recognition model and a decoder
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

// PostProcessor returns the decoder of the predictor
func (p *Predictor) PostProcessor() PostProcessor { return p.post }

// Predict returns one prediction per crop, in input order
func (p *Predictor) Predict(crops []image.Image) ([]Prediction, error) {
	if len(crops) == 0 {
		return []Prediction{}, nil
	}

	batches, err := p.pre.Process(crops)
	if err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}
	inputs := make([]*tensor.Tensor, len(batches))
	for i, b := range batches {
		inputs[i] = b.Images
	}

	out, err := nn.Forward(p.model, inputs)
	if err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}
	preds, err := p.post.Process(out)
	if err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}
	if len(preds) != len(crops) {
		return nil, fmt.Errorf("recognition: %w: %d predictions for %d crops", nn.ErrShapeMismatch, len(preds), len(crops))
	}

	p.logger.Debug("recognition done", "crops", len(crops), "batches", len(batches))
	return preds, nil
}
