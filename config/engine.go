package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/publicMindee/doctr/detection"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/ocr"
	"github.com/publicMindee/doctr/recognition"
)

// NewEngine builds the configured OCR engine. Engines holding native
// resources implement io.Closer.
func (c *Config) NewEngine(logger *slog.Logger) (ocr.Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	switch c.Engine {
	case EngineDoctr:
		p, err := c.newPredictor(logger)
		if err != nil {
			return nil, err
		}
		return p, nil

	case EngineTesseract:
		e, err := ocr.NewTesseractEngine(ocr.TesseractConfig{
			Languages:   c.Tesseract.Languages,
			PageSegMode: ocr.PageSegMode(c.Tesseract.PSM),
		})
		if err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: unknown engine %q", nn.ErrInvalidConfig, c.Engine)
	}
}

func (c *Config) newPredictor(logger *slog.Logger) (*ocr.Predictor, error) {
	detModel, err := c.Detection.model()
	if err != nil {
		return nil, fmt.Errorf("detection: %w", err)
	}
	recoModel, err := c.Recognition.model()
	if err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}

	recoOpts := recognition.ArchOptions{BatchSize: c.Recognition.BatchSize}
	if c.Recognition.Vocab != "" {
		vocab, err := recognition.BuiltinVocab(c.Recognition.Vocab)
		if err != nil {
			return nil, fmt.Errorf("recognition: %w", err)
		}
		recoOpts.Vocab = vocab.String()
	}

	builder := ocr.NewDocumentBuilderWithConfig(ocr.BuilderConfig{
		LineTolerance:  c.Builder.LineTolerance,
		ParagraphBreak: c.Builder.ParagraphBreak,
	})

	logger.Info("building OCR predictor",
		"detection", c.Detection.Arch,
		"detection_url", c.Detection.URL,
		"recognition", c.Recognition.Arch,
		"recognition_url", c.Recognition.URL,
	)

	return ocr.NewPredictorFromArch(
		c.Detection.Arch, detModel, detection.ArchOptions{BatchSize: c.Detection.BatchSize},
		c.Recognition.Arch, recoModel, recoOpts,
		ocr.WithLogger(logger), ocr.WithBuilder(builder),
	)
}

func (m ModelConfig) model() (*nn.RemoteModel, error) {
	opts := []nn.RemoteOption{nn.WithTimeout(m.Timeout)}
	if m.Token != "" {
		opts = append(opts, nn.WithToken(m.Token))
	}
	return nn.NewRemoteModel(m.URL, opts...)
}
