package detection

import (
	"fmt"
	"sort"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
)

// ArchConfig describes how a detection architecture expects its input
type ArchConfig struct {
	// InputShape is (height, width, channels)
	InputShape [3]int

	Mean []float32
	Std  []float32

	// PostProcessor is the registered name of the matching post-processor
	PostProcessor string
}

var architectures = map[string]ArchConfig{
	"db_resnet50": {
		InputShape:    [3]int{1024, 1024, 3},
		Mean:          []float32{0.798, 0.785, 0.772},
		Std:           []float32{0.264, 0.2749, 0.287},
		PostProcessor: "DBPostProcessor",
	},
	"linknet": {
		InputShape:    [3]int{1024, 1024, 3},
		Mean:          []float32{0.798, 0.785, 0.772},
		Std:           []float32{0.264, 0.2749, 0.287},
		PostProcessor: "LinkNetPostProcessor",
	},
}

// Architectures lists the supported architecture names
func Architectures() []string {
	names := make([]string, 0, len(architectures))
	for name := range architectures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arch returns the configuration of an architecture
func Arch(name string) (ArchConfig, error) {
	cfg, ok := architectures[name]
	if !ok {
		return ArchConfig{}, fmt.Errorf("%w: detection architecture %q", nn.ErrUnknownArchitecture, name)
	}
	cfg.Mean = append([]float32(nil), cfg.Mean...)
	cfg.Std = append([]float32(nil), cfg.Std...)
	return cfg, nil
}

// ArchOptions overrides the defaults of an architecture. Zero values keep
// the default.
type ArchOptions struct {
	BatchSize int
	Mean      []float32
	Std       []float32

	// PostProcessor replaces the default post-processor of the architecture
	PostProcessor PostProcessor
}

// NewPredictorFromArch assembles a predictor for a named architecture around
// an already loaded model. Nothing is built when the name is unknown.
func NewPredictorFromArch(arch string, m nn.Model, archOpts ArchOptions, opts ...Option) (*Predictor, error) {
	cfg, err := Arch(arch)
	if err != nil {
		return nil, err
	}

	batchSize := archOpts.BatchSize
	if batchSize == 0 {
		batchSize = 2
	}
	pcfg := preprocess.DefaultConfig([2]int{cfg.InputShape[0], cfg.InputShape[1]}, batchSize)
	pcfg.Channels = cfg.InputShape[2]
	pcfg.Mode = preprocess.Fit
	pcfg.Mean, pcfg.Std = cfg.Mean, cfg.Std
	if archOpts.Mean != nil {
		pcfg.Mean = archOpts.Mean
	}
	if archOpts.Std != nil {
		pcfg.Std = archOpts.Std
	}

	pre, err := preprocess.New(pcfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", arch, err)
	}

	post := archOpts.PostProcessor
	if post == nil {
		if post, err = NewPostProcessor(cfg.PostProcessor); err != nil {
			return nil, err
		}
	}
	return NewPredictor(pre, m, post, opts...), nil
}
