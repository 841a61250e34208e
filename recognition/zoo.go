package recognition

import (
	"fmt"
	"sort"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
)

// ArchConfig describes how a recognition architecture expects its input
type ArchConfig struct {
	// InputShape is (height, width, channels)
	InputShape [3]int

	Mean []float32
	Std  []float32

	// Vocab is the character set the pretrained weights predict
	Vocab string

	// PostProcessor is the registered name of the matching decoder
	PostProcessor string
}

var (
	recoMean = []float32{0.694, 0.695, 0.693}
	recoStd  = []float32{0.299, 0.296, 0.301}
)

var architectures = map[string]ArchConfig{
	"crnn_vgg16_bn": {InputShape: [3]int{32, 128, 3}, Mean: recoMean, Std: recoStd, Vocab: French, PostProcessor: "CTCPostProcessor"},
	"crnn_resnet31": {InputShape: [3]int{32, 128, 3}, Mean: recoMean, Std: recoStd, Vocab: French, PostProcessor: "CTCPostProcessor"},
	"sar_vgg16_bn":  {InputShape: [3]int{32, 128, 3}, Mean: recoMean, Std: recoStd, Vocab: French, PostProcessor: "SARPostProcessor"},
	"sar_resnet31":  {InputShape: [3]int{32, 128, 3}, Mean: recoMean, Std: recoStd, Vocab: French, PostProcessor: "SARPostProcessor"},
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
		return ArchConfig{}, fmt.Errorf("%w: recognition architecture %q", nn.ErrUnknownArchitecture, name)
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

	// Vocab replaces the character set, for models trained on another one
	Vocab string
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
		batchSize = 32
	}
	pcfg := preprocess.DefaultConfig([2]int{cfg.InputShape[0], cfg.InputShape[1]}, batchSize)
	pcfg.Channels = cfg.InputShape[2]
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

	chars := cfg.Vocab
	if archOpts.Vocab != "" {
		chars = archOpts.Vocab
	}
	vocab, err := NewVocab(chars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", arch, err)
	}

	post, err := NewPostProcessor(cfg.PostProcessor, vocab)
	if err != nil {
		return nil, err
	}
	return NewPredictor(pre, m, post, opts...), nil
}
