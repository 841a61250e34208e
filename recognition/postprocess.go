// Package recognition reads the text of word crops.
//
// A recognition model maps each crop to a sequence of class scores, one
// row per timestep, over the characters of a [Vocab] plus one extra class.
// A [PostProcessor] decodes those scores into strings: [CTCPostProcessor]
// treats the extra class as the CTC blank, [SARPostProcessor] as the
// end-of-sequence token.
package recognition

import (
	"fmt"
	"math"
	"sort"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/tensor"
)

// Prediction is the decoded text of one crop
type Prediction struct {
	Value      string
	Confidence float64
}

// PostProcessor decodes a batch of model outputs
type PostProcessor interface {
	// Process accepts an (N, T, C) tensor with C == vocab size + 1 and
	// returns N predictions in order
	Process(logits *tensor.Tensor) ([]Prediction, error)

	// Vocab returns the vocabulary the model was trained on
	Vocab() Vocab
}

// checkLogits validates the shape of the model output and returns N, T, C
func checkLogits(t *tensor.Tensor, vocab Vocab) (n, steps, classes int, err error) {
	if t == nil || t.Rank() != 3 {
		var shape []int
		if t != nil {
			shape = t.Shape()
		}
		return 0, 0, 0, fmt.Errorf("%w: logits must be (N, T, C), got %v", nn.ErrInvalidInput, shape)
	}
	n, steps, classes = t.Dim(0), t.Dim(1), t.Dim(2)
	if classes != vocab.Len()+1 {
		return 0, 0, 0, fmt.Errorf("%w: %d classes for a vocabulary of %d characters", nn.ErrInvalidInput, classes, vocab.Len())
	}
	return n, steps, classes, nil
}

// softmax converts a row of scores to probabilities in place and returns
// the index and probability of the largest one. Ties keep the lowest index.
func softmax(row []float32) (best int, prob float64) {
	maxV := math.Inf(-1)
	for i, v := range row {
		if float64(v) > maxV {
			maxV = float64(v)
			best = i
		}
	}
	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v) - maxV)
		row[i] = float32(e)
		sum += e
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
	return best, float64(row[best])
}

// CTCPostProcessor decodes connectionist temporal classification outputs.
// The best class is taken at each timestep, consecutive repeats are merged
// and blanks are dropped.
type CTCPostProcessor struct {
	vocab Vocab
}

// NewCTCPostProcessor creates a CTC decoder for the vocabulary
func NewCTCPostProcessor(vocab Vocab) *CTCPostProcessor {
	return &CTCPostProcessor{vocab: vocab}
}

// Vocab implements PostProcessor
func (p *CTCPostProcessor) Vocab() Vocab { return p.vocab }

// String mirrors the configuration
func (p *CTCPostProcessor) String() string {
	return fmt.Sprintf("CTCPostProcessor(vocab_size=%d)", p.vocab.Len())
}

// Process implements PostProcessor. The confidence is the mean of the
// best-class probabilities over all timesteps.
func (p *CTCPostProcessor) Process(logits *tensor.Tensor) ([]Prediction, error) {
	n, steps, classes, err := checkLogits(logits, p.vocab)
	if err != nil {
		return nil, err
	}

	blank := p.vocab.Len()
	data := logits.Data()
	out := make([]Prediction, n)
	row := make([]float32, classes)

	for i := 0; i < n; i++ {
		var (
			indices []int
			probSum float64
			prev    = -1
		)
		for s := 0; s < steps; s++ {
			off := (i*steps + s) * classes
			copy(row, data[off:off+classes])
			best, prob := softmax(row)
			probSum += prob

			if best != prev && best != blank {
				indices = append(indices, best)
			}
			prev = best
		}

		var conf float64
		if steps > 0 {
			conf = probSum / float64(steps)
		}
		out[i] = Prediction{Value: p.vocab.Decode(indices), Confidence: conf}
	}
	return out, nil
}

// DefaultMaxLength is the longest word a SAR model decodes
const DefaultMaxLength = 30

// SARPostProcessor decodes show-attend-read outputs. Decoding stops at the
// first end-of-sequence class or after MaxLength characters.
type SARPostProcessor struct {
	vocab     Vocab
	maxLength int
}

// NewSARPostProcessor creates a SAR decoder with DefaultMaxLength
func NewSARPostProcessor(vocab Vocab) *SARPostProcessor {
	return &SARPostProcessor{vocab: vocab, maxLength: DefaultMaxLength}
}

// WithMaxLength returns a copy of the decoder with another length limit
func (p *SARPostProcessor) WithMaxLength(n int) *SARPostProcessor {
	c := *p
	c.maxLength = n
	return &c
}

// Vocab implements PostProcessor
func (p *SARPostProcessor) Vocab() Vocab { return p.vocab }

// MaxLength returns the length limit
func (p *SARPostProcessor) MaxLength() int { return p.maxLength }

// String mirrors the configuration
func (p *SARPostProcessor) String() string {
	return fmt.Sprintf("SARPostProcessor(vocab_size=%d)", p.vocab.Len())
}

// Process implements PostProcessor. The confidence is the mean probability
// of the decoded classes, end-of-sequence included.
func (p *SARPostProcessor) Process(logits *tensor.Tensor) ([]Prediction, error) {
	n, steps, classes, err := checkLogits(logits, p.vocab)
	if err != nil {
		return nil, err
	}

	eos := p.vocab.Len()
	data := logits.Data()
	out := make([]Prediction, n)
	row := make([]float32, classes)

	for i := 0; i < n; i++ {
		var (
			indices []int
			probSum float64
			used    int
		)
		for s := 0; s < steps && len(indices) < p.maxLength; s++ {
			off := (i*steps + s) * classes
			copy(row, data[off:off+classes])
			best, prob := softmax(row)
			probSum += prob
			used++
			if best == eos {
				break
			}
			indices = append(indices, best)
		}

		var conf float64
		if used > 0 {
			conf = probSum / float64(used)
		}
		out[i] = Prediction{Value: p.vocab.Decode(indices), Confidence: conf}
	}
	return out, nil
}

// Factory creates a post-processor for a vocabulary
type Factory func(Vocab) PostProcessor

var registry = map[string]Factory{
	"CTCPostProcessor": func(v Vocab) PostProcessor { return NewCTCPostProcessor(v) },
	"SARPostProcessor": func(v Vocab) PostProcessor { return NewSARPostProcessor(v) },
}

// NewPostProcessor creates a post-processor from its registered name
func NewPostProcessor(name string, vocab Vocab) (PostProcessor, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: post-processor %q", nn.ErrUnknownArchitecture, name)
	}
	return f(vocab), nil
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
