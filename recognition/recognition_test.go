package recognition

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
	"github.com/publicMindee/doctr/tensor"
)

// oneHot builds (len(seqs), T, vocab+1) logits where class seqs[i][t] scores
// 10 and every other class 0
func oneHot(vocab Vocab, seqs ...[]int) *tensor.Tensor {
	steps := 0
	for _, s := range seqs {
		steps = max(steps, len(s))
	}
	classes := vocab.Len() + 1
	t := tensor.New(len(seqs), steps, classes)
	for i, s := range seqs {
		for step, c := range s {
			t.Set(10, i, step, c)
		}
	}
	return t
}

func mustVocab(t *testing.T, chars string) Vocab {
	t.Helper()
	v, err := NewVocab(chars)
	if err != nil {
		t.Fatalf("NewVocab(%q) error = %v", chars, err)
	}
	return v
}

// ============================================================================
// Vocabulary
// ============================================================================

func TestBuiltinVocabs(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"digits", 10},
		{"ascii_letters", 52},
		{"punctuation", 32},
		{"currency", 5},
		{"latin", 94},
		{"french", 118},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := BuiltinVocab(tt.name)
			if err != nil {
				t.Fatalf("BuiltinVocab() error = %v", err)
			}
			if v.Len() != tt.size {
				t.Errorf("Len() = %d, want %d", v.Len(), tt.size)
			}
		})
	}
	if len(BuiltinVocabs()) != len(tests) {
		t.Errorf("BuiltinVocabs() = %v", BuiltinVocabs())
	}
	if _, err := BuiltinVocab("klingon"); !errors.Is(err, nn.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewVocabRejectsInvalid(t *testing.T) {
	for _, chars := range []string{"", "abca"} {
		if _, err := NewVocab(chars); !errors.Is(err, nn.ErrInvalidConfig) {
			t.Errorf("NewVocab(%q): expected ErrInvalidConfig, got %v", chars, err)
		}
	}
}

// encode maps a word to class indices
func encode(t *testing.T, v Vocab, word string) []int {
	t.Helper()
	var out []int
	for _, r := range word {
		i, ok := v.index[r]
		if !ok {
			t.Fatalf("character %q is not in the vocabulary", r)
		}
		out = append(out, i)
	}
	return out
}

func TestVocabDecode(t *testing.T) {
	v := mustVocab(t, French)

	idx := encode(t, v, "Rémouleur")
	if got := v.Decode(idx); got != "Rémouleur" {
		t.Errorf("Decode() = %q", got)
	}
	if got := v.Rune(idx[1]); got != 'é' {
		t.Errorf("Rune() = %q, want 'é'", got)
	}

	// out of range classes, such as blank or end of sequence, are skipped
	if got := v.Decode([]int{-1, idx[0], v.Len(), idx[1]}); got != "Ré" {
		t.Errorf("Decode() = %q, want \"Ré\"", got)
	}
}

// ============================================================================
// Decoders
// ============================================================================

func TestCTCDecoding(t *testing.T) {
	v := mustVocab(t, "AB")
	const a, b, blank = 0, 1, 2

	tests := []struct {
		name string
		seq  []int
		want string
	}{
		{"plain", []int{a, b}, "AB"},
		{"repeats collapse", []int{a, a, a, b, b}, "AB"},
		{"blank separates repeats", []int{a, blank, a}, "AA"},
		{"leading and trailing blanks", []int{blank, b, blank, blank}, "B"},
		{"only blanks", []int{blank, blank}, ""},
	}
	post := NewCTCPostProcessor(v)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := post.Process(oneHot(v, tt.seq))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if out[0].Value != tt.want {
				t.Errorf("Value = %q, want %q", out[0].Value, tt.want)
			}
			wantConf := math.Exp(10) / (math.Exp(10) + 2)
			if math.Abs(out[0].Confidence-wantConf) > 1e-5 {
				t.Errorf("Confidence = %v, want %v", out[0].Confidence, wantConf)
			}
		})
	}
}

func TestSARDecoding(t *testing.T) {
	v := mustVocab(t, "AB")
	const a, b, eos = 0, 1, 2

	tests := []struct {
		name      string
		maxLength int
		seq       []int
		want      string
	}{
		{"stops at eos", DefaultMaxLength, []int{a, b, eos, a, a}, "AB"},
		{"repeats kept", DefaultMaxLength, []int{a, a, eos}, "AA"},
		{"eos first", DefaultMaxLength, []int{eos, a}, ""},
		{"max length", 2, []int{b, b, b, b}, "BB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := NewSARPostProcessor(v).WithMaxLength(tt.maxLength)
			out, err := post.Process(oneHot(v, tt.seq))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if out[0].Value != tt.want {
				t.Errorf("Value = %q, want %q", out[0].Value, tt.want)
			}
			if out[0].Confidence <= 0.99 || out[0].Confidence > 1 {
				t.Errorf("Confidence = %v", out[0].Confidence)
			}
		})
	}
}

func TestDecodersOnRandomLogits(t *testing.T) {
	v := mustVocab(t, French)
	rng := rand.New(rand.NewSource(42))
	logits := tensor.New(2, 30, v.Len()+1)
	for i := range logits.Data() {
		logits.Data()[i] = rng.Float32()
	}

	for _, name := range PostProcessors() {
		t.Run(name, func(t *testing.T) {
			post, err := NewPostProcessor(name, v)
			if err != nil {
				t.Fatalf("NewPostProcessor() error = %v", err)
			}
			out, err := post.Process(logits)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(out) != 2 {
				t.Fatalf("got %d predictions, want 2", len(out))
			}
			for _, p := range out {
				if !utf8.ValidString(p.Value) {
					t.Errorf("invalid UTF-8 %q", p.Value)
				}
				for _, r := range p.Value {
					if !v.Contains(r) {
						t.Errorf("%q is not in the vocabulary", r)
					}
				}
				if p.Confidence < 0 || p.Confidence > 1 {
					t.Errorf("Confidence = %v", p.Confidence)
				}
			}
			if s, ok := post.(interface{ String() string }); !ok || s.String() != name+"(vocab_size=118)" {
				t.Errorf("unexpected repr for %s", name)
			}
		})
	}

	// decoding must not alter the model output
	if logits.At(0, 0, 0) > 1 {
		t.Error("logits were modified")
	}
}

func TestDecodersRejectWrongShape(t *testing.T) {
	v := mustVocab(t, "abc")
	for _, name := range PostProcessors() {
		post, _ := NewPostProcessor(name, v)
		for _, logits := range []*tensor.Tensor{tensor.New(1, 5, 3), tensor.New(1, 5, 5), tensor.New(5, 4)} {
			if _, err := post.Process(logits); !errors.Is(err, nn.ErrInvalidInput) {
				t.Errorf("%s %v: expected ErrInvalidInput, got %v", name, logits.Shape(), err)
			}
		}
	}
	if _, err := NewPostProcessor("AttentionPostProcessor", v); !errors.Is(err, nn.ErrUnknownArchitecture) {
		t.Errorf("expected ErrUnknownArchitecture, got %v", err)
	}
}

// ============================================================================
// Crops and predictor
// ============================================================================

func TestExtractCrops(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 100, 50))
	boxes := []model.BBox{
		model.NewBBox(0, 0, 0.25, 0.2),
		model.NewBBox(0.5, 0.5, 1, 1),
		model.NewBBox(0.3, 0.3, 0.3, 0.3),
		model.NewBBox(0.9, 0.9, 1.5, 1.5),
	}
	want := []image.Point{{25, 10}, {50, 25}, {1, 1}, {10, 5}}

	crops, err := ExtractCrops(page, boxes)
	if err != nil {
		t.Fatalf("ExtractCrops() error = %v", err)
	}
	if len(crops) != len(boxes) {
		t.Fatalf("got %d crops, want %d", len(crops), len(boxes))
	}
	for i, c := range crops {
		if got := c.Bounds().Size(); got != want[i] {
			t.Errorf("crop %d size = %v, want %v", i, got, want[i])
		}
	}

	if _, err := ExtractCrops(page, []model.BBox{model.NewBBox(0.5, 0.5, 0.2, 0.2)}); !errors.Is(err, nn.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// wordModel decodes every crop as the given class sequence
func wordModel(v Vocab, seq []int, calls *int) nn.Model {
	return nn.ModelFunc(func(batch *tensor.Tensor) (*tensor.Tensor, error) {
		*calls++
		seqs := make([][]int, batch.Dim(0))
		for i := range seqs {
			seqs[i] = seq
		}
		return oneHot(v, seqs...), nil
	})
}

func TestPredictor(t *testing.T) {
	v := mustVocab(t, French)
	seq := encode(t, v, "doctr")
	// blanks between characters keep CTC from merging anything
	var ctcSeq []int
	for _, c := range seq {
		ctcSeq = append(ctcSeq, c, v.Len())
	}

	pre, err := preprocess.New(preprocess.DefaultConfig([2]int{32, 128}, 4))
	if err != nil {
		t.Fatalf("preprocess.New() error = %v", err)
	}
	calls := 0
	p := NewPredictor(pre, wordModel(v, ctcSeq, &calls), NewCTCPostProcessor(v))

	page := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		page.Set(x, 50, color.Black)
	}
	boxes := make([]model.BBox, 10)
	for i := range boxes {
		boxes[i] = model.NewBBox(float64(i)/10, 0, float64(i+1)/10, 1)
	}
	crops, _ := ExtractCrops(page, boxes)

	out, err := p.Predict(crops)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(out) != len(crops) {
		t.Fatalf("got %d predictions, want %d", len(out), len(crops))
	}
	if calls != 3 {
		t.Errorf("model called %d times, want 3", calls)
	}
	for i, pred := range out {
		if pred.Value != "doctr" {
			t.Errorf("prediction %d = %q", i, pred.Value)
		}
	}

	if _, err := p.Predict([]image.Image{image.NewGray(image.Rect(0, 0, 64, 32))}); !errors.Is(err, nn.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if out, err := p.Predict(nil); err != nil || len(out) != 0 {
		t.Errorf("Predict(nil) = %v, %v", out, err)
	}
}

func TestPredictorPropagatesModelErrors(t *testing.T) {
	v := mustVocab(t, "ab")
	pre, _ := preprocess.New(preprocess.DefaultConfig([2]int{8, 16}, 2))
	boom := errors.New("out of memory")
	p := NewPredictor(pre, nn.ModelFunc(func(*tensor.Tensor) (*tensor.Tensor, error) {
		return nil, boom
	}), NewSARPostProcessor(v))

	if _, err := p.Predict([]image.Image{image.NewRGBA(image.Rect(0, 0, 4, 4))}); !errors.Is(err, boom) {
		t.Errorf("expected model error, got %v", err)
	}
}

// ============================================================================
// Zoo
// ============================================================================

func TestNewPredictorFromArch(t *testing.T) {
	identity := nn.ModelFunc(func(b *tensor.Tensor) (*tensor.Tensor, error) { return b, nil })

	for _, arch := range Architectures() {
		t.Run(arch, func(t *testing.T) {
			p, err := NewPredictorFromArch(arch, identity, ArchOptions{})
			if err != nil {
				t.Fatalf("NewPredictorFromArch() error = %v", err)
			}
			cfg := p.PreProcessor().Config()
			if cfg.OutputSize != [2]int{32, 128} || cfg.BatchSize != 32 {
				t.Errorf("unexpected preprocessing config %+v", cfg)
			}
			if p.PostProcessor().Vocab().Len() != 118 {
				t.Errorf("vocab size = %d, want 118", p.PostProcessor().Vocab().Len())
			}
			_, isCTC := p.PostProcessor().(*CTCPostProcessor)
			if isCTC != strings.HasPrefix(arch, "crnn") {
				t.Errorf("post-processor %T for %s", p.PostProcessor(), arch)
			}
		})
	}

	p, err := NewPredictorFromArch("sar_resnet31", identity, ArchOptions{Vocab: Digits, BatchSize: 8})
	if err != nil {
		t.Fatalf("NewPredictorFromArch() error = %v", err)
	}
	if p.PostProcessor().Vocab().Len() != 10 || p.PreProcessor().Config().BatchSize != 8 {
		t.Error("architecture options were not applied")
	}

	if _, err := NewPredictorFromArch("my_fancy_model", identity, ArchOptions{}); !errors.Is(err, nn.ErrUnknownArchitecture) {
		t.Errorf("expected ErrUnknownArchitecture, got %v", err)
	}
	if len(Architectures()) != 4 {
		t.Errorf("Architectures() = %v", Architectures())
	}
}
