package recognition

import (
	"fmt"
	"sort"
	"strings"

	"github.com/publicMindee/doctr/nn"
)

// Character sets shipped with the package
const (
	Digits       = "0123456789"
	ASCIILetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Punctuation  = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	Currency     = "£€¥¢฿"
	Latin        = Digits + ASCIILetters + Punctuation
	French       = Latin + "°" + "àâéèêëîïôùûçÀÂÉÈËÎÏÔÙÛÇ"
)

var builtinVocabs = map[string]string{
	"digits":        Digits,
	"ascii_letters": ASCIILetters,
	"punctuation":   Punctuation,
	"currency":      Currency,
	"latin":         Latin,
	"french":        French,
}

// Vocab is an ordered set of characters. The position of a character is the
// class index the models predict for it.
type Vocab struct {
	runes []rune
	index map[rune]int
}

// NewVocab creates a vocabulary from the characters of chars, in order
func NewVocab(chars string) (Vocab, error) {
	if chars == "" {
		return Vocab{}, fmt.Errorf("%w: empty vocabulary", nn.ErrInvalidConfig)
	}
	v := Vocab{index: make(map[rune]int)}
	for _, r := range chars {
		if _, dup := v.index[r]; dup {
			return Vocab{}, fmt.Errorf("%w: duplicate character %q in vocabulary", nn.ErrInvalidConfig, r)
		}
		v.index[r] = len(v.runes)
		v.runes = append(v.runes, r)
	}
	return v, nil
}

// BuiltinVocab returns one of the shipped vocabularies by name
func BuiltinVocab(name string) (Vocab, error) {
	chars, ok := builtinVocabs[name]
	if !ok {
		return Vocab{}, fmt.Errorf("%w: unknown vocabulary %q", nn.ErrInvalidConfig, name)
	}
	return NewVocab(chars)
}

// BuiltinVocabs lists the names of the shipped vocabularies
func BuiltinVocabs() []string {
	names := make([]string, 0, len(builtinVocabs))
	for name := range builtinVocabs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of characters
func (v Vocab) Len() int { return len(v.runes) }

// String returns the characters of the vocabulary
func (v Vocab) String() string { return string(v.runes) }

// Contains reports whether r belongs to the vocabulary
func (v Vocab) Contains(r rune) bool {
	_, ok := v.index[r]
	return ok
}

// Rune returns the character of class i
func (v Vocab) Rune(i int) rune { return v.runes[i] }

// Decode maps class indices back to a word, skipping indices outside the
// vocabulary
func (v Vocab) Decode(indices []int) string {
	var sb strings.Builder
	for _, i := range indices {
		if i >= 0 && i < v.Len() {
			sb.WriteRune(v.Rune(i))
		}
	}
	return sb.String()
}
