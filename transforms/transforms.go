// Package transforms provides image augmentations for training OCR models.
//
// Transforms work on (H, W, C) float tensors with values in [0, 1], as
// produced by tensor.FromImage. Pixel-wise transforms also accept batches
// since they only read the last (channel) axis. Every transform returns a
// new tensor and leaves its input untouched.
//
// Randomness comes exclusively from the *rand.Rand passed to Apply, so a
// pipeline seeded with rand.New(rand.NewSource(seed)) is reproducible:
//
//	pipeline := transforms.NewCompose(
//	    transforms.NewRandomApply(transforms.NewRandomGamma(), 0.5),
//	    transforms.NewRandomBrightness(0.3),
//	)
//	out := pipeline.Apply(img, rand.New(rand.NewSource(42)))
//
// A nil *rand.Rand falls back to the global source.
package transforms

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/publicMindee/doctr/tensor"
)

// Transform is an image augmentation.
type Transform interface {
	Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor
	fmt.Stringer
}

// Compose applies its transforms in order.
type Compose struct {
	Transforms []Transform
}

// NewCompose returns a Compose of the given transforms.
func NewCompose(ts ...Transform) *Compose {
	return &Compose{Transforms: ts}
}

// Apply implements Transform.
func (c *Compose) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	out := img
	for _, t := range c.Transforms {
		out = t.Apply(out, rng)
	}
	if out == img {
		return img.Clone()
	}
	return out
}

func (c *Compose) String() string {
	return "Compose(" + list(c.Transforms) + ")"
}

// OneOf applies a single transform picked uniformly at random.
type OneOf struct {
	Transforms []Transform
}

// NewOneOf returns a OneOf picking among the given transforms.
func NewOneOf(ts ...Transform) *OneOf {
	return &OneOf{Transforms: ts}
}

// Apply implements Transform.
func (o *OneOf) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	if len(o.Transforms) == 0 {
		return img.Clone()
	}
	return o.Transforms[intn(rng, len(o.Transforms))].Apply(img, rng)
}

func (o *OneOf) String() string {
	return "OneOf(" + list(o.Transforms) + ")"
}

// RandomApply applies its transform with probability P.
type RandomApply struct {
	Transform Transform
	P         float64
}

// NewRandomApply returns a RandomApply of t with probability p.
func NewRandomApply(t Transform, p float64) *RandomApply {
	return &RandomApply{Transform: t, P: p}
}

// Apply implements Transform.
func (r *RandomApply) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	if float01(rng) < r.P {
		return r.Transform.Apply(img, rng)
	}
	return img.Clone()
}

func (r *RandomApply) String() string {
	return fmt.Sprintf("RandomApply(transform=%v, p=%g)", r.Transform, r.P)
}

// LambdaTransformation wraps a deterministic function.
type LambdaTransformation struct {
	Fn func(*tensor.Tensor) *tensor.Tensor
}

// NewLambdaTransformation returns a transform calling fn on a copy of its
// input.
func NewLambdaTransformation(fn func(*tensor.Tensor) *tensor.Tensor) *LambdaTransformation {
	return &LambdaTransformation{Fn: fn}
}

// Apply implements Transform.
func (l *LambdaTransformation) Apply(img *tensor.Tensor, _ *rand.Rand) *tensor.Tensor {
	return l.Fn(img.Clone())
}

func (l *LambdaTransformation) String() string {
	return "LambdaTransformation()"
}

func list(ts []Transform) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func float01(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64()
	}
	return rng.Float64()
}

func intn(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.Intn(n)
	}
	return rng.Intn(n)
}

// uniform draws from [lo, hi)
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*float01(rng)
}

// channels returns the size of the last axis
func channels(t *tensor.Tensor) int {
	if t.Rank() == 0 {
		return 0
	}
	return t.Dim(t.Rank() - 1)
}
