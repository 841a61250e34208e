package transforms

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/publicMindee/doctr/tensor"
)

// Luma weights of the RGB to grayscale conversion
const (
	lumaR = 0.2989
	lumaG = 0.5870
	lumaB = 0.1140
)

// ToGray converts RGB pixels to gray, repeated on the three channels so
// the channel count is preserved. Single-channel inputs are copied as is.
type ToGray struct{}

// Apply implements Transform.
func (ToGray) Apply(img *tensor.Tensor, _ *rand.Rand) *tensor.Tensor {
	out := img.Clone()
	if channels(img) != 3 {
		return out
	}
	data := out.Data()
	for i := 0; i+2 < len(data); i += 3 {
		g := lumaR*data[i] + lumaG*data[i+1] + lumaB*data[i+2]
		data[i], data[i+1], data[i+2] = g, g, g
	}
	return out
}

func (ToGray) String() string {
	return "ToGray()"
}

// ColorInversion converts the image to gray, tints it with a random color
// whose channels are drawn in [MinVal, 1) and inverts it.
type ColorInversion struct {
	MinVal float64
}

// NewColorInversion returns a ColorInversion. The usual value is 0.6.
func NewColorInversion(minVal float64) *ColorInversion {
	return &ColorInversion{MinVal: minVal}
}

// Apply implements Transform. The output always has three channels.
func (c *ColorInversion) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	ch := channels(img)
	if ch == 0 {
		return img.Clone()
	}
	var shift [3]float32
	for i := range shift {
		shift[i] = float32(uniform(rng, c.MinVal, 1))
	}

	shape := img.Shape()
	shape[len(shape)-1] = 3
	out := tensor.New(shape...)
	src, dst := img.Data(), out.Data()
	for p := 0; p*ch < len(src); p++ {
		var g float32
		if ch >= 3 {
			g = lumaR*src[p*ch] + lumaG*src[p*ch+1] + lumaB*src[p*ch+2]
		} else {
			g = src[p*ch]
		}
		for k := 0; k < 3; k++ {
			dst[p*3+k] = 1 - g*shift[k]
		}
	}
	return out
}

func (c *ColorInversion) String() string {
	return fmt.Sprintf("ColorInversion(min_val=%g)", c.MinVal)
}

// RandomBrightness adds a delta drawn in [-MaxDelta, MaxDelta) to every
// value.
type RandomBrightness struct {
	MaxDelta float64
}

// NewRandomBrightness returns a RandomBrightness. The usual value is 0.3.
func NewRandomBrightness(maxDelta float64) *RandomBrightness {
	return &RandomBrightness{MaxDelta: maxDelta}
}

// Apply implements Transform.
func (b *RandomBrightness) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	delta := float32(uniform(rng, -b.MaxDelta, b.MaxDelta))
	out := img.Clone()
	data := out.Data()
	for i := range data {
		data[i] += delta
	}
	return out
}

func (b *RandomBrightness) String() string {
	return fmt.Sprintf("RandomBrightness(max_delta=%g)", b.MaxDelta)
}

// RandomContrast scales each channel around its mean by a factor drawn in
// [1-Delta, 1+Delta).
type RandomContrast struct {
	Delta float64
}

// NewRandomContrast returns a RandomContrast. The usual value is 0.3.
func NewRandomContrast(delta float64) *RandomContrast {
	return &RandomContrast{Delta: delta}
}

// Apply implements Transform.
func (c *RandomContrast) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	factor := float32(uniform(rng, 1-c.Delta, 1+c.Delta))
	out := img.Clone()
	ch := channels(img)
	if ch == 0 {
		return out
	}

	data := out.Data()
	means := make([]float64, ch)
	for i, v := range data {
		means[i%ch] += float64(v)
	}
	pixels := float64(len(data) / ch)
	for k := range means {
		means[k] /= math.Max(pixels, 1)
	}
	for i, v := range data {
		m := float32(means[i%ch])
		data[i] = (v-m)*factor + m
	}
	return out
}

func (c *RandomContrast) String() string {
	return fmt.Sprintf("RandomContrast(delta=%g)", c.Delta)
}

// RandomSaturation multiplies the HSV saturation of RGB pixels by a factor
// drawn in [1-Delta, 1+Delta).
type RandomSaturation struct {
	Delta float64
}

// NewRandomSaturation returns a RandomSaturation. The usual value is 0.5.
func NewRandomSaturation(delta float64) *RandomSaturation {
	return &RandomSaturation{Delta: delta}
}

// Apply implements Transform. Inputs without three channels are copied.
func (s *RandomSaturation) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	factor := uniform(rng, 1-s.Delta, 1+s.Delta)
	return mapHSV(img, func(h, sat, v float64) (float64, float64, float64) {
		return h, clamp(sat*factor, 0, 1), v
	})
}

func (s *RandomSaturation) String() string {
	return fmt.Sprintf("RandomSaturation(delta=%g)", s.Delta)
}

// RandomHue rotates the HSV hue of RGB pixels by a delta drawn in
// [-MaxDelta, MaxDelta), expressed as a fraction of a full turn.
type RandomHue struct {
	MaxDelta float64
}

// NewRandomHue returns a RandomHue. The usual value is 0.3.
func NewRandomHue(maxDelta float64) *RandomHue {
	return &RandomHue{MaxDelta: maxDelta}
}

// Apply implements Transform. Inputs without three channels are copied.
func (r *RandomHue) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	delta := uniform(rng, -r.MaxDelta, r.MaxDelta)
	return mapHSV(img, func(h, s, v float64) (float64, float64, float64) {
		h = math.Mod(h+delta, 1)
		if h < 0 {
			h++
		}
		return h, s, v
	})
}

func (r *RandomHue) String() string {
	return fmt.Sprintf("RandomHue(max_delta=%g)", r.MaxDelta)
}

// RandomGamma applies gain * x^gamma with gamma and gain drawn from their
// ranges.
type RandomGamma struct {
	MinGamma, MaxGamma float64
	MinGain, MaxGain   float64
}

// NewRandomGamma returns a RandomGamma with gamma in [0.5, 1.5) and gain in
// [0.8, 1.2).
func NewRandomGamma() *RandomGamma {
	return &RandomGamma{MinGamma: 0.5, MaxGamma: 1.5, MinGain: 0.8, MaxGain: 1.2}
}

// Apply implements Transform.
func (g *RandomGamma) Apply(img *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	gamma := uniform(rng, g.MinGamma, g.MaxGamma)
	gain := uniform(rng, g.MinGain, g.MaxGain)
	out := img.Clone()
	data := out.Data()
	for i, v := range data {
		data[i] = float32(gain * math.Pow(float64(v), gamma))
	}
	return out
}

func (g *RandomGamma) String() string {
	return fmt.Sprintf("RandomGamma(gamma_range=(%g, %g), gain_range=(%g, %g))", g.MinGamma, g.MaxGamma, g.MinGain, g.MaxGain)
}

// mapHSV applies fn to every RGB pixel in HSV space, all components in [0, 1]
func mapHSV(img *tensor.Tensor, fn func(h, s, v float64) (float64, float64, float64)) *tensor.Tensor {
	out := img.Clone()
	if channels(img) != 3 {
		return out
	}
	data := out.Data()
	for i := 0; i+2 < len(data); i += 3 {
		h, s, v := rgbToHSV(float64(data[i]), float64(data[i+1]), float64(data[i+2]))
		r, g, b := hsvToRGB(fn(h, s, v))
		data[i], data[i+1], data[i+2] = float32(r), float32(g), float32(b)
	}
	return out
}

func rgbToHSV(r, g, b float64) (h, s, v float64) {
	v = math.Max(r, math.Max(g, b))
	m := math.Min(r, math.Min(g, b))
	d := v - m
	if v > 0 {
		s = d / v
	}
	if d == 0 {
		return 0, s, v
	}

	switch v {
	case r:
		h = (g - b) / d
	case g:
		h = 2 + (b-r)/d
	default:
		h = 4 + (r-g)/d
	}
	h /= 6
	if h < 0 {
		h++
	}
	return h, s, v
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	h = math.Mod(h, 1) * 6
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch int(i) {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
