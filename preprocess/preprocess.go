// Package preprocess turns lists of variable-sized images into normalized,
// fixed-size batches ready to be fed to a model.
//
// Each image is resized (aspect ratio preserved), zero-padded on the right
// and bottom up to the configured output size, grouped into batches and
// normalized per channel:
//
//	pre, err := preprocess.New(preprocess.DefaultConfig([2]int{32, 128}, 8))
//	if err != nil {
//	    // handle error
//	}
//	batches, err := pre.Process(images)
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/tensor"
)

// Interpolation selects the resampling kernel used when resizing
type Interpolation string

const (
	Nearest        Interpolation = "nearest"
	Bilinear       Interpolation = "bilinear"
	ApproxBilinear Interpolation = "approx-bilinear"
	Bicubic        Interpolation = "bicubic"
)

// Scaler returns the x/image/draw scaler for the interpolation and whether
// the interpolation is known.
func (i Interpolation) Scaler() (draw.Scaler, bool) {
	switch i {
	case Nearest:
		return draw.NearestNeighbor, true
	case Bilinear, "":
		return draw.BiLinear, true
	case ApproxBilinear:
		return draw.ApproxBiLinear, true
	case Bicubic:
		return draw.CatmullRom, true
	default:
		return nil, false
	}
}

// Mode selects how images are fitted into the output size
type Mode int

const (
	// FixedHeight scales images to the output height. The width follows the
	// aspect ratio and is capped at the output width.
	FixedHeight Mode = iota
	// Fit scales images so they fit entirely inside the output size while
	// preserving their aspect ratio.
	Fit
)

// String returns a string representation of the mode
func (m Mode) String() string {
	switch m {
	case FixedHeight:
		return "fixed-height"
	case Fit:
		return "fit"
	default:
		return "unknown"
	}
}

// Config holds the preprocessing settings
type Config struct {
	// OutputSize is the (height, width) of every processed image
	OutputSize [2]int

	// BatchSize is the maximum number of images per batch
	BatchSize int

	// Mean and Std are the per-channel statistics of the training
	// distribution, in the [0, 1] pixel domain
	Mean []float32
	Std  []float32

	// Interpolation is the resampling kernel (default: bilinear)
	Interpolation Interpolation

	// Mode is the resize strategy (default: FixedHeight)
	Mode Mode

	// Channels is the number of channels expected from input images (default: 3)
	Channels int
}

// DefaultConfig returns a configuration with mean 0.5 and std 1 for each of
// the three RGB channels.
func DefaultConfig(outputSize [2]int, batchSize int) Config {
	return Config{
		OutputSize:    outputSize,
		BatchSize:     batchSize,
		Mean:          []float32{0.5, 0.5, 0.5},
		Std:           []float32{1, 1, 1},
		Interpolation: Bilinear,
		Mode:          FixedHeight,
		Channels:      3,
	}
}

// Batch is a group of processed images
type Batch struct {
	// Images is the normalized (N, H, W, C) tensor
	Images *tensor.Tensor

	// Sizes holds, for each image, the size of the resized content before
	// padding. Pixels outside of it are padding.
	Sizes []image.Point
}

// PreProcessor resizes, pads, batches and normalizes images. It holds only
// immutable configuration and is safe to reuse across calls.
type PreProcessor struct {
	config Config
	scaler draw.Scaler
}

// New validates the configuration and creates a PreProcessor
func New(config Config) (*PreProcessor, error) {
	if config.Channels == 0 {
		config.Channels = 3
	}
	if config.OutputSize[0] <= 0 || config.OutputSize[1] <= 0 {
		return nil, fmt.Errorf("%w: output size %v must be positive", nn.ErrInvalidConfig, config.OutputSize)
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d must be positive", nn.ErrInvalidConfig, config.BatchSize)
	}
	if config.Channels != 1 && config.Channels != 3 && config.Channels != 4 {
		return nil, fmt.Errorf("%w: unsupported channel count %d", nn.ErrInvalidConfig, config.Channels)
	}
	if len(config.Mean) != config.Channels || len(config.Std) != config.Channels {
		return nil, fmt.Errorf("%w: mean and std need %d values, got %d and %d",
			nn.ErrInvalidConfig, config.Channels, len(config.Mean), len(config.Std))
	}
	for _, s := range config.Std {
		if s == 0 {
			return nil, fmt.Errorf("%w: std must be non-zero", nn.ErrInvalidConfig)
		}
	}
	scaler, ok := config.Interpolation.Scaler()
	if !ok {
		return nil, fmt.Errorf("%w: unknown interpolation %q", nn.ErrInvalidConfig, config.Interpolation)
	}

	config.Mean = append([]float32(nil), config.Mean...)
	config.Std = append([]float32(nil), config.Std...)
	return &PreProcessor{config: config, scaler: scaler}, nil
}

// Config returns a copy of the configuration
func (p *PreProcessor) Config() Config {
	c := p.config
	c.Mean = append([]float32(nil), c.Mean...)
	c.Std = append([]float32(nil), c.Std...)
	return c
}

// String mirrors the configuration, e.g.
// PreProcessor(output_size=(32, 128), mean=[0.5 0.5 0.5], std=[1 1 1])
func (p *PreProcessor) String() string {
	return fmt.Sprintf("PreProcessor(output_size=(%d, %d), mean=%v, std=%v)",
		p.config.OutputSize[0], p.config.OutputSize[1], p.config.Mean, p.config.Std)
}

// Validate checks that every image has the expected number of channels and
// a non-empty size.
func (p *PreProcessor) Validate(images []image.Image) error {
	for i, img := range images {
		if img == nil {
			return fmt.Errorf("%w: image %d is nil", nn.ErrInvalidInput, i)
		}
		if img.Bounds().Empty() {
			return fmt.Errorf("%w: image %d is empty", nn.ErrInvalidInput, i)
		}
		if c := tensor.Channels(img); c != p.config.Channels {
			return fmt.Errorf("%w: image %d has %d channels, expected %d", nn.ErrInvalidInput, i, c, p.config.Channels)
		}
	}
	return nil
}

// Process prepares images for model forwarding and returns the batches in
// input order. The last batch holds the remaining images.
func (p *PreProcessor) Process(images []image.Image) ([]Batch, error) {
	if err := p.Validate(images); err != nil {
		return nil, err
	}

	var batches []Batch
	for start := 0; start < len(images); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(images) {
			end = len(images)
		}
		batches = append(batches, p.batch(images[start:end]))
	}
	return batches, nil
}

// batch resizes, pads and normalizes a group of images
func (p *PreProcessor) batch(images []image.Image) Batch {
	h, w, c := p.config.OutputSize[0], p.config.OutputSize[1], p.config.Channels
	out := tensor.New(len(images), h, w, c)
	data := out.Data()
	sizes := make([]image.Point, len(images))

	stride := h * w * c
	for n, img := range images {
		resized := p.Resize(img)
		sizes[n] = resized.Bounds().Size()
		p.fill(data[n*stride:(n+1)*stride], resized)
	}

	// Padding is zero-valued before normalization, like the content pixels.
	for i := range data {
		ch := i % c
		data[i] = (data[i] - p.config.Mean[ch]) / p.config.Std[ch]
	}

	return Batch{Images: out, Sizes: sizes}
}

// TargetSize returns the (width, height) an image of the given size is
// resized to. It never exceeds the output size.
func (p *PreProcessor) TargetSize(size image.Point) image.Point {
	outH, outW := p.config.OutputSize[0], p.config.OutputSize[1]
	imgW, imgH := float64(size.X), float64(size.Y)

	var newW, newH int
	switch p.config.Mode {
	case Fit:
		scale := math.Min(float64(outH)/imgH, float64(outW)/imgW)
		newH = int(math.Round(imgH * scale))
		newW = int(math.Round(imgW * scale))
	default:
		scale := float64(outH) / imgH
		newH = outH
		newW = int(scale * imgW)
	}

	return image.Pt(clampInt(newW, 1, outW), clampInt(newH, 1, outH))
}

// Resize scales an image to its target size using the configured
// interpolation. The returned image has its origin at (0, 0).
func (p *PreProcessor) Resize(img image.Image) image.Image {
	size := p.TargetSize(img.Bounds().Size())
	rect := image.Rect(0, 0, size.X, size.Y)

	var dst draw.Image
	switch p.config.Channels {
	case 1:
		dst = image.NewGray(rect)
	case 4:
		dst = image.NewCMYK(rect)
	default:
		dst = image.NewRGBA(rect)
	}
	p.scaler.Scale(dst, rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// fill writes the pixels of img, scaled to [0, 1], in the top-left corner of
// an (H, W, C) buffer.
func (p *PreProcessor) fill(buf []float32, img image.Image) {
	w, c := p.config.OutputSize[1], p.config.Channels
	b := img.Bounds()

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := (y*w + x) * c
			switch src := img.(type) {
			case *image.Gray:
				buf[i] = float32(src.GrayAt(x, y).Y) / 255
			case *image.CMYK:
				k := src.CMYKAt(x, y)
				buf[i] = float32(k.C) / 255
				buf[i+1] = float32(k.M) / 255
				buf[i+2] = float32(k.Y) / 255
				buf[i+3] = float32(k.K) / 255
			case *image.RGBA:
				px := src.RGBAAt(x, y)
				buf[i] = float32(px.R) / 255
				buf[i+1] = float32(px.G) / 255
				buf[i+2] = float32(px.B) / 255
			default:
				px := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				buf[i] = float32(px.R) / 255
				buf[i+1] = float32(px.G) / 255
				buf[i+2] = float32(px.B) / 255
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
