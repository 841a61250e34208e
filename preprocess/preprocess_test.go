package preprocess

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/publicMindee/doctr/nn"
)

func uniformRGBA(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func mockPages(n int) []image.Image {
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = uniformRGBA(612, 792, color.White)
	}
	return pages
}

func TestProcessBatching(t *testing.T) {
	tests := []struct {
		name      string
		numImages int
		batchSize int
		wantLast  int
	}{
		{"even split", 24, 4, 4},
		{"partial last batch", 24, 16, 8},
		{"single batch", 3, 8, 3},
		{"batch of one", 3, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pre, err := New(DefaultConfig([2]int{256, 128}, tt.batchSize))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			batches, err := pre.Process(mockPages(tt.numImages))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			wantBatches := int(math.Ceil(float64(tt.numImages) / float64(tt.batchSize)))
			if len(batches) != wantBatches {
				t.Fatalf("got %d batches, want %d", len(batches), wantBatches)
			}

			total := 0
			for i, b := range batches {
				shape := b.Images.Shape()
				if len(shape) != 4 || shape[1] != 256 || shape[2] != 128 || shape[3] != 3 {
					t.Errorf("batch %d shape = %v, want (N, 256, 128, 3)", i, shape)
				}
				if i < len(batches)-1 && shape[0] != tt.batchSize {
					t.Errorf("batch %d has %d images, want %d", i, shape[0], tt.batchSize)
				}
				if len(b.Sizes) != shape[0] {
					t.Errorf("batch %d has %d sizes for %d images", i, len(b.Sizes), shape[0])
				}
				total += shape[0]
			}
			if last := batches[len(batches)-1].Images.Dim(0); last != tt.wantLast {
				t.Errorf("last batch has %d images, want %d", last, tt.wantLast)
			}
			if total != tt.numImages {
				t.Errorf("total images = %d, want %d", total, tt.numImages)
			}
		})
	}
}

func TestTargetSize(t *testing.T) {
	fixed, _ := New(DefaultConfig([2]int{32, 128}, 1))
	fitCfg := DefaultConfig([2]int{100, 100}, 1)
	fitCfg.Mode = Fit
	fit, _ := New(fitCfg)

	tests := []struct {
		name string
		pre  *PreProcessor
		in   image.Point
		want image.Point
	}{
		{"upscale keeps ratio", fixed, image.Pt(40, 20), image.Pt(64, 32)},
		{"downscale keeps ratio", fixed, image.Pt(100, 64), image.Pt(50, 32)},
		{"width capped", fixed, image.Pt(1000, 32), image.Pt(128, 32)},
		{"very thin image", fixed, image.Pt(1, 400), image.Pt(1, 32)},
		{"fit landscape", fit, image.Pt(400, 200), image.Pt(100, 50)},
		{"fit portrait", fit, image.Pt(200, 400), image.Pt(50, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pre.TargetSize(tt.in)
			if got != tt.want {
				t.Errorf("TargetSize(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got.X > tt.pre.config.OutputSize[1] || got.Y > tt.pre.config.OutputSize[0] {
				t.Errorf("TargetSize(%v) = %v exceeds output size", tt.in, got)
			}
		})
	}
}

func TestProcessPadsAndNormalizes(t *testing.T) {
	cfg := DefaultConfig([2]int{32, 128}, 2)
	cfg.Interpolation = Nearest
	cfg.Mean = []float32{0.5, 0.5, 0.5}
	cfg.Std = []float32{0.5, 1, 2}
	pre, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	batches, err := pre.Process([]image.Image{uniformRGBA(40, 20, color.White)})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	b := batches[0]
	if b.Sizes[0] != image.Pt(64, 32) {
		t.Fatalf("content size = %v, want (64, 32)", b.Sizes[0])
	}

	// content pixel: (1 - 0.5) / std
	for ch, want := range []float32{1, 0.5, 0.25} {
		if got := b.Images.At(0, 10, 10, ch); got != want {
			t.Errorf("content channel %d = %v, want %v", ch, got, want)
		}
	}
	// padded pixel: (0 - 0.5) / std
	for ch, want := range []float32{-1, -0.5, -0.25} {
		if got := b.Images.At(0, 10, 100, ch); got != want {
			t.Errorf("padding channel %d = %v, want %v", ch, got, want)
		}
	}
}

func TestProcessGrayscale(t *testing.T) {
	cfg := DefaultConfig([2]int{16, 16}, 4)
	cfg.Channels = 1
	cfg.Mean = []float32{0}
	cfg.Std = []float32{1}
	cfg.Interpolation = Nearest
	pre, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	img := image.NewGray(image.Rect(0, 0, 16, 16))
	img.SetGray(3, 4, color.Gray{Y: 255})

	batches, err := pre.Process([]image.Image{img})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := batches[0].Images.At(0, 4, 3, 0); got != 1 {
		t.Errorf("pixel = %v, want 1", got)
	}
}

func TestProcessRejectsChannelMismatch(t *testing.T) {
	pre, _ := New(DefaultConfig([2]int{32, 128}, 2))

	inputs := []image.Image{
		uniformRGBA(10, 10, color.White),
		image.NewGray(image.Rect(0, 0, 10, 10)),
	}
	if _, err := pre.Process(inputs); !errors.Is(err, nn.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := pre.Process([]image.Image{image.NewRGBA(image.Rect(0, 0, 0, 0))}); !errors.Is(err, nn.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty image, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero height", func(c *Config) { c.OutputSize = [2]int{0, 10} }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero std", func(c *Config) { c.Std = []float32{1, 0, 1} }},
		{"short mean", func(c *Config) { c.Mean = []float32{0.5} }},
		{"bad interpolation", func(c *Config) { c.Interpolation = "lanczos" }},
		{"two channels", func(c *Config) { c.Channels = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig([2]int{32, 128}, 8)
			tt.modify(&cfg)
			if _, err := New(cfg); !errors.Is(err, nn.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestString(t *testing.T) {
	pre, _ := New(DefaultConfig([2]int{256, 128}, 4))
	want := "PreProcessor(output_size=(256, 128), mean=[0.5 0.5 0.5], std=[1 1 1])"
	if got := pre.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
