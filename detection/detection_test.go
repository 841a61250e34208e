package detection

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/preprocess"
	"github.com/publicMindee/doctr/tensor"
)

const eps = 1e-9

// probMap builds an (n, h, w) map with the rectangle [x0, x1] x [y0, y1]
// (inclusive) set to value in every map
func probMap(n, h, w, x0, y0, x1, y1 int, value float32) *tensor.Tensor {
	t := tensor.New(n, h, w)
	for i := 0; i < n; i++ {
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				t.Set(value, i, y, x)
			}
		}
	}
	return t
}

// ============================================================================
// Mask and geometry helpers
// ============================================================================

func TestComponentsConnectivity(t *testing.T) {
	m := newMask(4, 4)
	m.pix[0*4+0] = true
	m.pix[1*4+1] = true
	m.pix[3*4+3] = true

	if got := len(m.components(Connect8)); got != 2 {
		t.Errorf("8-connected components = %d, want 2", got)
	}
	if got := len(m.components(Connect4)); got != 3 {
		t.Errorf("4-connected components = %d, want 3", got)
	}
}

func TestContourOfRectangle(t *testing.T) {
	m := newMask(10, 10)
	for y := 3; y <= 5; y++ {
		for x := 2; x <= 5; x++ {
			m.pix[y*10+x] = true
		}
	}

	comps := m.components(Connect8)
	if len(comps) != 1 {
		t.Fatalf("got %d components", len(comps))
	}
	contour := m.contour(comps[0].pixels[0])
	if len(contour) != 10 {
		t.Errorf("contour has %d points, want 10: %v", len(contour), contour)
	}
	if a := polygonArea(contour); math.Abs(a-6) > eps {
		t.Errorf("area = %v, want 6", a)
	}
	if p := polygonPerimeter(contour); math.Abs(p-10) > eps {
		t.Errorf("perimeter = %v, want 10", p)
	}
}

func TestContourOfSinglePixel(t *testing.T) {
	m := newMask(3, 3)
	m.pix[4] = true
	contour := m.contour(4)
	if len(contour) != 1 {
		t.Fatalf("contour = %v, want one point", contour)
	}
	if unclipDistance(contour, 1.5) != 0 {
		t.Error("a single pixel has no unclip distance")
	}
}

func TestOpenRemovesSpecks(t *testing.T) {
	m := newMask(12, 12)
	// 2x2 speck
	m.pix[1*12+1], m.pix[1*12+2], m.pix[2*12+1], m.pix[2*12+2] = true, true, true, true
	// 4x4 block
	for y := 6; y <= 9; y++ {
		for x := 6; x <= 9; x++ {
			m.pix[y*12+x] = true
		}
	}

	opened := m.open()
	comps := opened.components(Connect4)
	if len(comps) != 1 {
		t.Fatalf("got %d components after opening, want 1", len(comps))
	}
	c := comps[0]
	if c.minX != 6 || c.minY != 6 || c.maxX != 9 || c.maxY != 9 {
		t.Errorf("block extent changed: (%d,%d)-(%d,%d)", c.minX, c.minY, c.maxX, c.maxY)
	}
}

func TestConvexHull(t *testing.T) {
	pts := []model.Point{
		{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2},
		{X: 1, Y: 1}, {X: 1, Y: 0},
	}
	hull := convexHull(pts)
	if len(hull) != 4 {
		t.Errorf("hull = %v, want the 4 corners", hull)
	}
	if a := polygonArea(hull); math.Abs(a-4) > eps {
		t.Errorf("hull area = %v, want 4", a)
	}
}

func TestMinAreaRect(t *testing.T) {
	tests := []struct {
		name string
		pts  []model.Point
		area float64
	}{
		{
			name: "axis aligned",
			pts:  []model.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 2}, {X: 0, Y: 2}},
			area: 8,
		},
		{
			name: "diamond",
			pts:  []model.Point{{X: 0, Y: 1}, {X: 1, Y: 0}, {X: 2, Y: 1}, {X: 1, Y: 2}},
			area: 2,
		},
		{
			name: "segment",
			pts:  []model.Point{{X: 0, Y: 0}, {X: 3, Y: 3}},
			area: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rect := minAreaRect(tt.pts)
			if math.Abs(rect.area()-tt.area) > 1e-6 {
				t.Errorf("area = %v, want %v", rect.area(), tt.area)
			}
			for _, p := range tt.pts {
				if !model.PolygonBBox(rect.grow(1e-6).corners()).ContainsPoint(p) {
					t.Errorf("point %v outside of rectangle %v", p, rect.corners())
				}
			}
		})
	}
}

// ============================================================================
// Post-processors
// ============================================================================

func TestPostProcessorsOnEmptyMap(t *testing.T) {
	for _, name := range PostProcessors() {
		t.Run(name, func(t *testing.T) {
			post, err := NewPostProcessor(name)
			if err != nil {
				t.Fatalf("NewPostProcessor() error = %v", err)
			}
			out, err := post.Process(tensor.New(3, 32, 32))
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(out) != 3 {
				t.Fatalf("got %d results, want 3", len(out))
			}
			for i, regions := range out {
				if regions == nil || len(regions) != 0 {
					t.Errorf("map %d: got %v, want an empty list", i, regions)
				}
			}
		})
	}
}

func TestLinkNetSingleRectangle(t *testing.T) {
	out, err := NewLinkNetPostProcessor().Process(probMap(2, 64, 64, 10, 20, 19, 24, 1))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := model.NewBBox(10.0/64, 20.0/64, 20.0/64, 25.0/64)
	for i, regions := range out {
		if len(regions) != 1 {
			t.Fatalf("map %d: got %d regions, want 1", i, len(regions))
		}
		r := regions[0]
		if r.Box != want {
			t.Errorf("map %d: box = %v, want %v", i, r.Box, want)
		}
		if r.Score != 1 {
			t.Errorf("map %d: score = %v, want 1", i, r.Score)
		}
		if len(r.Polygon) != 4 {
			t.Errorf("map %d: polygon has %d points", i, len(r.Polygon))
		}
	}
}

func TestDBSingleRectangle(t *testing.T) {
	const w, h = 64, 64
	x0, y0, x1, y1 := 10, 20, 19, 24

	out, err := NewDBPostProcessor().Process(probMap(1, h, w, x0, y0, x1, y1, 1))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out[0]) != 1 {
		t.Fatalf("got %d regions, want 1", len(out[0]))
	}
	r := out[0][0]

	source := model.NewBBox(float64(x0)/w, float64(y0)/h, float64(x1+1)/w, float64(y1+1)/h)
	if !r.Box.Contains(source) {
		t.Errorf("box %v does not contain the source rectangle %v", r.Box, source)
	}

	// contour of pixel centres is a (w-1) x (h-1) rectangle
	cw, ch := float64(x1-x0), float64(y1-y0)
	d := cw * ch * 1.5 / (2 * (cw + ch))
	want := model.NewBBox(
		math.Floor(float64(x0)-d)/w,
		math.Floor(float64(y0)-d)/h,
		(math.Ceil(float64(x1)+d)+1)/w,
		(math.Ceil(float64(y1)+d)+1)/h,
	)
	if math.Abs(r.Box.Min.X-want.Min.X) > eps || math.Abs(r.Box.Max.X-want.Max.X) > eps ||
		math.Abs(r.Box.Min.Y-want.Min.Y) > eps || math.Abs(r.Box.Max.Y-want.Max.Y) > eps {
		t.Errorf("box = %v, want %v", r.Box, want)
	}
}

func TestDBRotatedBoxes(t *testing.T) {
	cfg := DefaultDBConfig()
	cfg.RotatedBoxes = true
	post, err := NewDBPostProcessorWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewDBPostProcessorWithConfig() error = %v", err)
	}

	out, err := post.Process(probMap(1, 64, 64, 10, 20, 29, 27, 0.9))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out[0]) != 1 {
		t.Fatalf("got %d regions, want 1", len(out[0]))
	}
	r := out[0][0]
	if len(r.Polygon) != 4 {
		t.Fatalf("polygon has %d points, want 4", len(r.Polygon))
	}
	source := model.NewBBox(10.0/64, 20.0/64, 30.0/64, 28.0/64)
	if !r.Box.Contains(source) {
		t.Errorf("box %v does not contain the source rectangle %v", r.Box, source)
	}
	if math.Abs(r.Score-0.9) > 1e-6 {
		t.Errorf("score = %v, want 0.9", r.Score)
	}
}

func TestRegionFiltering(t *testing.T) {
	tests := []struct {
		name string
		post PostProcessor
		prob *tensor.Tensor
	}{
		{"db too thin", NewDBPostProcessor(), probMap(1, 32, 32, 5, 5, 20, 6, 1)},
		{"linknet too thin", NewLinkNetPostProcessor(), probMap(1, 32, 32, 5, 5, 20, 6, 1)},
		{"linknet low score", NewLinkNetPostProcessor(), probMap(1, 32, 32, 5, 5, 20, 15, 0.6)},
		{"db below binarization", NewDBPostProcessor(), probMap(1, 32, 32, 5, 5, 20, 15, 0.2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.post.Process(tt.prob)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if len(out[0]) != 0 {
				t.Errorf("got %d regions, want none", len(out[0]))
			}
		})
	}
}

func TestMaxCandidates(t *testing.T) {
	prob := tensor.New(1, 32, 32)
	for _, x0 := range []int{1, 10, 20} {
		for y := 5; y < 10; y++ {
			for x := x0; x < x0+5; x++ {
				prob.Set(1, 0, y, x)
			}
		}
	}

	cfg := DefaultLinkNetConfig()
	cfg.MaxCandidates = 2
	post, err := NewLinkNetPostProcessorWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewLinkNetPostProcessorWithConfig() error = %v", err)
	}
	out, _ := post.Process(prob)
	if len(out[0]) != 2 {
		t.Errorf("got %d regions, want 2", len(out[0]))
	}

	out, _ = NewLinkNetPostProcessor().Process(prob)
	if len(out[0]) != 3 {
		t.Errorf("got %d regions, want 3", len(out[0]))
	}
}

func TestProcessRejectsBadShape(t *testing.T) {
	for _, shape := range [][]int{{32, 32}, {1, 32, 32, 2}} {
		if _, err := NewDBPostProcessor().Process(tensor.New(shape...)); !errors.Is(err, nn.ErrInvalidInput) {
			t.Errorf("shape %v: expected ErrInvalidInput, got %v", shape, err)
		}
	}
	if _, err := NewLinkNetPostProcessor().Process(tensor.New(2, 16, 16, 1)); err != nil {
		t.Errorf("trailing channel axis should be accepted, got %v", err)
	}
}

func TestNewPostProcessorUnknown(t *testing.T) {
	if _, err := NewPostProcessor("CRAFTPostProcessor"); !errors.Is(err, nn.ErrUnknownArchitecture) {
		t.Errorf("expected ErrUnknownArchitecture, got %v", err)
	}
}

func TestInvalidConfigs(t *testing.T) {
	db := DefaultDBConfig()
	db.BinThresh = 1.5
	if _, err := NewDBPostProcessorWithConfig(db); !errors.Is(err, nn.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	ln := DefaultLinkNetConfig()
	ln.MaxCandidates = 0
	if _, err := NewLinkNetPostProcessorWithConfig(ln); !errors.Is(err, nn.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

// ============================================================================
// Predictor
// ============================================================================

func smallPreProcessor(t *testing.T, channels int) *preprocess.PreProcessor {
	t.Helper()
	cfg := preprocess.DefaultConfig([2]int{32, 32}, 2)
	cfg.Mode = preprocess.Fit
	cfg.Channels = channels
	if channels == 1 {
		cfg.Mean, cfg.Std = []float32{0.5}, []float32{1}
	}
	pre, err := preprocess.New(cfg)
	if err != nil {
		t.Fatalf("preprocess.New() error = %v", err)
	}
	return pre
}

// rectModel outputs a fixed rectangle on every map
func rectModel(calls *int) nn.Model {
	return nn.ModelFunc(func(batch *tensor.Tensor) (*tensor.Tensor, error) {
		*calls++
		return probMap(batch.Dim(0), 32, 32, 4, 4, 11, 7, 1), nil
	})
}

func TestPredictorRescalesToPage(t *testing.T) {
	calls := 0
	p := NewPredictor(smallPreProcessor(t, 3), rectModel(&calls), NewLinkNetPostProcessor())

	// 64x32 pages are fitted to 32x16 content inside the 32x32 input
	pages := []image.Image{
		image.NewRGBA(image.Rect(0, 0, 64, 32)),
		image.NewRGBA(image.Rect(0, 0, 64, 32)),
		image.NewRGBA(image.Rect(0, 0, 64, 32)),
	}
	out, err := p.Predict(pages)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("model called %d times, want 2", calls)
	}
	if len(out) != len(pages) {
		t.Fatalf("got %d results, want %d", len(out), len(pages))
	}

	want := model.NewBBox(4.0/32, 8.0/32, 12.0/32, 16.0/32)
	for i, regions := range out {
		if len(regions) != 1 {
			t.Fatalf("page %d: got %d regions", i, len(regions))
		}
		b := regions[0].Box
		if math.Abs(b.Min.X-want.Min.X) > eps || math.Abs(b.Min.Y-want.Min.Y) > eps ||
			math.Abs(b.Max.X-want.Max.X) > eps || math.Abs(b.Max.Y-want.Max.Y) > eps {
			t.Errorf("page %d: box = %v, want %v", i, b, want)
		}
	}
}

func TestRescaleDropsPaddingRegions(t *testing.T) {
	onContent := model.NewBBox(0.1, 0.1, 0.3, 0.2)
	onPadding := model.NewBBox(0.6, 0.1, 0.8, 0.2)
	regions := []Region{
		{Box: onContent, Polygon: axisPolygon(onContent), Score: 0.9},
		{Box: onPadding, Polygon: axisPolygon(onPadding), Score: 0.8},
	}

	// content fills the left half of a 64x64 input
	out := rescale(regions, image.Pt(32, 64), [2]int{64, 64})
	if len(out) != 1 {
		t.Fatalf("got %d regions, want 1", len(out))
	}
	want := model.NewBBox(0.2, 0.1, 0.6, 0.2)
	b := out[0].Box
	if math.Abs(b.Min.X-want.Min.X) > eps || math.Abs(b.Max.X-want.Max.X) > eps ||
		math.Abs(b.Min.Y-want.Min.Y) > eps || math.Abs(b.Max.Y-want.Max.Y) > eps {
		t.Errorf("box = %v, want %v", b, want)
	}
	if out[0].Score != 0.9 {
		t.Errorf("score = %v, want 0.9", out[0].Score)
	}
}

func TestPredictorChannelMismatch(t *testing.T) {
	calls := 0
	p := NewPredictor(smallPreProcessor(t, 3), rectModel(&calls), NewDBPostProcessor())

	_, err := p.Predict([]image.Image{image.NewGray(image.Rect(0, 0, 20, 20))})
	if !errors.Is(err, nn.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if calls != 0 {
		t.Errorf("model must not be called on invalid input, got %d calls", calls)
	}
}

func TestPredictorNoPages(t *testing.T) {
	calls := 0
	p := NewPredictor(smallPreProcessor(t, 1), rectModel(&calls), NewDBPostProcessor())
	out, err := p.Predict(nil)
	if err != nil || len(out) != 0 || calls != 0 {
		t.Errorf("Predict(nil) = %v, %v after %d calls", out, err, calls)
	}
}

// ============================================================================
// Zoo
// ============================================================================

func TestNewPredictorFromArch(t *testing.T) {
	identity := nn.ModelFunc(func(b *tensor.Tensor) (*tensor.Tensor, error) { return b, nil })

	tests := []struct {
		arch string
		post string
	}{
		{"db_resnet50", "*detection.DBPostProcessor"},
		{"linknet", "*detection.LinkNetPostProcessor"},
	}
	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			p, err := NewPredictorFromArch(tt.arch, identity, ArchOptions{BatchSize: 4})
			if err != nil {
				t.Fatalf("NewPredictorFromArch() error = %v", err)
			}
			cfg := p.PreProcessor().Config()
			if cfg.OutputSize != [2]int{1024, 1024} || cfg.BatchSize != 4 || cfg.Mode != preprocess.Fit {
				t.Errorf("unexpected preprocessing config %+v", cfg)
			}
			switch tt.arch {
			case "db_resnet50":
				if _, ok := p.PostProcessor().(*DBPostProcessor); !ok {
					t.Errorf("post-processor = %T, want %s", p.PostProcessor(), tt.post)
				}
			case "linknet":
				if _, ok := p.PostProcessor().(*LinkNetPostProcessor); !ok {
					t.Errorf("post-processor = %T, want %s", p.PostProcessor(), tt.post)
				}
			}
		})
	}

	if _, err := NewPredictorFromArch("not_a_model", identity, ArchOptions{}); !errors.Is(err, nn.ErrUnknownArchitecture) {
		t.Errorf("expected ErrUnknownArchitecture, got %v", err)
	}
	if got := Architectures(); len(got) != 2 || got[0] != "db_resnet50" || got[1] != "linknet" {
		t.Errorf("Architectures() = %v", got)
	}
}
