package detection

import (
	"fmt"
	"math"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/tensor"
)

// DBConfig holds the settings of the differentiable binarization post-processor
type DBConfig struct {
	// BinThresh is the probability above which a pixel is text (default: 0.3)
	BinThresh float64

	// BoxThresh is the minimum mean probability of a kept region (default: 0.1)
	BoxThresh float64

	// UnclipRatio controls how much boxes are expanded (default: 1.5)
	UnclipRatio float64

	// MinSizeBox is the minimum side of a kept region, in pixels (default: 3)
	MinSizeBox int

	// MaxCandidates caps the number of components examined per map (default: 1000)
	MaxCandidates int

	// RotatedBoxes outputs minimum-area rotated rectangles in Region.Polygon
	RotatedBoxes bool
}

// DefaultDBConfig returns the settings the DB models were trained with
func DefaultDBConfig() DBConfig {
	return DBConfig{
		BinThresh:     0.3,
		BoxThresh:     0.1,
		UnclipRatio:   1.5,
		MinSizeBox:    3,
		MaxCandidates: 1000,
	}
}

// DBPostProcessor extracts regions from DB probability maps.
//
// DB models predict text kernels shrunk at training time, so each region is
// expanded by area*UnclipRatio/perimeter of its contour.
type DBPostProcessor struct {
	config DBConfig
}

// NewDBPostProcessor creates a DB post-processor with default settings
func NewDBPostProcessor() *DBPostProcessor {
	return &DBPostProcessor{config: DefaultDBConfig()}
}

// NewDBPostProcessorWithConfig creates a DB post-processor with custom settings
func NewDBPostProcessorWithConfig(config DBConfig) (*DBPostProcessor, error) {
	if config.BinThresh < 0 || config.BinThresh > 1 || config.BoxThresh < 0 || config.BoxThresh > 1 {
		return nil, fmt.Errorf("%w: thresholds must be in [0, 1]", nn.ErrInvalidConfig)
	}
	if config.UnclipRatio < 0 {
		return nil, fmt.Errorf("%w: negative unclip ratio", nn.ErrInvalidConfig)
	}
	if config.MaxCandidates <= 0 {
		return nil, fmt.Errorf("%w: max candidates must be positive", nn.ErrInvalidConfig)
	}
	return &DBPostProcessor{config: config}, nil
}

// Config returns the post-processor settings
func (p *DBPostProcessor) Config() DBConfig {
	return p.config
}

// String mirrors the configuration
func (p *DBPostProcessor) String() string {
	return fmt.Sprintf("DBPostProcessor(box_thresh=%v, max_candidates=%d)", p.config.BoxThresh, p.config.MaxCandidates)
}

// Process implements PostProcessor
func (p *DBPostProcessor) Process(probMap *tensor.Tensor) ([][]Region, error) {
	n, h, w, err := probMaps(probMap)
	if err != nil {
		return nil, err
	}

	data := probMap.Data()
	out := make([][]Region, n)
	for i := 0; i < n; i++ {
		out[i] = p.regions(data[i*h*w:(i+1)*h*w], w, h)
	}
	return out, nil
}

func (p *DBPostProcessor) regions(prob []float32, w, h int) []Region {
	bitmap := threshold(prob, w, h, p.config.BinThresh)
	comps := bitmap.components(Connect8)
	if len(comps) > p.config.MaxCandidates {
		comps = comps[:p.config.MaxCandidates]
	}

	regions := make([]Region, 0, len(comps))
	for _, c := range comps {
		if c.width() < p.config.MinSizeBox || c.height() < p.config.MinSizeBox {
			continue
		}
		score := c.score(prob)
		if score < p.config.BoxThresh {
			continue
		}

		contour := bitmap.contour(c.pixels[0])
		d := unclipDistance(contour, p.config.UnclipRatio)

		var r Region
		if p.config.RotatedBoxes {
			r = p.rotatedRegion(contour, d, w, h)
		} else {
			r.Box = model.NewBBox(
				math.Floor(float64(c.minX)-d)/float64(w),
				math.Floor(float64(c.minY)-d)/float64(h),
				(math.Ceil(float64(c.maxX)+d)+1)/float64(w),
				(math.Ceil(float64(c.maxY)+d)+1)/float64(h),
			).Clip()
			r.Polygon = axisPolygon(r.Box)
		}
		r.Score = score
		regions = append(regions, r)
	}
	return regions
}

// rotatedRegion fits a minimum-area rectangle on the contour and grows it by d
func (p *DBPostProcessor) rotatedRegion(contour []model.Point, d float64, w, h int) Region {
	// Contour points are pixel centres, the rectangle must cover whole pixels.
	rect := minAreaRect(contour).grow(d + 0.5)

	corners := rect.corners()
	poly := make([]model.Point, len(corners))
	for i, c := range corners {
		poly[i] = model.Point{
			X: clamp01(c.X / float64(w)),
			Y: clamp01(c.Y / float64(h)),
		}
	}
	return Region{Box: model.PolygonBBox(poly), Polygon: orderClockwise(poly)}
}

// unclipDistance returns the offset that expands a shrunk text kernel
func unclipDistance(contour []model.Point, ratio float64) float64 {
	perimeter := polygonPerimeter(contour)
	if perimeter == 0 {
		return 0
	}
	return polygonArea(contour) * ratio / perimeter
}

// orderClockwise rotates the corner list so that it starts with the corner
// closest to the top-left of its bounding box
func orderClockwise(poly []model.Point) []model.Point {
	if len(poly) == 0 {
		return poly
	}
	// corners() is clockwise already in image coordinates
	box := model.PolygonBBox(poly)
	first := 0
	for i, pt := range poly {
		if pt.Distance(box.Min) < poly[first].Distance(box.Min) {
			first = i
		}
	}
	return append(append([]model.Point(nil), poly[first:]...), poly[:first]...)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
