package detection

import (
	"fmt"

	"github.com/publicMindee/doctr/model"
	"github.com/publicMindee/doctr/nn"
	"github.com/publicMindee/doctr/tensor"
)

// LinkNetConfig holds the settings of the LinkNet post-processor
type LinkNetConfig struct {
	// BinThresh is the probability above which a pixel is text (default: 0.5)
	BinThresh float64

	// BoxThresh is the minimum mean probability of a kept region (default: 0.8)
	BoxThresh float64

	// MinSizeBox is the minimum side of a kept region, in pixels (default: 3)
	MinSizeBox int

	// MaxCandidates caps the number of components examined per map (default: 100)
	MaxCandidates int
}

// DefaultLinkNetConfig returns the settings the LinkNet models were trained with
func DefaultLinkNetConfig() LinkNetConfig {
	return LinkNetConfig{
		BinThresh:     0.5,
		BoxThresh:     0.8,
		MinSizeBox:    3,
		MaxCandidates: 100,
	}
}

// LinkNetPostProcessor extracts regions from LinkNet probability maps.
// The binarized map is cleaned with a 3x3 opening and components are
// 4-connected. Boxes are the exact pixel extent of each component.
type LinkNetPostProcessor struct {
	config LinkNetConfig
}

// NewLinkNetPostProcessor creates a LinkNet post-processor with default settings
func NewLinkNetPostProcessor() *LinkNetPostProcessor {
	return &LinkNetPostProcessor{config: DefaultLinkNetConfig()}
}

// NewLinkNetPostProcessorWithConfig creates a LinkNet post-processor with custom settings
func NewLinkNetPostProcessorWithConfig(config LinkNetConfig) (*LinkNetPostProcessor, error) {
	if config.BinThresh < 0 || config.BinThresh > 1 || config.BoxThresh < 0 || config.BoxThresh > 1 {
		return nil, fmt.Errorf("%w: thresholds must be in [0, 1]", nn.ErrInvalidConfig)
	}
	if config.MaxCandidates <= 0 {
		return nil, fmt.Errorf("%w: max candidates must be positive", nn.ErrInvalidConfig)
	}
	return &LinkNetPostProcessor{config: config}, nil
}

// Config returns the post-processor settings
func (p *LinkNetPostProcessor) Config() LinkNetConfig {
	return p.config
}

// String mirrors the configuration
func (p *LinkNetPostProcessor) String() string {
	return fmt.Sprintf("LinkNetPostProcessor(box_thresh=%v, max_candidates=%d)", p.config.BoxThresh, p.config.MaxCandidates)
}

// Process implements PostProcessor
func (p *LinkNetPostProcessor) Process(probMap *tensor.Tensor) ([][]Region, error) {
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

func (p *LinkNetPostProcessor) regions(prob []float32, w, h int) []Region {
	bitmap := threshold(prob, w, h, p.config.BinThresh).open()
	comps := bitmap.components(Connect4)
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
		box := model.NewBBox(
			float64(c.minX)/float64(w),
			float64(c.minY)/float64(h),
			float64(c.maxX+1)/float64(w),
			float64(c.maxY+1)/float64(h),
		)
		regions = append(regions, Region{Box: box, Polygon: axisPolygon(box), Score: score})
	}
	return regions
}
