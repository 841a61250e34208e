package pdf

import "fmt"

// Image is an image XObject. Samples are decoded on demand so callers can
// check the dimensions first.
type Image struct {
	Name   string
	Width  int
	Height int

	// BitsPerComponent and Components describe the samples Samples returns.
	// Indexed images report their base color space at 8 bits.
	BitsPerComponent int
	Components       int

	// Codec is DCTDecode, JPXDecode or JBIG2Decode when Samples returns
	// encoded data, "" for raw samples.
	Codec string

	stream    *Stream
	invert    bool
	palette   []byte
	indexBits int
}

// colorSpace describes a resolved color space
type colorSpace struct {
	components int
	invert     bool
	palette    []byte
}

func (d *Document) newImage(name string, s *Stream) (*Image, error) {
	w, _ := s.Dict.Int("Width")
	h, _ := s.Dict.Int("Height")
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("image %s has invalid size %dx%d", name, w, h)
	}

	img := &Image{
		Name:             name,
		Width:            w,
		Height:           h,
		BitsPerComponent: intOr(s.Dict, "BitsPerComponent", 8),
		Components:       1,
		Codec:            s.Codec(),
		stream:           s,
	}

	if s.Dict.Bool("ImageMask") {
		img.BitsPerComponent = 1
	} else if img.Codec == "" {
		cs, err := d.colorSpace(s.Dict["ColorSpace"], 0)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", name, err)
		}
		img.Components = cs.components
		img.invert = cs.invert
		if cs.palette != nil {
			img.palette = cs.palette
			img.indexBits = img.BitsPerComponent
			img.BitsPerComponent = 8
		}
	}

	if dec, ok := s.Dict["Decode"].(Array); ok && len(dec) >= 2 && img.Components == 1 && img.palette == nil {
		lo, _ := number(dec[0])
		hi, _ := number(dec[1])
		if lo > hi {
			img.invert = !img.invert
		}
	}

	switch img.BitsPerComponent {
	case 1, 4, 8:
	default:
		if img.Codec == "" {
			return nil, fmt.Errorf("image %s: unsupported %d bits per component", name, img.BitsPerComponent)
		}
	}
	if img.indexBits != 0 && img.indexBits != 1 && img.indexBits != 2 && img.indexBits != 4 && img.indexBits != 8 {
		return nil, fmt.Errorf("image %s: unsupported %d bit palette index", name, img.indexBits)
	}
	return img, nil
}

func (d *Document) colorSpace(obj Object, depth int) (colorSpace, error) {
	if depth > 4 {
		return colorSpace{}, fmt.Errorf("color space nested too deep")
	}
	resolved, err := d.Resolve(obj)
	if err != nil {
		return colorSpace{}, err
	}

	var family string
	var arr Array
	switch v := resolved.(type) {
	case nil, Null:
		return colorSpace{components: 1}, nil
	case Name:
		family = string(v)
	case Array:
		if len(v) == 0 {
			return colorSpace{}, fmt.Errorf("empty color space array")
		}
		name, _ := v[0].(Name)
		family, arr = string(name), v
	default:
		return colorSpace{}, fmt.Errorf("invalid color space %v", resolved)
	}

	switch family {
	case "DeviceGray", "G", "CalGray":
		return colorSpace{components: 1}, nil
	case "DeviceRGB", "RGB", "CalRGB":
		return colorSpace{components: 3}, nil
	case "DeviceCMYK", "CMYK":
		return colorSpace{components: 4}, nil
	case "ICCBased":
		if len(arr) > 1 {
			if profile, ok := d.Dict(arr[1]); ok {
				if n, ok := profile.Int("N"); ok && (n == 1 || n == 3 || n == 4) {
					return colorSpace{components: n}, nil
				}
				if alt := profile["Alternate"]; alt != nil {
					return d.colorSpace(alt, depth+1)
				}
			}
		}
		return colorSpace{}, fmt.Errorf("ICCBased color space without a usable profile")
	case "Separation":
		// a single tint where 1 is full ink
		return colorSpace{components: 1, invert: true}, nil
	case "Indexed", "I":
		if len(arr) < 4 {
			return colorSpace{}, fmt.Errorf("incomplete Indexed color space")
		}
		base, err := d.colorSpace(arr[1], depth+1)
		if err != nil {
			return colorSpace{}, err
		}
		if base.palette != nil {
			return colorSpace{}, fmt.Errorf("Indexed color space over Indexed")
		}
		hival, _ := number(arr[2])
		lookup, err := d.Resolve(arr[3])
		if err != nil {
			return colorSpace{}, err
		}
		var table []byte
		switch l := lookup.(type) {
		case String:
			table = []byte(l)
		case *Stream:
			if table, err = l.Decode(); err != nil {
				return colorSpace{}, err
			}
		}
		need := (int(hival) + 1) * base.components
		if hival < 0 || hival > 255 || len(table) < need {
			return colorSpace{}, fmt.Errorf("Indexed lookup table too short")
		}
		return colorSpace{components: base.components, palette: table[:need]}, nil
	default:
		return colorSpace{}, fmt.Errorf("unsupported color space %s", family)
	}
}

// Samples returns the decoded sample rows, or the codec data when Codec is
// set. Rows of packed samples are padded to a whole byte.
func (img *Image) Samples() ([]byte, error) {
	data, err := img.stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", img.Name, err)
	}
	if img.Codec != "" {
		return data, nil
	}

	if img.palette != nil {
		return img.expand(data)
	}

	if img.invert {
		out := make([]byte, len(data))
		for i, b := range data {
			out[i] = ^b
		}
		data = out
	}
	return data, nil
}

// expand replaces palette indices with base color space samples
func (img *Image) expand(data []byte) ([]byte, error) {
	bits := img.indexBits
	rowLen := (img.Width*bits + 7) / 8
	if len(data) < rowLen*img.Height {
		return nil, fmt.Errorf("image %s: insufficient data: got %d, expected %d", img.Name, len(data), rowLen*img.Height)
	}

	n := img.Components
	entries := len(img.palette) / n
	out := make([]byte, 0, img.Width*img.Height*n)
	for y := 0; y < img.Height; y++ {
		row := data[y*rowLen:]
		for x := 0; x < img.Width; x++ {
			bit := x * bits
			idx := int(row[bit/8]>>(8-bits-bit%8)) & (1<<bits - 1)
			if idx >= entries {
				idx = entries - 1
			}
			out = append(out, img.palette[idx*n:idx*n+n]...)
		}
	}
	return out, nil
}
