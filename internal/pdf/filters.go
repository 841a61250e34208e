package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/ccitt"
)

// MaxDecodedSize caps the output of a single stream filter.
const MaxDecodedSize = 1 << 28

// ErrTooLarge is returned when a stream decodes to more than MaxDecodedSize
var ErrTooLarge = errors.New("decoded stream too large")

// codecs are image encodings handed to an image decoder as-is
var codecs = map[string]string{
	"DCTDecode":   "DCTDecode",
	"DCT":         "DCTDecode",
	"JPXDecode":   "JPXDecode",
	"JBIG2Decode": "JBIG2Decode",
}

// Codec returns the image encoding left once every other filter is
// applied, or "" for raw samples.
func (s *Stream) Codec() string {
	names, _ := s.filters()
	for _, n := range names {
		if c, ok := codecs[n]; ok {
			return c
		}
	}
	return ""
}

// Decode applies the stream filters in order. Decoding stops at an image
// codec filter, leaving its data encoded.
func (s *Stream) Decode() ([]byte, error) {
	names, params := s.filters()
	data := s.Data
	for i, name := range names {
		if _, ok := codecs[name]; ok {
			return data, nil
		}
		var err error
		if data, err = decodeFilter(data, name, params[i]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return data, nil
}

// filters lists the filter names with their decode parameters
func (s *Stream) filters() ([]string, []Dict) {
	var names []string
	switch f := s.Dict["Filter"].(type) {
	case Name:
		names = []string{string(f)}
	case Array:
		for _, obj := range f {
			if n, ok := obj.(Name); ok {
				names = append(names, string(n))
			}
		}
	}

	params := make([]Dict, len(names))
	parms := s.Dict["DecodeParms"]
	if parms == nil {
		parms = s.Dict["DP"]
	}
	switch p := parms.(type) {
	case Dict:
		if len(params) > 0 {
			params[0] = p
		}
	case Array:
		for i := range params {
			if i < len(p) {
				params[i], _ = p[i].(Dict)
			}
		}
	}
	return names, params
}

func decodeFilter(data []byte, name string, params Dict) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		out, err := inflate(data)
		if err != nil {
			return nil, err
		}
		return unpredict(out, params)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	case "RunLengthDecode", "RL":
		return runLengthDecode(data)
	case "CCITTFaxDecode", "CCF":
		return ccittDecode(data, params)
	default:
		return nil, fmt.Errorf("unsupported filter")
	}
}

// inflate decompresses zlib data. Truncated streams, common in damaged
// files, keep whatever was decoded before the error.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(zr, MaxDecodedSize+1))
	if n > MaxDecodedSize {
		return nil, ErrTooLarge
	}
	if err != nil && buf.Len() == 0 {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unpredict reverses the PNG (10-15) and TIFF (2) predictors
func unpredict(data []byte, params Dict) ([]byte, error) {
	predictor, _ := params.Int("Predictor")
	if predictor <= 1 {
		return data, nil
	}

	colors := intOr(params, "Colors", 1)
	bpc := intOr(params, "BitsPerComponent", 8)
	columns := intOr(params, "Columns", 1)
	bpp := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8
	if rowLen <= 0 || bpp <= 0 {
		return nil, fmt.Errorf("invalid predictor parameters")
	}

	if predictor == 2 {
		if bpc != 8 {
			return nil, fmt.Errorf("TIFF predictor with %d bits per component", bpc)
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := row + bpp; i < row+rowLen; i++ {
				out[i] += out[i-bpp]
			}
		}
		return out, nil
	}

	// PNG rows carry a leading filter-type byte
	out := make([]byte, 0, len(data)/(rowLen+1)*rowLen)
	prev := make([]byte, rowLen)
	for pos := 0; pos+rowLen+1 <= len(data); pos += rowLen + 1 {
		kind := data[pos]
		cur := append([]byte(nil), data[pos+1:pos+1+rowLen]...)
		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left = cur[i-bpp]
				upLeft = prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG filter type %d", kind)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func intOr(d Dict, key string, def int) int {
	if v, ok := d.Int(key); ok {
		return v
	}
	return def
}

func asciiHexDecode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	half := false
	for _, c := range data {
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		case c == '>':
			if half {
				out = append(out, hi<<4)
			}
			return out, nil
		case isSpace(c):
			continue
		default:
			return nil, fmt.Errorf("invalid hex digit %q", c)
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	if half {
		out = append(out, hi<<4)
	}
	return out, nil
}

func ascii85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	// "z" expands to four bytes
	out := make([]byte, 4*len(data))
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func runLengthDecode(data []byte) ([]byte, error) {
	var out []byte
	for i := 0; i < len(data); {
		n := int(data[i])
		i++
		switch {
		case n == 128:
			return out, nil
		case n < 128:
			if i+n+1 > len(data) {
				return nil, errors.New("truncated literal run")
			}
			out = append(out, data[i:i+n+1]...)
			i += n + 1
		default:
			if i >= len(data) {
				return nil, errors.New("truncated repeat run")
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
		if len(out) > MaxDecodedSize {
			return nil, ErrTooLarge
		}
	}
	return out, nil
}

// ccittDecode expands Group 3/4 fax data to packed 1-bit rows, black being
// the 0 bit unless BlackIs1 is set
func ccittDecode(data []byte, params Dict) ([]byte, error) {
	columns := intOr(params, "Columns", 1728)
	rows := intOr(params, "Rows", 0)
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	sf := ccitt.Group3
	if k, _ := params.Int("K"); k < 0 {
		sf = ccitt.Group4
	}

	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows,
		&ccitt.Options{Align: params.Bool("EncodedByteAlign"), Invert: params.Bool("BlackIs1")})
	out, err := io.ReadAll(io.LimitReader(r, MaxDecodedSize+1))
	if len(out) > MaxDecodedSize {
		return nil, ErrTooLarge
	}
	return out, err
}
