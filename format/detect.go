// Package format provides file format detection for the inputs of the OCR
// pipeline.
package format

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

// Format represents a recognized file format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PNG indicates a Portable Network Graphics image.
	PNG
	// JPEG indicates a JPEG image.
	JPEG
	// GIF indicates a GIF image.
	GIF
	// BMP indicates a Windows bitmap.
	BMP
	// TIFF indicates a TIFF image.
	TIFF
	// WebP indicates a WebP image.
	WebP
	// PDF indicates a PDF document.
	PDF
	// ZIP indicates a ZIP archive, as used by dataset downloads.
	ZIP
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	case GIF:
		return "GIF"
	case BMP:
		return "BMP"
	case TIFF:
		return "TIFF"
	case WebP:
		return "WebP"
	case PDF:
		return "PDF"
	case ZIP:
		return "ZIP"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case PNG:
		return ".png"
	case JPEG:
		return ".jpg"
	case GIF:
		return ".gif"
	case BMP:
		return ".bmp"
	case TIFF:
		return ".tiff"
	case WebP:
		return ".webp"
	case PDF:
		return ".pdf"
	case ZIP:
		return ".zip"
	default:
		return ""
	}
}

// IsImage reports whether the format is a raster image the reader decodes
func (f Format) IsImage() bool {
	switch f {
	case PNG, JPEG, GIF, BMP, TIFF, WebP:
		return true
	default:
		return false
	}
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png":
		return PNG
	case ".jpg", ".jpeg", ".jpe":
		return JPEG
	case ".gif":
		return GIF
	case ".bmp", ".dib":
		return BMP
	case ".tif", ".tiff":
		return TIFF
	case ".webp":
		return WebP
	case ".pdf":
		return PDF
	case ".zip":
		return ZIP
	default:
		return Unknown
	}
}

var magics = []struct {
	prefix []byte
	format Format
}{
	{[]byte("\x89PNG\r\n\x1a\n"), PNG},
	{[]byte{0xFF, 0xD8, 0xFF}, JPEG},
	{[]byte("GIF87a"), GIF},
	{[]byte("GIF89a"), GIF},
	{[]byte("II*\x00"), TIFF},
	{[]byte("MM\x00*"), TIFF},
	{[]byte("%PDF"), PDF},
	{[]byte("PK\x03\x04"), ZIP},
	{[]byte("BM"), BMP},
}

// DetectFromMagic checks file magic bytes to determine format.
// This provides more reliable detection than extension-based detection.
func DetectFromMagic(data []byte) Format {
	// RIFF container: "RIFF" size "WEBP"
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return WebP
	}
	for _, m := range magics {
		if bytes.HasPrefix(data, m.prefix) {
			return m.format
		}
	}
	return Unknown
}

// DetectFromReader inspects the first bytes of the content to determine
// its format.
func DetectFromReader(r io.ReaderAt) (Format, error) {
	magic := make([]byte, 16)
	n, err := r.ReadAt(magic, 0)
	if err != nil && err != io.EOF {
		return Unknown, err
	}
	return DetectFromMagic(magic[:n]), nil
}
