package format

import (
	"bytes"
	"errors"
	"testing"
)

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{PNG, "PNG"},
		{JPEG, "JPEG"},
		{GIF, "GIF"},
		{BMP, "BMP"},
		{TIFF, "TIFF"},
		{WebP, "WebP"},
		{PDF, "PDF"},
		{ZIP, "ZIP"},
		{Unknown, "Unknown"},
		{Format(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestFormat_ExtensionRoundTrip(t *testing.T) {
	for _, f := range []Format{PNG, JPEG, GIF, BMP, TIFF, WebP, PDF, ZIP} {
		if got := Detect("file" + f.Extension()); got != f {
			t.Errorf("Detect(%q) = %v, want %v", "file"+f.Extension(), got, f)
		}
	}
	if Unknown.Extension() != "" {
		t.Errorf("Unknown.Extension() = %q", Unknown.Extension())
	}
}

func TestFormat_IsImage(t *testing.T) {
	for _, f := range []Format{PNG, JPEG, GIF, BMP, TIFF, WebP} {
		if !f.IsImage() {
			t.Errorf("%v should be an image", f)
		}
	}
	for _, f := range []Format{PDF, ZIP, Unknown} {
		if f.IsImage() {
			t.Errorf("%v should not be an image", f)
		}
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"page.png", PNG},
		{"page.PNG", PNG},
		{"page.jpg", JPEG},
		{"page.JPEG", JPEG},
		{"page.tif", TIFF},
		{"page.webp", WebP},
		{"scan.bmp", BMP},
		{"document.pdf", PDF},
		{"/path/to/archive.zip", ZIP},
		{"notes.txt", Unknown},
		{"document", Unknown},
		{"", Unknown},
	}

	for _, tt := range tests {
		if got := Detect(tt.filename); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestDetectFromMagic(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"PNG", []byte("\x89PNG\r\n\x1a\n\x00\x00"), PNG},
		{"JPEG", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, JPEG},
		{"GIF89a", []byte("GIF89a\x01\x00"), GIF},
		{"GIF87a", []byte("GIF87a"), GIF},
		{"BMP", []byte("BM\x00\x00\x00\x00"), BMP},
		{"TIFF little endian", []byte("II*\x00\x08\x00"), TIFF},
		{"TIFF big endian", []byte("MM\x00*\x00\x00"), TIFF},
		{"WebP", []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), WebP},
		{"RIFF but not WebP", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), Unknown},
		{"PDF", []byte("%PDF-1.4"), PDF},
		{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04, 0x00}, ZIP},
		{"empty data", []byte{}, Unknown},
		{"short data", []byte{0x89, 'P'}, Unknown},
		{"text file", []byte("Hello, World!"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFromMagic(tt.data); got != tt.want {
				t.Errorf("DetectFromMagic() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectFromReader(t *testing.T) {
	format, err := DetectFromReader(bytes.NewReader([]byte("%PDF-1.4\n%%EOF")))
	if err != nil {
		t.Fatalf("DetectFromReader() error = %v", err)
	}
	if format != PDF {
		t.Errorf("DetectFromReader() = %v, want PDF", format)
	}

	format, err = DetectFromReader(bytes.NewReader(nil))
	if err != nil || format != Unknown {
		t.Errorf("DetectFromReader(empty) = %v, %v", format, err)
	}
}

type failingReader struct{}

func (failingReader) ReadAt([]byte, int64) (int, error) { return 0, errors.New("disk error") }

func TestDetectFromReader_Error(t *testing.T) {
	if _, err := DetectFromReader(failingReader{}); err == nil {
		t.Error("expected read error to propagate")
	}
}
