// Package doctr provides a fluent API for running OCR on page images.
//
// Basic usage:
//
//	engine, err := cfg.NewEngine(logger)
//	if err != nil {
//	    // handle error
//	}
//	text, warnings, err := doctr.Open("scan-1.png", "invoice.pdf").
//	    WithEngine(engine).
//	    Text()
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", doctr.FormatWarnings(warnings))
//	}
//
// With options:
//
//	doc, _, err := doctr.Open(paths...).
//	    WithEngine(engine).
//	    Pages(1, 3).
//	    MinConfidence(0.5).
//	    Document()
//
// For finer control, the detection, recognition and ocr packages can be
// used directly.
package doctr

import (
	"image"
)

// Open returns an Extractor reading the page images at paths, in order.
// A PDF file contributes one page per PDF page. Files are only read by a
// terminal operation such as Text().
//
// Example:
//
//	text, warnings, err := doctr.Open("receipt.jpg").WithEngine(engine).Text()
func Open(paths ...string) *Extractor {
	return &Extractor{
		paths:   append([]string(nil), paths...),
		options: defaultOptions(),
	}
}

// FromImages returns an Extractor over already decoded pages
//
// Example:
//
//	doc, _, err := doctr.FromImages(img).WithEngine(engine).Document()
func FromImages(pages ...image.Image) *Extractor {
	return &Extractor{
		images:  append([]image.Image(nil), pages...),
		options: defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	count := doctr.Must(doctr.Open("a.png", "b.png").PageCount())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustText is a helper that wraps a call to Text() or Document() and panics
// if the error is non-nil. It discards warnings and returns just the value.
//
// Example:
//
//	text := doctr.MustText(doctr.Open("receipt.jpg").WithEngine(engine).Text())
func MustText[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
