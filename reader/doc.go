// Package reader loads document pages as images for the OCR pipeline.
//
// Every decoded page is returned as an opaque three-channel *image.RGBA
// whatever the source color model, so predictors always see the same
// channel count.
//
// # Reading Files
//
// Use [ReadPages] for a file on disk or [ReadPagesBytes] for content
// already in memory. An image file gives one page, a PDF one page per PDF
// page:
//
//	pages, err := reader.ReadPages("scan.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// [ReadImage] and [ReadImageBytes] return a single page and reject
// multi-page documents with [ErrMultiPage]. [FromImages] reads several
// files at once, keeping their order, and [CountPages] counts pages
// without decoding pixels.
//
// # Options
//
//   - [WithSize] resizes the page to an exact height and width
//   - [WithBGR] swaps the red and blue channels
//   - [WithMaxPixels] bounds the pixels of a page, checked before decoding
//   - [WithMaxPages] bounds the pages of a PDF
//
// # Supported Formats
//
// PNG, JPEG, GIF, BMP, TIFF and WebP are decoded. For PDF documents, the
// largest image painted on each page is used, turned by the page rotation;
// pages painting no image come out as blank pages. Embedded JPEG, Flate,
// run-length, ASCII and CCITT fax images are decoded, JPEG 2000 and JBIG2
// are not. Undecodable content matches [ErrInvalidImage], a missing file
// [fs.ErrNotExist].
//
// # Raw Buffers
//
// [FromPixels] converts uncompressed scanner or camera buffers (1, 4 or
// 8 bit gray, RGB, CMYK) into an image. Raw PDF image samples go through
// it too.
package reader
