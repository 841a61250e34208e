// Package pdf reads the raster content of PDF documents: the page tree and
// the image XObjects each page paints.
//
// It is a reader for scanned documents, not a renderer. Text, vector
// graphics and fonts are ignored, and encrypted files are rejected.
//
//	doc, err := pdf.Open(data)
//	if err != nil {
//	    return err
//	}
//	pages, err := doc.Pages()
//	for _, p := range pages {
//	    for _, img := range doc.Images(p) {
//	        samples, err := img.Samples()
//	        ...
//	    }
//	}
//
// Cross-reference tables and streams are both read, including objects
// packed into object streams. Files with a broken cross-reference are
// indexed by scanning for object headers.
package pdf
