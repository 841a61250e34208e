// Package model provides the document representation produced by the OCR
// pipeline.
//
// The document is a strict containment tree:
//
//	Document → Page → Block → Line → Word
//	                        └──→ Artefact
//
// Every element is an immutable value. Children are passed to constructors
// and are only reachable through accessors that return copies, so a built
// document cannot be modified.
//
// # Geometry
//
// Word, Line, Artefact and Block geometries are [BBox] values expressed in
// relative coordinates: (0, 0) is the top-left corner of the page and (1, 1)
// the bottom-right one. Only [Page] dimensions are absolute (pixels).
//
// When a Line or Block is built without an explicit geometry, its box is the
// smallest one enclosing all of its children:
//
//	line := model.NewLine(words)
//	block := model.NewBlock([]model.Line{line}, nil)
//
// # Rendering and Export
//
// All elements implement [Element]:
//
//   - Render returns plain text. Words in a line are joined with spaces,
//     lines in a block with newlines, blocks in a page with blank lines and
//     pages in a document with three blank lines.
//   - Export returns a nested map mirroring the element attributes. The key
//     set per element is a stable contract for downstream consumers.
//
// A [Document] can also be encoded as JSON ([Document.JSON]) or as hOCR
// ([Document.HOCR]).
package model
