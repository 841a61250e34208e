package model

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HOCR renders the document as an hOCR (HTML) document. Coordinates are
// converted to pixels using each page's dimensions.
func (d *Document) HOCR() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteHOCR(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteHOCR writes the hOCR rendering of the document to w
func (d *Document) WriteHOCR(w io.Writer) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html, nil)
	doc.AppendChild(root)

	head := element(atom.Head, nil)
	root.AppendChild(head)
	title := element(atom.Title, nil)
	title.AppendChild(&html.Node{Type: html.TextNode, Data: "doctr"})
	head.AppendChild(title)
	head.AppendChild(element(atom.Meta, map[string]string{"http-equiv": "Content-Type", "content": "text/html;charset=utf-8"}))
	head.AppendChild(element(atom.Meta, map[string]string{"name": "ocr-system", "content": "doctr"}))
	head.AppendChild(element(atom.Meta, map[string]string{"name": "ocr-capabilities", "content": "ocr_page ocr_carea ocr_line ocrx_word"}))

	body := element(atom.Body, nil)
	root.AppendChild(body)

	for _, page := range d.pages {
		body.AppendChild(page.hocrNode())
	}

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render hOCR: %w", err)
	}
	return nil
}

func (p Page) hocrNode() *html.Node {
	width := float64(p.dimensions.Width)
	height := float64(p.dimensions.Height)
	pageNo := p.index + 1

	node := element(atom.Div, map[string]string{
		"class": "ocr_page",
		"id":    fmt.Sprintf("page_%d", pageNo),
		"title": fmt.Sprintf("bbox 0 0 %d %d; ppageno %d", p.dimensions.Width, p.dimensions.Height, p.index),
	})

	lineNo, wordNo := 0, 0
	for bi, b := range p.blocks {
		area := element(atom.Div, map[string]string{
			"class": "ocr_carea",
			"id":    fmt.Sprintf("block_%d_%d", pageNo, bi+1),
			"title": hocrBBox(b.geometry, width, height),
		})
		for _, l := range b.lines {
			lineNo++
			line := element(atom.Span, map[string]string{
				"class": "ocr_line",
				"id":    fmt.Sprintf("line_%d_%d", pageNo, lineNo),
				"title": hocrBBox(l.geometry, width, height),
			})
			for _, w := range l.words {
				wordNo++
				word := element(atom.Span, map[string]string{
					"class": "ocrx_word",
					"id":    fmt.Sprintf("word_%d_%d", pageNo, wordNo),
					"title": fmt.Sprintf("%s; x_wconf %d", hocrBBox(w.geometry, width, height), int(math.Round(w.confidence*100))),
				})
				word.AppendChild(&html.Node{Type: html.TextNode, Data: w.value})
				line.AppendChild(word)
			}
			area.AppendChild(line)
		}
		node.AppendChild(area)
	}
	return node
}

func hocrBBox(b BBox, width, height float64) string {
	abs := b.Scale(width, height)
	return fmt.Sprintf("bbox %d %d %d %d",
		int(math.Round(abs.Min.X)), int(math.Round(abs.Min.Y)),
		int(math.Round(abs.Max.X)), int(math.Round(abs.Max.Y)))
}

// element creates an HTML element node. Attributes are emitted in a fixed
// order (class, id, title, then the rest) so output is deterministic.
func element(a atom.Atom, attrs map[string]string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for _, key := range []string{"class", "id", "title", "name", "http-equiv", "content"} {
		if v, ok := attrs[key]; ok {
			n.Attr = append(n.Attr, html.Attribute{Key: key, Val: v})
		}
	}
	return n
}
