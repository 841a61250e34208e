package pdf

import (
	"errors"
	"fmt"
	"sort"
)

// maxFormDepth bounds the nesting of form XObjects searched for images
const maxFormDepth = 4

// Page is a leaf of the page tree with inherited attributes resolved.
type Page struct {
	Dict      Dict
	Resources Dict
	MediaBox  [4]float64
	Rotate    int
}

// Size returns the page width and height in points
func (p Page) Size() (float64, float64) {
	return p.MediaBox[2] - p.MediaBox[0], p.MediaBox[3] - p.MediaBox[1]
}

// inherited carries the page attributes a /Pages node passes down
type inherited struct {
	resources Dict
	mediaBox  [4]float64
	rotate    int
}

// Pages walks the page tree in document order.
func (d *Document) Pages() ([]Page, error) {
	catalog, ok := d.Dict(d.trailer["Root"])
	if !ok {
		return nil, errors.New("document catalog is not a dictionary")
	}
	root := catalog["Pages"]
	if root == nil {
		return nil, errors.New("document catalog has no page tree")
	}

	var pages []Page
	seen := make(map[int]bool)
	letter := inherited{mediaBox: [4]float64{0, 0, 612, 792}}
	if err := d.walk(root, letter, seen, &pages, 0); err != nil {
		return nil, err
	}
	return pages, nil
}

func (d *Document) walk(node Object, in inherited, seen map[int]bool, pages *[]Page, depth int) error {
	if depth > maxDepth {
		return errors.New("page tree too deep")
	}
	if ref, ok := node.(Ref); ok {
		if seen[ref.Number] {
			return fmt.Errorf("page tree cycle at object %d", ref.Number)
		}
		seen[ref.Number] = true
	}
	dict, ok := d.Dict(node)
	if !ok {
		return nil
	}

	if res, ok := d.Dict(dict["Resources"]); ok {
		in.resources = res
	}
	if box, ok := d.rect(dict["MediaBox"]); ok {
		in.mediaBox = box
	}
	if rot, ok := dict.Int("Rotate"); ok {
		in.rotate = rot
	}

	kids, _ := d.Resolve(dict["Kids"])
	if arr, ok := kids.(Array); ok && dict.Name("Type") != "Page" {
		for _, kid := range arr {
			if err := d.walk(kid, in, seen, pages, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	*pages = append(*pages, Page{
		Dict:      dict,
		Resources: in.resources,
		MediaBox:  in.mediaBox,
		Rotate:    ((in.rotate % 360) + 360) % 360,
	})
	return nil
}

func (d *Document) rect(obj Object) ([4]float64, bool) {
	var box [4]float64
	resolved, err := d.Resolve(obj)
	if err != nil {
		return box, false
	}
	arr, ok := resolved.(Array)
	if !ok || len(arr) != 4 {
		return box, false
	}
	for i, v := range arr {
		n, ok := number(v)
		if !ok {
			return box, false
		}
		box[i] = n
	}
	if box[0] > box[2] {
		box[0], box[2] = box[2], box[0]
	}
	if box[1] > box[3] {
		box[1], box[3] = box[3], box[1]
	}
	return box, true
}

// Images lists the image XObjects a page can paint, including those inside
// form XObjects, ordered by resource name. Images whose color space cannot
// be interpreted are skipped.
func (d *Document) Images(p Page) []*Image {
	var out []*Image
	d.collectImages(p.Resources, "", make(map[int]bool), &out, 0)
	return out
}

func (d *Document) collectImages(resources Dict, prefix string, seen map[int]bool, out *[]*Image, depth int) {
	if depth > maxFormDepth {
		return
	}
	xobjects, ok := d.Dict(resources["XObject"])
	if !ok {
		return
	}

	names := make([]string, 0, len(xobjects))
	for name := range xobjects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		obj := xobjects[name]
		if ref, ok := obj.(Ref); ok {
			if seen[ref.Number] {
				continue
			}
			seen[ref.Number] = true
		}
		resolved, err := d.Resolve(obj)
		if err != nil {
			continue
		}
		s, ok := resolved.(*Stream)
		if !ok {
			continue
		}

		switch s.Dict.Name("Subtype") {
		case "Image":
			if img, err := d.newImage(prefix+name, s); err == nil {
				*out = append(*out, img)
			}
		case "Form":
			if res, ok := d.Dict(s.Dict["Resources"]); ok {
				d.collectImages(res, prefix+name+"/", seen, out, depth+1)
			}
		}
	}
}
