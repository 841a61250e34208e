package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

var (
	// ErrNotPDF is returned when the content has no PDF header
	ErrNotPDF = errors.New("not a PDF document")

	// ErrEncrypted is returned for documents protected by a security handler
	ErrEncrypted = errors.New("encrypted PDF documents are not supported")
)

// xrefEntry locates an object either at a byte offset or inside an
// object stream
type xrefEntry struct {
	offset int
	stream int // object stream number, 0 when stored directly
	index  int
}

// Document gives access to the objects of a PDF held in memory.
type Document struct {
	data    []byte
	xref    map[int]xrefEntry
	trailer Dict
	cache   map[int]Object
	loading map[int]bool
}

// Open indexes the objects of a PDF. A damaged or missing cross-reference
// table is rebuilt by scanning the file for object headers.
func Open(data []byte) (*Document, error) {
	start := bytes.Index(data, []byte("%PDF-"))
	if start < 0 || start > 1024 {
		return nil, ErrNotPDF
	}

	d := &Document{
		data:    data,
		cache:   make(map[int]Object),
		loading: make(map[int]bool),
	}

	if err := d.loadXRef(); err != nil || d.trailer["Root"] == nil {
		d.scan()
	}
	if d.trailer["Encrypt"] != nil {
		return nil, ErrEncrypted
	}
	if d.trailer["Root"] == nil {
		return nil, fmt.Errorf("%w: no document catalog", ErrNotPDF)
	}
	return d, nil
}

// loadXRef follows startxref and every /Prev section. Newer sections are
// read first, so entries already present win.
func (d *Document) loadXRef() error {
	idx := bytes.LastIndex(d.data, []byte("startxref"))
	if idx < 0 {
		return errors.New("startxref not found")
	}
	p := newParser(d.data, idx+len("startxref"))
	offset, err := strconv.Atoi(p.keyword())
	if err != nil {
		return fmt.Errorf("invalid startxref offset: %w", err)
	}

	d.xref = make(map[int]xrefEntry)
	seen := make(map[int]bool)
	for offset > 0 && !seen[offset] {
		seen[offset] = true
		if offset >= len(d.data) {
			return fmt.Errorf("xref offset %d beyond end of file", offset)
		}

		var trailer Dict
		p := newParser(d.data, offset)
		save := p.pos
		if p.keyword() == "xref" {
			trailer, err = d.readTable(p)
		} else {
			p.pos = save
			trailer, err = d.readStream(p)
		}
		if err != nil {
			return err
		}

		for k, v := range trailer {
			if _, ok := d.trailer[k]; !ok {
				if d.trailer == nil {
					d.trailer = make(Dict)
				}
				d.trailer[k] = v
			}
		}
		offset, _ = trailer.Int("Prev")
	}
	return nil
}

// readTable parses a classic "xref" section and its trailer
func (d *Document) readTable(p *parser) (Dict, error) {
	for {
		save := p.pos
		kw := p.keyword()
		if kw == "trailer" {
			obj, err := p.object()
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			trailer, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is %T, not a dictionary", obj)
			}
			return trailer, nil
		}

		first, err1 := strconv.Atoi(kw)
		count, err2 := strconv.Atoi(p.keyword())
		if err1 != nil || err2 != nil || count < 0 {
			return nil, fmt.Errorf("invalid xref subsection at offset %d", save)
		}
		for i := 0; i < count; i++ {
			offset, err := strconv.Atoi(p.keyword())
			p.keyword() // generation
			flag := p.keyword()
			if err != nil || (flag != "n" && flag != "f") {
				return nil, fmt.Errorf("invalid xref entry for object %d", first+i)
			}
			if _, ok := d.xref[first+i]; !ok && flag == "n" {
				d.xref[first+i] = xrefEntry{offset: offset}
			}
		}
	}
}

// readStream parses a cross-reference stream object
func (d *Document) readStream(p *parser) (Dict, error) {
	_, obj, err := p.indirect()
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*Stream)
	if !ok || s.Dict.Name("Type") != "XRef" {
		return nil, errors.New("xref offset does not point at a cross-reference")
	}
	data, err := s.Decode()
	if err != nil {
		return nil, fmt.Errorf("xref stream: %w", err)
	}

	w, _ := s.Dict["W"].(Array)
	if len(w) != 3 {
		return nil, errors.New("xref stream has an invalid /W")
	}
	var widths [3]int
	rowLen := 0
	for i := range widths {
		n, _ := number(w[i])
		widths[i] = int(n)
		if widths[i] < 0 || widths[i] > 8 {
			return nil, errors.New("xref stream has an invalid /W")
		}
		rowLen += widths[i]
	}
	if rowLen == 0 {
		return nil, errors.New("xref stream has an invalid /W")
	}

	size, _ := s.Dict.Int("Size")
	index := Array{Int(0), Int(size)}
	if arr, ok := s.Dict["Index"].(Array); ok {
		index = arr
	}

	row := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, _ := number(index[i])
		count, _ := number(index[i+1])
		for j := 0; j < int(count); j++ {
			if (row+1)*rowLen > len(data) {
				return s.Dict, nil
			}
			fields := data[row*rowLen:]
			row++

			var vals [3]int
			pos := 0
			for k, n := range widths {
				for _, b := range fields[pos : pos+n] {
					vals[k] = vals[k]<<8 | int(b)
				}
				pos += n
			}
			if widths[0] == 0 {
				vals[0] = 1
			}

			num := int(first) + j
			if _, ok := d.xref[num]; ok {
				continue
			}
			switch vals[0] {
			case 1:
				d.xref[num] = xrefEntry{offset: vals[1]}
			case 2:
				d.xref[num] = xrefEntry{stream: vals[1], index: vals[2]}
			}
		}
	}
	return s.Dict, nil
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// scan rebuilds the object index from "num gen obj" headers. Later
// definitions replace earlier ones, as with incremental updates.
func (d *Document) scan() {
	d.xref = make(map[int]xrefEntry)
	d.cache = make(map[int]Object)
	for _, m := range objHeader.FindAllSubmatchIndex(d.data, -1) {
		num, err := strconv.Atoi(string(d.data[m[2]:m[3]]))
		if err != nil {
			continue
		}
		d.xref[num] = xrefEntry{offset: m[2]}
	}

	nums := make([]int, 0, len(d.xref))
	for num := range d.xref {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		if obj, err := d.Object(num); err == nil {
			if s, ok := obj.(*Stream); ok && s.Dict.Name("Type") == "ObjStm" {
				d.indexObjectStream(num, s)
			}
		}
	}

	if d.trailer == nil {
		d.trailer = make(Dict)
	}
	for _, idx := range allIndexes(d.data, []byte("trailer")) {
		p := newParser(d.data, idx+len("trailer"))
		if obj, err := p.object(); err == nil {
			if t, ok := obj.(Dict); ok {
				for k, v := range t {
					d.trailer[k] = v
				}
			}
		}
	}
	if d.trailer["Root"] != nil {
		return
	}

	// no usable trailer: look for the catalog itself
	nums = nums[:0]
	for num := range d.xref {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		if dict, ok := d.Dict(Ref{Number: num}); ok && dict.Name("Type") == "Catalog" {
			d.trailer["Root"] = Ref{Number: num}
			return
		}
	}
}

func (d *Document) indexObjectStream(num int, s *Stream) {
	nums, _, err := objectStreamHeader(s)
	if err != nil {
		return
	}
	for i, objNum := range nums {
		if _, ok := d.xref[objNum]; !ok {
			d.xref[objNum] = xrefEntry{stream: num, index: i}
		}
	}
}

func allIndexes(data, sep []byte) []int {
	var out []int
	for off := 0; ; {
		i := bytes.Index(data[off:], sep)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sep)
	}
}

// Object loads object num. Missing objects resolve to null.
func (d *Document) Object(num int) (Object, error) {
	if obj, ok := d.cache[num]; ok {
		return obj, nil
	}
	entry, ok := d.xref[num]
	if !ok {
		return Null{}, nil
	}
	if d.loading[num] {
		return nil, fmt.Errorf("object %d refers to itself", num)
	}
	d.loading[num] = true
	defer delete(d.loading, num)

	var obj Object
	var err error
	if entry.stream > 0 {
		obj, err = d.compressed(entry.stream, entry.index)
	} else {
		obj, err = d.direct(num, entry.offset)
	}
	if err != nil {
		return nil, err
	}
	d.cache[num] = obj
	return obj, nil
}

func (d *Document) direct(num, offset int) (Object, error) {
	if offset < 0 || offset >= len(d.data) {
		return nil, fmt.Errorf("object %d offset %d out of range", num, offset)
	}
	p := newParser(d.data, offset)
	p.lengthOf = d.length
	ref, obj, err := p.indirect()
	if err != nil {
		return nil, err
	}
	if ref.Number != num {
		return nil, fmt.Errorf("expected object %d at offset %d, found %d", num, offset, ref.Number)
	}
	return obj, nil
}

func (d *Document) length(ref Ref) (int, bool) {
	obj, err := d.Object(ref.Number)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(Int)
	return int(n), ok
}

func (d *Document) compressed(streamNum, index int) (Object, error) {
	obj, err := d.Object(streamNum)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is %T", streamNum, obj)
	}
	_, offsets, err := objectStreamHeader(s)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", streamNum, err)
	}
	if index < 0 || index >= len(offsets) {
		return nil, fmt.Errorf("object stream %d has no entry %d", streamNum, index)
	}
	data, err := s.Decode()
	if err != nil {
		return nil, err
	}
	if offsets[index] >= len(data) {
		return nil, fmt.Errorf("object stream %d entry %d out of range", streamNum, index)
	}
	return newParser(data, offsets[index]).object()
}

// objectStreamHeader returns the object numbers and absolute offsets of the
// objects packed into an /ObjStm stream
func objectStreamHeader(s *Stream) ([]int, []int, error) {
	n, _ := s.Dict.Int("N")
	first, _ := s.Dict.Int("First")
	data, err := s.Decode()
	if err != nil {
		return nil, nil, err
	}
	if first < 0 || first > len(data) {
		return nil, nil, fmt.Errorf("/First %d exceeds stream length %d", first, len(data))
	}

	p := newParser(data[:first], 0)
	nums := make([]int, 0, n)
	offsets := make([]int, 0, n)
	for i := 0; i < n; i++ {
		num, err1 := strconv.Atoi(p.keyword())
		off, err2 := strconv.Atoi(p.keyword())
		if err1 != nil || err2 != nil {
			return nil, nil, fmt.Errorf("invalid header entry %d", i)
		}
		nums = append(nums, num)
		offsets = append(offsets, first+off)
	}
	return nums, offsets, nil
}

// Resolve follows indirect references until a direct object is reached
func (d *Document) Resolve(obj Object) (Object, error) {
	for i := 0; i < maxDepth; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj, nil
		}
		var err error
		if obj, err = d.Object(ref.Number); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("reference chain too long")
}

// Dict resolves obj and returns it as a dictionary. Streams yield their
// dictionary.
func (d *Document) Dict(obj Object) (Dict, bool) {
	resolved, err := d.Resolve(obj)
	if err != nil {
		return nil, false
	}
	switch v := resolved.(type) {
	case Dict:
		return v, true
	case *Stream:
		return v.Dict, true
	}
	return nil, false
}
