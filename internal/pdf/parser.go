package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var errEOF = errors.New("unexpected end of data")

// maxDepth bounds array and dictionary nesting
const maxDepth = 64

// parser reads objects from an in-memory buffer. lengthOf resolves indirect
// stream lengths and may be nil.
type parser struct {
	data     []byte
	pos      int
	lengthOf func(Ref) (int, bool)
}

func newParser(data []byte, pos int) *parser {
	return &parser{data: data, pos: pos}
}

func isSpace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skip moves past whitespace and comments
func (p *parser) skip() {
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		switch {
		case isSpace(b):
			p.pos++
		case b == '%':
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

// keyword reads a run of regular characters
func (p *parser) keyword() string {
	p.skip()
	start := p.pos
	for p.pos < len(p.data) && !isSpace(p.data[p.pos]) && !isDelim(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// object parses the next direct object. Stream bodies are read when a
// dictionary is followed by the stream keyword.
func (p *parser) object() (Object, error) {
	return p.parse(0)
}

func (p *parser) parse(depth int) (Object, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("objects nested deeper than %d", maxDepth)
	}
	p.skip()
	if p.pos >= len(p.data) {
		return nil, errEOF
	}

	switch b := p.data[p.pos]; {
	case b == '/':
		return p.name()
	case b == '(':
		return p.literal()
	case b == '<' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '<':
		return p.dict(depth)
	case b == '<':
		return p.hex()
	case b == '[':
		p.pos++
		var arr Array
		for {
			p.skip()
			if p.pos >= len(p.data) {
				return nil, errEOF
			}
			if p.data[p.pos] == ']' {
				p.pos++
				return arr, nil
			}
			obj, err := p.parse(depth + 1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, obj)
		}
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return p.number()
	}

	start := p.pos
	switch kw := p.keyword(); kw {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "null":
		return Null{}, nil
	case "":
		p.pos++
		return nil, fmt.Errorf("unexpected %q at offset %d", p.data[start], start)
	default:
		return nil, fmt.Errorf("unexpected keyword %q at offset %d", kw, start)
	}
}

// number parses an integer, a real, or the "num gen R" reference form
func (p *parser) number() (Object, error) {
	start := p.pos
	tok := p.keyword()
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		if i >= 0 {
			if ref, ok := p.reference(int(i)); ok {
				return ref, nil
			}
		}
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q at offset %d", tok, start)
	}
	return Real(f), nil
}

// reference looks ahead for "gen R" after an object number, restoring the
// position when the pattern does not match
func (p *parser) reference(num int) (Ref, bool) {
	save := p.pos
	gen, err := strconv.Atoi(p.keyword())
	if err == nil && gen >= 0 && p.keyword() == "R" {
		return Ref{Number: num, Generation: gen}, true
	}
	p.pos = save
	return Ref{}, false
}

func (p *parser) name() (Object, error) {
	p.pos++
	var buf []byte
	for p.pos < len(p.data) && !isSpace(p.data[p.pos]) && !isDelim(p.data[p.pos]) {
		b := p.data[p.pos]
		if b == '#' && p.pos+2 < len(p.data) {
			if v, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+3]), 16, 8); err == nil {
				buf = append(buf, byte(v))
				p.pos += 3
				continue
			}
		}
		buf = append(buf, b)
		p.pos++
	}
	return Name(buf), nil
}

func (p *parser) literal() (Object, error) {
	p.pos++
	var buf []byte
	nesting := 1
	for p.pos < len(p.data) {
		b := p.data[p.pos]
		p.pos++
		switch b {
		case '(':
			nesting++
		case ')':
			nesting--
			if nesting == 0 {
				return String(buf), nil
			}
		case '\\':
			if p.pos >= len(p.data) {
				return nil, errEOF
			}
			e := p.data[p.pos]
			p.pos++
			switch e {
			case 'n':
				b = '\n'
			case 'r':
				b = '\r'
			case 't':
				b = '\t'
			case 'b':
				b = '\b'
			case 'f':
				b = '\f'
			case '\r':
				if p.pos < len(p.data) && p.data[p.pos] == '\n' {
					p.pos++
				}
				continue
			case '\n':
				continue
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && p.pos < len(p.data) && p.data[p.pos] >= '0' && p.data[p.pos] <= '7'; i++ {
						v = v*8 + int(p.data[p.pos]-'0')
						p.pos++
					}
					b = byte(v)
				} else {
					b = e
				}
			}
		}
		buf = append(buf, b)
	}
	return nil, errEOF
}

func (p *parser) hex() (Object, error) {
	p.pos++
	end := bytes.IndexByte(p.data[p.pos:], '>')
	if end < 0 {
		return nil, errEOF
	}
	decoded, err := asciiHexDecode(p.data[p.pos : p.pos+end+1])
	if err != nil {
		return nil, err
	}
	p.pos += end + 1
	return String(decoded), nil
}

func (p *parser) dict(depth int) (Object, error) {
	p.pos += 2
	d := make(Dict)
	for {
		p.skip()
		if p.pos+1 >= len(p.data) {
			return nil, errEOF
		}
		if p.data[p.pos] == '>' && p.data[p.pos+1] == '>' {
			p.pos += 2
			break
		}
		key, err := p.parse(depth + 1)
		if err != nil {
			return nil, err
		}
		name, ok := key.(Name)
		if !ok {
			return nil, fmt.Errorf("dictionary key %v is not a name", key)
		}
		value, err := p.parse(depth + 1)
		if err != nil {
			return nil, err
		}
		d[string(name)] = value
	}

	save := p.pos
	if p.keyword() != "stream" {
		p.pos = save
		return d, nil
	}
	return p.streamBody(d)
}

// streamBody reads the bytes following the stream keyword. A missing or
// wrong /Length falls back to searching for endstream.
func (p *parser) streamBody(d Dict) (*Stream, error) {
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}
	start := p.pos

	length := -1
	switch v := d["Length"].(type) {
	case Int:
		length = int(v)
	case Ref:
		if p.lengthOf != nil {
			if n, ok := p.lengthOf(v); ok {
				length = n
			}
		}
	}

	if length >= 0 && start+length <= len(p.data) {
		end := start + length
		after := newParser(p.data, end)
		if after.keyword() == "endstream" {
			p.pos = after.pos
			return &Stream{Dict: d, Data: p.data[start:end]}, nil
		}
	}

	idx := bytes.Index(p.data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, fmt.Errorf("stream at offset %d has no endstream", start)
	}
	end := start + idx
	for end > start && (p.data[end-1] == '\n' || p.data[end-1] == '\r') {
		end--
	}
	p.pos = start + idx + len("endstream")
	return &Stream{Dict: d, Data: p.data[start:end]}, nil
}

// indirect parses "num gen obj ... endobj" at the current position
func (p *parser) indirect() (Ref, Object, error) {
	num, err1 := strconv.Atoi(p.keyword())
	gen, err2 := strconv.Atoi(p.keyword())
	if err1 != nil || err2 != nil || p.keyword() != "obj" {
		return Ref{}, nil, fmt.Errorf("no object header at offset %d", p.pos)
	}
	obj, err := p.object()
	if err != nil {
		return Ref{}, nil, fmt.Errorf("object %d: %w", num, err)
	}
	return Ref{Number: num, Generation: gen}, obj, nil
}
