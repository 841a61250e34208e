package pdf

import (
	"strconv"
	"strings"
)

// Object is a parsed PDF value.
type Object interface {
	String() string
}

// Null is the PDF null object
type Null struct{}

func (Null) String() string { return "null" }

// Bool is a PDF boolean
type Bool bool

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Int is a PDF integer
type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Real is a PDF real number
type Real float64

func (r Real) String() string { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String is a PDF literal or hex string, already unescaped
type String string

func (s String) String() string { return string(s) }

// Name is a PDF name without its leading slash
type Name string

func (n Name) String() string { return "/" + string(n) }

// Array is a PDF array
type Array []Object

func (a Array) String() string {
	parts := make([]string, len(a))
	for i, obj := range a {
		parts[i] = obj.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Dict is a PDF dictionary keyed by name without the slash
type Dict map[string]Object

func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for k, v := range d {
		sb.WriteString(" /" + k + " " + v.String())
	}
	sb.WriteString(" >>")
	return sb.String()
}

// Name returns the name stored under key, or "" when absent or not a name
func (d Dict) Name(key string) string {
	if n, ok := d[key].(Name); ok {
		return string(n)
	}
	return ""
}

// Int returns the integer stored under key
func (d Dict) Int(key string) (int, bool) {
	switch v := d[key].(type) {
	case Int:
		return int(v), true
	case Real:
		return int(v), true
	}
	return 0, false
}

// Bool returns the boolean stored under key, or false
func (d Dict) Bool(key string) bool {
	b, _ := d[key].(Bool)
	return bool(b)
}

// Stream is a dictionary followed by raw, still encoded, bytes
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) String() string { return s.Dict.String() + " stream" }

// Ref is an indirect reference "num gen R"
type Ref struct {
	Number     int
	Generation int
}

func (r Ref) String() string {
	return strconv.Itoa(r.Number) + " " + strconv.Itoa(r.Generation) + " R"
}

// number converts Int and Real values to float64
func number(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}
