// Package tensor provides a minimal dense float32 n-dimensional array used to
// move image batches and network outputs through the prediction pipeline.
//
// Tensors are stored in row-major order. Images use the (H, W, C) layout and
// batches of images the (N, H, W, C) layout, with channel values in RGB order.
package tensor

import (
	"errors"
	"fmt"
)

// ErrShape is returned when tensor shapes are incompatible with an operation
var ErrShape = errors.New("incompatible tensor shape")

// Tensor is a dense row-major float32 array
type Tensor struct {
	shape []int
	data  []float32
}

// New allocates a zero-filled tensor with the given shape
func New(shape ...int) *Tensor {
	return &Tensor{shape: append([]int(nil), shape...), data: make([]float32, volume(shape))}
}

// FromData wraps data with the given shape. The data is not copied.
func FromData(data []float32, shape ...int) (*Tensor, error) {
	if volume(shape) != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

// Shape returns a copy of the tensor dimensions
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Rank returns the number of dimensions
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension i
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Len returns the total number of elements
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the underlying storage. Mutating it mutates the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Clone returns a deep copy of the tensor
func (t *Tensor) Clone() *Tensor {
	out := &Tensor{shape: t.Shape(), data: make([]float32, len(t.data))}
	copy(out.data, t.data)
	return out
}

// offset computes the flat index of a multi-dimensional index
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of size %d", v, i, t.shape[i]))
		}
		off = off*t.shape[i] + v
	}
	return off
}

// At returns the value at the given index
func (t *Tensor) At(idx ...int) float32 {
	return t.data[t.offset(idx)]
}

// Set stores a value at the given index
func (t *Tensor) Set(v float32, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Index returns a copy of the i-th sub-tensor along the first axis
func (t *Tensor) Index(i int) *Tensor {
	if len(t.shape) == 0 || i < 0 || i >= t.shape[0] {
		panic(fmt.Sprintf("tensor: index %d out of range", i))
	}
	inner := volume(t.shape[1:])
	out := &Tensor{shape: append([]int(nil), t.shape[1:]...), data: make([]float32, inner)}
	copy(out.data, t.data[i*inner:(i+1)*inner])
	return out
}

// Reshape returns a tensor sharing the same data with a new shape
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	return FromData(t.data, shape...)
}

// Stack joins tensors of identical shape along a new leading axis
func Stack(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrShape)
	}
	inner := ts[0].shape
	out := New(append([]int{len(ts)}, inner...)...)
	n := volume(inner)
	for i, t := range ts {
		if !sameShape(t.shape, inner) {
			return nil, fmt.Errorf("%w: element %d has shape %v, want %v", ErrShape, i, t.shape, inner)
		}
		copy(out.data[i*n:(i+1)*n], t.data)
	}
	return out, nil
}

// Concat joins tensors along the first axis. All trailing dimensions must match.
func Concat(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: nothing to concatenate", ErrShape)
	}
	if ts[0].Rank() == 0 {
		return nil, fmt.Errorf("%w: cannot concatenate scalars", ErrShape)
	}
	inner := ts[0].shape[1:]
	total := 0
	for i, t := range ts {
		if t.Rank() == 0 || !sameShape(t.shape[1:], inner) {
			return nil, fmt.Errorf("%w: element %d has shape %v, want (*, %v)", ErrShape, i, t.shape, inner)
		}
		total += t.shape[0]
	}
	out := New(append([]int{total}, inner...)...)
	pos := 0
	for _, t := range ts {
		copy(out.data[pos:], t.data)
		pos += len(t.data)
	}
	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
