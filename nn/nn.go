// Package nn defines the boundary between the prediction pipeline and the
// neural networks it drives.
//
// A network is an opaque [Model]: it receives a normalized (N, H, W, C)
// batch and returns an output tensor whose leading dimension is N. The
// pipeline never inspects model internals, so any runtime (a Go inference
// engine, a cgo binding, a remote service) can be plugged in.
//
// The package also holds the error taxonomy shared by the predictors.
package nn

import (
	"errors"
	"fmt"

	"github.com/publicMindee/doctr/tensor"
)

var (
	// ErrUnknownArchitecture is returned when an architecture or
	// post-processor name is not registered.
	ErrUnknownArchitecture = errors.New("unknown architecture")

	// ErrInvalidConfig is returned for unusable component settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput is returned when call-time input is malformed, for
	// example images with an unexpected channel count.
	ErrInvalidInput = errors.New("invalid input")

	// ErrShapeMismatch is returned when a model output does not match the
	// shape the pipeline expects.
	ErrShapeMismatch = errors.New("model output shape mismatch")
)

// Model is a neural network callable on a batch of images
type Model interface {
	Forward(batch *tensor.Tensor) (*tensor.Tensor, error)
}

// ModelFunc adapts a function to the Model interface
type ModelFunc func(batch *tensor.Tensor) (*tensor.Tensor, error)

// Forward calls f(batch)
func (f ModelFunc) Forward(batch *tensor.Tensor) (*tensor.Tensor, error) {
	return f(batch)
}

// Forward runs the model on each batch in order and concatenates the outputs
// along the batch axis. Each output must have as many rows as its input.
func Forward(m Model, batches []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: no batch to process", ErrInvalidInput)
	}

	outputs := make([]*tensor.Tensor, 0, len(batches))
	for i, b := range batches {
		out, err := m.Forward(b)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		if out == nil || out.Rank() == 0 || out.Dim(0) != b.Dim(0) {
			var shape []int
			if out != nil {
				shape = out.Shape()
			}
			return nil, fmt.Errorf("%w: batch %d of size %d produced output of shape %v", ErrShapeMismatch, i, b.Dim(0), shape)
		}
		outputs = append(outputs, out)
	}

	out, err := tensor.Concat(outputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return out, nil
}
