// Package anyconv implements the convolutional front end
// of a speech model.
//
// Tensors are packed per example as (time, freq, depth)
// in row-major, depth-minor order.
// Unlike image layers, the time axis is not fixed: every
// stage accepts whatever time length a batch has and
// reports the time length it produces.
package anyconv

import (
	"github.com/unixpickle/anydiff"
)

// Shape is the shape of one example in a batch.
type Shape struct {
	Time  int
	Freq  int
	Depth int
}

// FrameSize returns the number of components per
// timestep.
func (s Shape) FrameSize() int {
	return s.Freq * s.Depth
}

// Size returns the number of components per example.
func (s Shape) Size() int {
	return s.Time * s.Freq * s.Depth
}

// A Stage is one step of a front end.
type Stage interface {
	// Apply applies the stage to a batch of tensors with
	// the given per-example shape.
	Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res

	// OutShape computes the per-example output shape.
	OutShape(in Shape) Shape
}

// A TimeReducer is a Stage which shrinks the time axis
// by sliding a window along it.
type TimeReducer interface {
	Stage

	TimeKernel() int
	TimeStride() int
}

// windowCount is the number of positions a window of
// size k can take along an axis of length n with stride s.
func windowCount(n, k, s int) int {
	if n < k {
		return 0
	}
	return 1 + (n-k)/s
}
