package anyspeech

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is returned when an operation receives a
// batch with no examples.
var ErrEmptyBatch = errors.New("empty batch")

// A ShapeError indicates that a tensor dimension did not
// match what an operation expected.
type ShapeError struct {
	// Op names the operation that detected the mismatch.
	Op string

	// What names the mismatched dimension, e.g.
	// "frequency dim of example 3".
	What string

	Want int
	Got  int
}

func (s *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s should be %d but got %d", s.Op, s.What, s.Want, s.Got)
}

// A LabelError indicates a label outside of the real
// class range [0, OutputDim).
type LabelError struct {
	Example   int
	Index     int
	Class     int
	OutputDim int
}

func (l *LabelError) Error() string {
	return fmt.Sprintf("label %d of example %d: class %d not in [0, %d)",
		l.Index, l.Example, l.Class, l.OutputDim)
}

// A DeviceError indicates that a compute device was
// requested but cannot be used.
type DeviceError struct {
	Device string
	Reason string
}

func (d *DeviceError) Error() string {
	return fmt.Sprintf("device %q: %s", d.Device, d.Reason)
}
