package anyconv

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var f FrontEnd
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFrontEnd)
}

// A FrontEnd is a stack of stages which turns a batch of
// feature sequences into a batch of shorter (or equally
// long) sequences of feature frames.
//
// Inputs are packed as (batch, time, freq) with a depth
// of 1.
type FrontEnd struct {
	FreqDim int
	Stages  []Stage
}

// DeserializeFrontEnd deserializes a FrontEnd.
func DeserializeFrontEnd(d []byte) (*FrontEnd, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize FrontEnd", err)
	}
	if len(slice) == 0 {
		return nil, errors.New("deserialize FrontEnd: missing frequency dim")
	}
	freq, ok := slice[0].(serializer.Int)
	if !ok {
		return nil, fmt.Errorf("deserialize FrontEnd: bad frequency dim: %T", slice[0])
	}
	res := &FrontEnd{FreqDim: int(freq)}
	for _, x := range slice[1:] {
		stage, ok := x.(Stage)
		if !ok {
			return nil, fmt.Errorf("deserialize FrontEnd: not a Stage: %T", x)
		}
		res.Stages = append(res.Stages, stage)
	}
	return res, nil
}

// InShape returns the input shape for a time length.
func (f *FrontEnd) InShape(time int) Shape {
	return Shape{Time: time, Freq: f.FreqDim, Depth: 1}
}

// OutShape composes the output shapes of every stage.
func (f *FrontEnd) OutShape(in Shape) Shape {
	for _, s := range f.Stages {
		in = s.OutShape(in)
	}
	return in
}

// OutputLength maps an input time length to the time
// length of the output.
func (f *FrontEnd) OutputLength(time int) int {
	return f.OutShape(f.InShape(time)).Time
}

// FrameSize returns the number of components in each
// output frame.
func (f *FrontEnd) FrameSize() int {
	out := Shape{Freq: f.FreqDim, Depth: 1}
	for _, s := range f.Stages {
		out = s.OutShape(out)
	}
	return out.FrameSize()
}

// TimeKernels returns the time-axis kernel size of every
// TimeReducer stage, in order.
func (f *FrontEnd) TimeKernels() []int {
	var res []int
	for _, s := range f.Stages {
		if r, ok := s.(TimeReducer); ok {
			res = append(res, r.TimeKernel())
		}
	}
	return res
}

// TimeStrides is like TimeKernels, but for strides.
func (f *FrontEnd) TimeStrides() []int {
	var res []int
	for _, s := range f.Stages {
		if r, ok := s.(TimeReducer); ok {
			res = append(res, r.TimeStride())
		}
	}
	return res
}

// Apply runs the stages on a batch of inputs, each with
// the given time length.
// It returns the output along with its per-example
// shape.
func (f *FrontEnd) Apply(in anydiff.Res, batch, time int) (anydiff.Res, Shape) {
	shape := f.InShape(time)
	if in.Output().Len() != batch*shape.Size() {
		panic(fmt.Sprintf("front end input should have length %d but has %d",
			batch*shape.Size(), in.Output().Len()))
	}
	for _, s := range f.Stages {
		in = s.Apply(in, batch, shape)
		shape = s.OutShape(shape)
	}
	return in, shape
}

// Parameters returns the parameters of every stage.
func (f *FrontEnd) Parameters() []*anydiff.Var {
	var stages []interface{}
	for _, s := range f.Stages {
		stages = append(stages, s)
	}
	return anyspeech.AllParameters(stages...)
}

// SerializerType returns the unique ID used to serialize
// a FrontEnd with the serializer package.
func (f *FrontEnd) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyconv.FrontEnd"
}

// Serialize serializes the FrontEnd.
// It fails if any stage is not a serializer.Serializer.
func (f *FrontEnd) Serialize() ([]byte, error) {
	slice := []serializer.Serializer{serializer.Int(f.FreqDim)}
	for _, s := range f.Stages {
		ser, ok := s.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("serialize FrontEnd: not a Serializer: %T", s)
		}
		slice = append(slice, ser)
	}
	return serializer.SerializeSlice(slice)
}
