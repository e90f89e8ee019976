package anyasr

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyspeech/anyconv"
	"github.com/unixpickle/anyspeech/anyrnn"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c ConvRNN
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConvRNN)
}

// State is the recurrent state an Encoder carries from
// one call to the next.
//
// The zero State means "start from scratch".
// States are owned by the caller: an Encoder never keeps
// or modifies one.
type State struct {
	inner anyrnn.State
}

// IsZero checks if the State is a fresh start.
func (s State) IsZero() bool {
	return s.inner == nil
}

// An Encoder maps a batch of feature tensors to a batch
// of hidden feature tensors.
type Encoder interface {
	anyspeech.Parameterizer

	// FreqDim is the size of input frames.
	FreqDim() int

	// HiddenSize is the size of output frames.
	HiddenSize() int

	// TimeKernels and TimeStrides describe the valid
	// convolutions along the time axis, in order.
	TimeKernels() []int
	TimeStrides() []int

	// Encode applies the encoder to a (batch, time, freq)
	// tensor.
	// It returns a (batch, outTime, HiddenSize()) tensor
	// and the state to pass to the next call.
	Encode(in anydiff.Res, batch, time int, s State) (out anydiff.Res, outTime int,
		next State)
}

// ConvRNN is an Encoder which runs a convolutional front
// end followed by recurrent layers.
//
// Either Forward or Bidir may be set, but not both.
// A Forward block carries its state between calls, while
// bidirectional layers always start from scratch.
// With neither, the front end output is the encoding.
type ConvRNN struct {
	FrontEnd *anyconv.FrontEnd
	Forward  anyrnn.Block
	Bidir    []*anyrnn.Bidir

	// Dropout, if non-nil, is applied between Bidir
	// layers.
	Dropout *anyspeech.Dropout

	Hidden int
}

// DeserializeConvRNN deserializes a ConvRNN.
func DeserializeConvRNN(d []byte) (*ConvRNN, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize ConvRNN", err)
	}
	if len(slice) < 3 {
		return nil, errors.New("deserialize ConvRNN: missing fields")
	}
	fe, ok1 := slice[0].(*anyconv.FrontEnd)
	hidden, ok2 := slice[1].(serializer.Int)
	dropout, ok3 := slice[2].(*anyspeech.Dropout)
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("deserialize ConvRNN: bad field types")
	}
	res := &ConvRNN{FrontEnd: fe, Hidden: int(hidden), Dropout: dropout}
	for _, x := range slice[3:] {
		switch x := x.(type) {
		case *anyrnn.Bidir:
			res.Bidir = append(res.Bidir, x)
		case anyrnn.Block:
			if res.Forward != nil {
				return nil, errors.New("deserialize ConvRNN: multiple forward blocks")
			}
			res.Forward = x
		default:
			return nil, fmt.Errorf("deserialize ConvRNN: unexpected %T", x)
		}
	}
	if res.Forward != nil && len(res.Bidir) > 0 {
		return nil, errors.New("deserialize ConvRNN: both forward and bidirectional layers")
	}
	return res, nil
}

// FreqDim returns the front end's input frame size.
func (c *ConvRNN) FreqDim() int {
	return c.FrontEnd.FreqDim
}

// HiddenSize returns c.Hidden.
func (c *ConvRNN) HiddenSize() int {
	return c.Hidden
}

// TimeKernels returns the front end's time kernels.
func (c *ConvRNN) TimeKernels() []int {
	return c.FrontEnd.TimeKernels()
}

// TimeStrides returns the front end's time strides.
func (c *ConvRNN) TimeStrides() []int {
	return c.FrontEnd.TimeStrides()
}

// Encode runs the front end and the recurrent layers.
func (c *ConvRNN) Encode(in anydiff.Res, batch, time int, s State) (anydiff.Res, int,
	State) {
	feats, shape := c.FrontEnd.Apply(in, batch, time)
	if c.Forward == nil && len(c.Bidir) == 0 {
		return feats, shape.Time, State{}
	}

	seq := newTensorSeq(feats, batch, shape.Time, shape.FrameSize())
	var next State
	if c.Forward != nil {
		var final anyrnn.State
		seq, final = anyrnn.MapState(seq, c.Forward, s.inner)
		next = State{inner: final}
	} else {
		for i, layer := range c.Bidir {
			if i > 0 && c.Dropout != nil {
				seq = anyseq.Map(seq, c.Dropout.Apply)
			}
			seq = layer.Apply(seq)
		}
	}
	return newSeqTensor(seq, batch, c.Hidden), shape.Time, next
}

// Parameters returns the parameters of the front end and
// the recurrent layers.
func (c *ConvRNN) Parameters() []*anydiff.Var {
	objs := []interface{}{c.FrontEnd, c.Forward}
	for _, b := range c.Bidir {
		objs = append(objs, b)
	}
	return anyspeech.AllParameters(objs...)
}

// SerializerType returns the unique ID used to serialize
// a ConvRNN with the serializer package.
func (c *ConvRNN) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyasr.ConvRNN"
}

// Serialize serializes the encoder.
// It fails if a recurrent block cannot be serialized.
func (c *ConvRNN) Serialize() ([]byte, error) {
	dropout := c.Dropout
	if dropout == nil {
		dropout = &anyspeech.Dropout{KeepProb: 1}
	}
	slice := []serializer.Serializer{c.FrontEnd, serializer.Int(c.Hidden), dropout}
	if c.Forward != nil {
		ser, ok := c.Forward.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("serialize ConvRNN: not a Serializer: %T", c.Forward)
		}
		slice = append(slice, ser)
	}
	for _, b := range c.Bidir {
		slice = append(slice, b)
	}
	return serializer.SerializeSlice(slice)
}
