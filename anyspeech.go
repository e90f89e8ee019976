// Package anyspeech provides the building blocks for
// CTC speech recognition models: layers that run on
// batched frames, a per-frame projection onto class
// scores, and the errors shared by the sub-packages.
//
// Sub-packages implement the convolutional front end
// (anyconv), recurrent encoders (anyrnn), the CTC loss
// and decoders (anyctc), acoustic features (anyfeat), and
// the model wrapper which ties them together (anyasr).
package anyspeech

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var n Net
	serializer.RegisterTypedDeserializer(n.SerializerType(), DeserializeNet)
}

// A Parameterizer is anything with learnable variables.
//
// The parameters of a Parameterizer must be in the same
// order every time Parameters() is called.
type Parameterizer interface {
	Parameters() []*anydiff.Var
}

// AllParameters gathers the parameters of every argument
// which implements Parameterizer, in order.
// Other arguments, including nil, are skipped.
func AllParameters(objs ...interface{}) []*anydiff.Var {
	var res []*anydiff.Var
	for _, obj := range objs {
		if p, ok := obj.(Parameterizer); ok {
			res = append(res, p.Parameters()...)
		}
	}
	return res
}

// A Layer is a batched computation on packed vectors.
//
// The input's length must be divisible by the batch size.
// For frame-level layers, the batch size is the number
// of frames (usually batch*time).
type Layer interface {
	Apply(in anydiff.Res, batchSize int) anydiff.Res
}

// A Net evaluates a list of layers, one after another.
type Net []Layer

// DeserializeNet deserializes a Net.
func DeserializeNet(d []byte) (Net, error) {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Net", err)
	}
	res := make(Net, len(slice))
	for i, x := range slice {
		layer, ok := x.(Layer)
		if !ok {
			return nil, fmt.Errorf("deserialize Net: not a Layer: %T", x)
		}
		res[i] = layer
	}
	return res, nil
}

// Apply applies the layers in order.
// An empty Net is the identity.
func (n Net) Apply(in anydiff.Res, batchSize int) anydiff.Res {
	for _, l := range n {
		in = l.Apply(in, batchSize)
	}
	return in
}

// Parameters returns the parameters of every layer that
// implements Parameterizer, first layer first.
func (n Net) Parameters() []*anydiff.Var {
	var layers []interface{}
	for _, l := range n {
		layers = append(layers, l)
	}
	return AllParameters(layers...)
}

// SerializerType returns the unique ID used to serialize
// a Net with the serializer package.
func (n Net) SerializerType() string {
	return "github.com/unixpickle/anyspeech.Net"
}

// Serialize serializes the network.
// It fails if any Layer is not a serializer.Serializer.
func (n Net) Serialize() ([]byte, error) {
	var slice []serializer.Serializer
	for _, x := range n {
		s, ok := x.(serializer.Serializer)
		if !ok {
			return nil, fmt.Errorf("not a Serializer: %T", x)
		}
		slice = append(slice, s)
	}
	return serializer.SerializeSlice(slice)
}
