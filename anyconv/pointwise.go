package anyconv

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p Pointwise
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializePointwise)
}

// Pointwise wraps a shape-preserving layer, such as an
// activation or dropout, as a Stage.
//
// The layer sees one vector per (time, freq) position.
type Pointwise struct {
	Layer anyspeech.Layer
}

// DeserializePointwise deserializes a Pointwise.
func DeserializePointwise(d []byte) (*Pointwise, error) {
	var res Pointwise
	if err := serializer.DeserializeAny(d, &res.Layer); err != nil {
		return nil, essentials.AddCtx("deserialize Pointwise", err)
	}
	return &res, nil
}

// OutShape returns in.
func (p *Pointwise) OutShape(in Shape) Shape {
	return in
}

// Apply applies the layer.
func (p *Pointwise) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	if in.Output().Len() == 0 {
		return in
	}
	return p.Layer.Apply(in, batch*shape.Time*shape.Freq)
}

// Parameters returns the layer's parameters, if it has
// any.
func (p *Pointwise) Parameters() []*anydiff.Var {
	return anyspeech.AllParameters(p.Layer)
}

// SerializerType returns the unique ID used to serialize
// a Pointwise with the serializer package.
func (p *Pointwise) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyconv.Pointwise"
}

// Serialize serializes the stage.
func (p *Pointwise) Serialize() ([]byte, error) {
	s, ok := p.Layer.(serializer.Serializer)
	if !ok {
		return nil, fmt.Errorf("serialize Pointwise: not a Serializer: %T", p.Layer)
	}
	return serializer.SerializeAny(s)
}
