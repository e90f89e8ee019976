package anyspeech

import (
	"errors"
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var p Projection
	serializer.RegisterTypedDeserializer(p.SerializerType(), DeserializeProjection)
}

// A Projection is an affine map applied independently to
// every frame of a batch.
//
// In a CTC model, it maps encoder features to one score
// per class, plus one score for the blank.
type Projection struct {
	InDim   int
	OutDim  int
	Weights *anydiff.Var
	Biases  *anydiff.Var
}

// DeserializeProjection deserializes a Projection.
func DeserializeProjection(d []byte) (*Projection, error) {
	var weights, biases *anyvecsave.S
	if err := serializer.DeserializeAny(d, &weights, &biases); err != nil {
		return nil, essentials.AddCtx("deserialize Projection", err)
	}
	outDim := biases.Vector.Len()
	if outDim == 0 || weights.Vector.Len()%outDim != 0 {
		return nil, errors.New("deserialize Projection: invalid matrix dimensions")
	}
	return &Projection{
		InDim:   weights.Vector.Len() / outDim,
		OutDim:  outDim,
		Weights: anydiff.NewVar(weights.Vector),
		Biases:  anydiff.NewVar(biases.Vector),
	}, nil
}

// NewProjection creates a randomized Projection whose
// outputs have unit variance for unit-variance inputs.
func NewProjection(c anyvec.Creator, inDim, outDim int) *Projection {
	res := NewProjectionZero(c, inDim, outDim)
	anyvec.Rand(res.Weights.Vector, anyvec.Normal, nil)
	res.Weights.Vector.Scale(c.MakeNumeric(1 / math.Sqrt(float64(inDim))))
	return res
}

// NewProjectionZero creates an all-zero Projection.
func NewProjectionZero(c anyvec.Creator, inDim, outDim int) *Projection {
	return &Projection{
		InDim:   inDim,
		OutDim:  outDim,
		Weights: anydiff.NewVar(c.MakeVector(inDim * outDim)),
		Biases:  anydiff.NewVar(c.MakeVector(outDim)),
	}
}

// Apply projects a packed batch of frames.
// The result is row-major, one row of OutDim values per
// frame.
func (p *Projection) Apply(in anydiff.Res, frames int) anydiff.Res {
	if frames*p.InDim != in.Output().Len() {
		panic(fmt.Sprintf("input length should be %d, but got %d",
			frames*p.InDim, in.Output().Len()))
	}
	if frames == 0 {
		return anydiff.NewConst(in.Output().Creator().MakeVector(0))
	}
	weightMat := &anydiff.Matrix{
		Data: p.Weights,
		Rows: p.OutDim,
		Cols: p.InDim,
	}
	inMat := &anydiff.Matrix{
		Data: in,
		Rows: frames,
		Cols: p.InDim,
	}
	return anydiff.AddRepeated(anydiff.MatMul(false, true, inMat, weightMat).Data, p.Biases)
}

// BiasClass adds val to the bias of a single output.
// A negative blank bias is a common initialization for
// CTC heads.
func (p *Projection) BiasClass(idx int, val float64) {
	c := p.Biases.Vector.Creator()
	bias := p.Biases.Vector.Slice(idx, idx+1)
	bias.AddScalar(c.MakeNumeric(val))
	p.Biases.Vector.SetSlice(idx, bias)
}

// Parameters returns the weights and the biases, in that
// order.
func (p *Projection) Parameters() []*anydiff.Var {
	return []*anydiff.Var{p.Weights, p.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Projection with the serializer package.
func (p *Projection) SerializerType() string {
	return "github.com/unixpickle/anyspeech.Projection"
}

// Serialize serializes the Projection.
func (p *Projection) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: p.Weights.Vector},
		&anyvecsave.S{Vector: p.Biases.Vector},
	)
}
