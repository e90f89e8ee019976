package anyconv

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const defaultBNStabilizer = 1e-3

func init() {
	var b BatchNorm
	serializer.RegisterTypedDeserializer(b.SerializerType(), DeserializeBatchNorm)
}

// BatchNorm normalizes every channel (depth component)
// using statistics over the whole batch, including every
// time and frequency position.
type BatchNorm struct {
	// Channels is the depth of the input tensors.
	Channels int

	// Post-normalization affine transform.
	Scalers *anydiff.Var
	Biases  *anydiff.Var

	// Stabilizer is added to variances to keep them away
	// from 0.
	// If it is 0, a default is used.
	Stabilizer float64
}

// DeserializeBatchNorm deserializes a BatchNorm.
func DeserializeBatchNorm(d []byte) (*BatchNorm, error) {
	var s, b *anyvecsave.S
	var stab serializer.Float64
	if err := serializer.DeserializeAny(d, &s, &b, &stab); err != nil {
		return nil, essentials.AddCtx("deserialize BatchNorm", err)
	}
	return &BatchNorm{
		Channels:   s.Vector.Len(),
		Scalers:    anydiff.NewVar(s.Vector),
		Biases:     anydiff.NewVar(b.Vector),
		Stabilizer: float64(stab),
	}, nil
}

// NewBatchNorm creates an identity BatchNorm.
func NewBatchNorm(c anyvec.Creator, channels int) *BatchNorm {
	oneScaler := c.MakeVector(channels)
	oneScaler.AddScalar(c.MakeNumeric(1))
	return &BatchNorm{
		Channels: channels,
		Scalers:  anydiff.NewVar(oneScaler),
		Biases:   anydiff.NewVar(c.MakeVector(channels)),
	}
}

// OutShape returns in.
func (b *BatchNorm) OutShape(in Shape) Shape {
	return in
}

// Apply normalizes the batch.
func (b *BatchNorm) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	if shape.Depth != b.Channels || in.Output().Len()%b.Channels != 0 {
		panic("invalid input size")
	}
	if in.Output().Len() == 0 {
		return in
	}
	return anydiff.Pool(in, func(in anydiff.Res) anydiff.Res {
		c := in.Output().Creator()

		negMean := channelNegMean(in, b.Channels)
		secondMoment := channelMeanSquare(in, b.Channels)
		variance := anydiff.Sub(secondMoment, anydiff.Square(negMean))
		variance = anydiff.AddScalar(variance, c.MakeNumeric(b.stabilizer()))
		normalizer := anydiff.Pow(variance, c.MakeNumeric(-0.5))

		totalScaler := anydiff.Mul(b.Scalers, normalizer)
		return anydiff.Pool(totalScaler, func(totalScaler anydiff.Res) anydiff.Res {
			return anydiff.ScaleAddRepeated(
				in,
				totalScaler,
				anydiff.Add(b.Biases, anydiff.Mul(negMean, totalScaler)),
			)
		})
	})
}

// Parameters returns the scales and the biases, in that
// order.
func (b *BatchNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{b.Scalers, b.Biases}
}

// SerializerType returns the unique ID used to serialize
// a BatchNorm with the serializer package.
func (b *BatchNorm) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyconv.BatchNorm"
}

// Serialize serializes the layer.
func (b *BatchNorm) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: b.Scalers.Vector},
		&anyvecsave.S{Vector: b.Biases.Vector},
		serializer.Float64(b.Stabilizer),
	)
}

func (b *BatchNorm) stabilizer() float64 {
	if b.Stabilizer == 0 {
		return defaultBNStabilizer
	}
	return b.Stabilizer
}

type channelStatRes struct {
	In     anydiff.Res
	Scaler anyvec.Numeric
	Square bool
	Out    anyvec.Vector
}

// channelNegMean computes the negative mean of each
// column of a row-major matrix.
func channelNegMean(in anydiff.Res, cols int) anydiff.Res {
	rows := in.Output().Len() / cols
	scaler := in.Output().Creator().MakeNumeric(-1 / float64(rows))
	out := anyvec.SumRows(in.Output().Copy(), cols)
	out.Scale(scaler)
	return &channelStatRes{In: in, Scaler: scaler, Out: out}
}

// channelMeanSquare computes the mean of the squares in
// each column of a row-major matrix.
func channelMeanSquare(in anydiff.Res, cols int) anydiff.Res {
	rows := in.Output().Len() / cols
	c := in.Output().Creator()
	squares := in.Output().Copy()
	squares.Mul(in.Output())
	out := anyvec.SumRows(squares, cols)
	out.Scale(c.MakeNumeric(1 / float64(rows)))
	return &channelStatRes{
		In:     in,
		Scaler: c.MakeNumeric(2 / float64(rows)),
		Square: true,
		Out:    out,
	}
}

func (c *channelStatRes) Output() anyvec.Vector {
	return c.Out
}

func (c *channelStatRes) Vars() anydiff.VarSet {
	return c.In.Vars()
}

func (c *channelStatRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	u.Scale(c.Scaler)
	downstream := c.Out.Creator().MakeVector(c.In.Output().Len())
	anyvec.AddRepeated(downstream, u)
	if c.Square {
		downstream.Mul(c.In.Output())
	}
	c.In.Propagate(downstream, g)
}
