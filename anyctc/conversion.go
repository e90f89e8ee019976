package anyctc

import (
	"fmt"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

var internalCreator = anyvec64.DefaultCreator{}

// vectorTo64 creates a vector with []float64 numeric list
// types.
func vectorTo64(v anyvec.Vector) anyvec.Vector {
	return internalCreator.MakeVectorData(floats64(v))
}

// vectorFrom64 converts an internal vector to the numeric
// type of c.
func vectorFrom64(c anyvec.Creator, v anyvec.Vector) anyvec.Vector {
	if _, ok := c.(anyvec64.DefaultCreator); ok {
		return v
	}
	return c.MakeVectorData(c.MakeNumericList(v.Data().([]float64)))
}

// floats64 copies a vector's contents into a []float64.
func floats64(v anyvec.Vector) []float64 {
	switch d := v.Data().(type) {
	case []float64:
		return d
	case []float32:
		s := make([]float64, len(d))
		for i, x := range d {
			s[i] = float64(x)
		}
		return s
	default:
		panic(fmt.Sprintf("unsupported numeric type: %T", d))
	}
}

// seqFloats separates a Seq into one [][]float64 per
// sequence.
func seqFloats(seqs anyseq.Seq) [][][]float64 {
	var res [][][]float64
	for _, seq := range anyseq.SeparateSeqs(seqs.Output()) {
		floatSeq := make([][]float64, len(seq))
		for i, x := range seq {
			floatSeq[i] = floats64(x)
		}
		res = append(res, floatSeq)
	}
	return res
}
