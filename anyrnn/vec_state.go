package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A VecState is a State and StateGrad that stores one
// fixed-size vector per present sequence.
type VecState struct {
	Vector     anyvec.Vector
	PresentMap PresentMap
}

// NewVecState repeats v for n present sequences.
func NewVecState(v anyvec.Vector, n int) *VecState {
	rep := v.Creator().MakeVector(v.Len() * n)
	anyvec.AddRepeated(rep, v)
	return &VecState{
		Vector:     rep,
		PresentMap: allPresent(n),
	}
}

// Present returns the PresentMap.
func (v *VecState) Present() PresentMap {
	return v.PresentMap
}

// Reduce keeps the chunks for the sequences in p.
func (v *VecState) Reduce(p PresentMap) State {
	inc := v.chunkSize()
	var chunks []anyvec.Vector
	var offset int
	for i, pres := range v.PresentMap {
		if !pres {
			if p[i] {
				panic("argument to Reduce must be a subset")
			}
			continue
		}
		if p[i] {
			chunks = append(chunks, v.Vector.Slice(offset, offset+inc))
		}
		offset += inc
	}
	return &VecState{
		Vector:     concatChunks(v.Vector.Creator(), chunks),
		PresentMap: p,
	}
}

// Expand inserts zero chunks for the sequences in p that
// are not present in v.
func (v *VecState) Expand(p PresentMap) StateGrad {
	inc := v.chunkSize()
	filler := v.Vector.Creator().MakeVector(inc)
	var chunks []anyvec.Vector
	var offset int
	for i, pres := range p {
		if v.PresentMap[i] {
			if !pres {
				panic("argument to Expand must be a superset")
			}
			chunks = append(chunks, v.Vector.Slice(offset, offset+inc))
			offset += inc
		} else if pres {
			chunks = append(chunks, filler)
		}
	}
	return &VecState{
		Vector:     concatChunks(v.Vector.Creator(), chunks),
		PresentMap: p,
	}
}

// PropagateStart treats v as the gradient of a start
// state built by NewVecState(va.Vector, n) and sums it
// into the gradient for va.
//
// All sequences must be present.
func (v *VecState) PropagateStart(va *anydiff.Var, g anydiff.Grad) {
	for _, x := range v.PresentMap {
		if !x {
			panic("all sequences must be present")
		}
	}
	if dest, ok := g[va]; ok {
		dest.Add(anyvec.SumRows(v.Vector, va.Vector.Len()))
	}
}

func (v *VecState) chunkSize() int {
	n := v.PresentMap.NumPresent()
	if n == 0 {
		return 0
	}
	return v.Vector.Len() / n
}

func concatChunks(c anyvec.Creator, chunks []anyvec.Vector) anyvec.Vector {
	if len(chunks) == 0 {
		return c.MakeVector(0)
	}
	return c.Concat(chunks...)
}
