package anyasr

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

// swapMapper creates a mapper whose Map turns a packed
// (a, b, frame) tensor into a (b, a, frame) tensor.
// Since it is a permutation, MapTranspose undoes Map.
func swapMapper(c anyvec.Creator, a, b, frame int) anyvec.Mapper {
	table := make([]int, 0, a*b*frame)
	for j := 0; j < b; j++ {
		for i := 0; i < a; i++ {
			start := (i*b + j) * frame
			for k := 0; k < frame; k++ {
				table = append(table, start+k)
			}
		}
	}
	return c.MakeMapper(a*b*frame, table)
}

// swapAxes turns a (a, b, frame) tensor into a
// (b, a, frame) tensor.
func swapAxes(in anydiff.Res, a, b, frame int) anydiff.Res {
	if in.Output().Len() == 0 {
		return in
	}
	c := in.Output().Creator()
	m := swapMapper(c, a, b, frame)
	out := c.MakeVector(m.OutSize())
	m.Map(in.Output(), out)
	return &swapRes{In: in, Mapper: m, OutVec: out}
}

type swapRes struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
}

func (s *swapRes) Output() anyvec.Vector {
	return s.OutVec
}

func (s *swapRes) Vars() anydiff.VarSet {
	return s.In.Vars()
}

func (s *swapRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	down := u.Creator().MakeVector(s.Mapper.InSize())
	s.Mapper.MapTranspose(u, down)
	s.In.Propagate(down, g)
}

// tensorSeq views a (batch, time, frame) tensor as a Seq
// of time full batches.
type tensorSeq struct {
	In     anydiff.Res
	Mapper anyvec.Mapper
	Out    []*anyseq.Batch
}

func newTensorSeq(in anydiff.Res, batch, time, frame int) anyseq.Seq {
	res := &tensorSeq{In: in}
	if time == 0 || batch == 0 {
		return res
	}
	c := in.Output().Creator()
	res.Mapper = swapMapper(c, batch, time, frame)
	packed := c.MakeVector(res.Mapper.OutSize())
	res.Mapper.Map(in.Output(), packed)
	present := make([]bool, batch)
	for i := range present {
		present[i] = true
	}
	step := batch * frame
	for t := 0; t < time; t++ {
		res.Out = append(res.Out, &anyseq.Batch{
			Packed:  packed.Slice(t*step, (t+1)*step),
			Present: present,
		})
	}
	return res
}

func (t *tensorSeq) Creator() anyvec.Creator {
	return t.In.Output().Creator()
}

func (t *tensorSeq) Output() []*anyseq.Batch {
	return t.Out
}

func (t *tensorSeq) Vars() anydiff.VarSet {
	return t.In.Vars()
}

func (t *tensorSeq) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if len(u) == 0 {
		return
	}
	c := t.Creator()
	var packed []anyvec.Vector
	for _, b := range u {
		packed = append(packed, b.Packed)
	}
	down := c.MakeVector(t.Mapper.InSize())
	t.Mapper.MapTranspose(c.Concat(packed...), down)
	t.In.Propagate(down, g)
}

// seqTensor packs a Seq of full batches into a
// (batch, time, frame) tensor.
type seqTensor struct {
	In     anyseq.Seq
	Mapper anyvec.Mapper
	OutVec anyvec.Vector
	Batch  int
}

func newSeqTensor(in anyseq.Seq, batch, frame int) anydiff.Res {
	steps := in.Output()
	c := in.Creator()
	if len(steps) == 0 {
		return anydiff.NewConst(c.MakeVector(0))
	}
	var packed []anyvec.Vector
	for _, b := range steps {
		packed = append(packed, b.Packed)
	}
	m := swapMapper(c, batch, len(steps), frame)
	out := c.MakeVector(m.InSize())
	m.MapTranspose(c.Concat(packed...), out)
	return &seqTensor{In: in, Mapper: m, OutVec: out, Batch: batch}
}

func (s *seqTensor) Output() anyvec.Vector {
	return s.OutVec
}

func (s *seqTensor) Vars() anydiff.VarSet {
	return s.In.Vars()
}

func (s *seqTensor) Propagate(u anyvec.Vector, g anydiff.Grad) {
	timeMajor := u.Creator().MakeVector(s.Mapper.OutSize())
	s.Mapper.Map(u, timeMajor)
	steps := s.In.Output()
	step := timeMajor.Len() / len(steps)
	down := make([]*anyseq.Batch, len(steps))
	for i, b := range steps {
		down[i] = &anyseq.Batch{
			Packed:  timeMajor.Slice(i*step, (i+1)*step),
			Present: b.Present,
		}
	}
	s.In.Propagate(down, g)
}
