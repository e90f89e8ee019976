package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
)

type mapRes struct {
	F        func(s StateGrad, g anydiff.Grad)
	InitPres PresentMap
	In       anyseq.Seq
	Out      []*anyseq.Batch
	BlockRes []Res
	V        anydiff.VarSet
}

// Map maps a Block over a batch of sequences, starting
// from the Block's start state.
func Map(s anyseq.Seq, b Block) anyseq.Seq {
	out, _ := MapState(s, b, nil)
	return out
}

// MapState is like Map, but it can resume from a State
// produced by an earlier call and it returns the State
// after the last timestep.
//
// If start is nil, the Block's start state is used and
// gradients flow into it.
// A non-nil start is treated as a constant.
//
// The final State holds one entry per sequence that is
// still present at the last timestep.
// For an empty input, the final State is start (which
// may be nil).
func MapState(s anyseq.Seq, b Block, start State) (anyseq.Seq, State) {
	inSteps := s.Output()
	if len(inSteps) == 0 {
		return &mapRes{In: s, V: s.Vars()}, start
	}
	if start == nil {
		start = b.Start(len(inSteps[0].Present))
		out := MapWithStart(s, b, start, b.PropagateStart)
		return out, finalState(out)
	}
	out := MapWithStart(s, b, start, func(StateGrad, anydiff.Grad) {})
	return out, finalState(out)
}

// MapWithStart is like Map, but it takes a custom start
// state.
//
// During back-propagation, f is called with the upstream
// gradient for the start state.
func MapWithStart(s anyseq.Seq, b Block, state State, f func(StateGrad, anydiff.Grad)) anyseq.Seq {
	inSteps := s.Output()
	if len(inSteps) == 0 {
		return &mapRes{In: s, V: s.Vars()}
	}

	initPres := state.Present()
	res := &mapRes{F: f, InitPres: initPres, In: s, V: s.Vars()}

	for _, x := range inSteps {
		if x.NumPresent() != state.Present().NumPresent() {
			state = state.Reduce(x.Present)
		}
		step := b.Step(state, x.Packed)
		res.BlockRes = append(res.BlockRes, step)
		res.V = anydiff.MergeVarSets(res.V, step.Vars())
		res.Out = append(res.Out, &anyseq.Batch{
			Packed:  step.Output(),
			Present: x.Present,
		})
		state = step.State()
	}

	return res
}

func finalState(s anyseq.Seq) State {
	m := s.(*mapRes)
	return m.BlockRes[len(m.BlockRes)-1].State()
}

func (m *mapRes) Creator() anyvec.Creator {
	return m.In.Creator()
}

func (m *mapRes) Output() []*anyseq.Batch {
	return m.Out
}

func (m *mapRes) Vars() anydiff.VarSet {
	return m.V
}

func (m *mapRes) Propagate(u []*anyseq.Batch, g anydiff.Grad) {
	if len(u) == 0 {
		return
	}

	var downstream []*anyseq.Batch
	if g.Intersects(m.In.Vars()) {
		downstream = make([]*anyseq.Batch, len(u))
	}

	var upState StateGrad
	for i := len(m.BlockRes) - 1; i >= 0; i-- {
		blockRes := m.BlockRes[i]
		if upState != nil {
			newPres := blockRes.State().Present()
			if newPres.NumPresent() != upState.Present().NumPresent() {
				upState = upState.Expand(newPres)
			}
		}
		down, downState := blockRes.Propagate(u[i].Packed, upState, g)
		if downstream != nil {
			downstream[i] = &anyseq.Batch{Packed: down, Present: u[i].Present}
		}
		upState = downState
	}

	if upState != nil {
		if m.InitPres.NumPresent() != upState.Present().NumPresent() {
			upState = upState.Expand(m.InitPres)
		}
		m.F(upState, g)
	}

	if downstream != nil {
		m.In.Propagate(downstream, g)
	}
}
