package anyrnn

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

const lstmRememberBias = 1

func init() {
	var g LSTMGate
	serializer.RegisterTypedDeserializer(g.SerializerType(), DeserializeLSTMGate)
	var l LSTM
	serializer.RegisterTypedDeserializer(l.SerializerType(), DeserializeLSTM)
}

// LSTM is a long short-term memory block with peephole
// connections on the input, remember, and output gates.
//
// Its state holds both the memory cell and the previous
// output of every sequence.
type LSTM struct {
	InValue   *LSTMGate
	In        *LSTMGate
	Remember  *LSTMGate
	Output    *LSTMGate
	InitState *anydiff.Var
}

// DeserializeLSTM deserializes an LSTM.
func DeserializeLSTM(d []byte) (*LSTM, error) {
	var inVal, in, rem, out *LSTMGate
	var initState *anyvecsave.S
	if err := serializer.DeserializeAny(d, &inVal, &in, &rem, &out, &initState); err != nil {
		return nil, essentials.AddCtx("deserialize LSTM", err)
	}
	for _, g := range []*LSTMGate{inVal, in, rem, out} {
		if g.stateSize() != initState.Vector.Len() {
			return nil, errors.New("deserialize LSTM: gate size mismatch")
		}
	}
	return &LSTM{
		InValue:   inVal,
		In:        in,
		Remember:  rem,
		Output:    out,
		InitState: anydiff.NewVar(initState.Vector),
	}, nil
}

// NewLSTM creates a randomized LSTM whose remember gates
// are biased towards remembering.
func NewLSTM(c anyvec.Creator, in, state int) *LSTM {
	res := &LSTM{
		InValue:   NewLSTMGate(c, in, state, anyspeech.Tanh),
		In:        NewLSTMGate(c, in, state, anyspeech.Sigmoid),
		Remember:  NewLSTMGate(c, in, state, anyspeech.Sigmoid),
		Output:    NewLSTMGate(c, in, state, anyspeech.Sigmoid),
		InitState: anydiff.NewVar(c.MakeVector(state)),
	}
	res.Remember.Biases.Vector.AddScalar(c.MakeNumeric(lstmRememberBias))
	return res
}

// NewLSTMZero creates an all-zero LSTM.
func NewLSTMZero(c anyvec.Creator, in, state int) *LSTM {
	return &LSTM{
		InValue:   NewLSTMGateZero(c, in, state, anyspeech.Tanh),
		In:        NewLSTMGateZero(c, in, state, anyspeech.Sigmoid),
		Remember:  NewLSTMGateZero(c, in, state, anyspeech.Sigmoid),
		Output:    NewLSTMGateZero(c, in, state, anyspeech.Sigmoid),
		InitState: anydiff.NewVar(c.MakeVector(state)),
	}
}

// Start creates the start state: the learned initial
// cell and a zero output.
func (l *LSTM) Start(n int) State {
	c := l.InitState.Vector.Creator()
	return &lstmState{
		Cell: NewVecState(l.InitState.Vector, n),
		Out: &VecState{
			Vector:     c.MakeVector(n * l.InitState.Vector.Len()),
			PresentMap: allPresent(n),
		},
	}
}

// PropagateStart propagates through the start state.
func (l *LSTM) PropagateStart(s StateGrad, g anydiff.Grad) {
	s.(*lstmState).Cell.PropagateStart(l.InitState, g)
}

// Step performs one timestep.
func (l *LSTM) Step(s State, in anyvec.Vector) Res {
	st := s.(*lstmState)
	n := st.Present().NumPresent()
	res := &lstmRes{
		InPool:   anydiff.NewVar(in),
		CellPool: anydiff.NewVar(st.Cell.Vector),
		OutPool:  anydiff.NewVar(st.Out.Vector),
	}

	inVal := l.InValue.apply(res.InPool, res.OutPool, nil, n)
	inGate := l.In.apply(res.InPool, res.OutPool, res.CellPool, n)
	remGate := l.Remember.apply(res.InPool, res.OutPool, res.CellPool, n)
	res.NewCell = anydiff.Add(
		anydiff.Mul(remGate, res.CellPool),
		anydiff.Mul(inGate, inVal),
	)

	res.NewCellPool = anydiff.NewVar(res.NewCell.Output())
	outGate := l.Output.apply(res.InPool, res.OutPool, res.NewCellPool, n)
	res.Out = anydiff.Mul(outGate, anydiff.Tanh(res.NewCellPool))

	res.OutState = &lstmState{
		Cell: &VecState{Vector: res.NewCell.Output(), PresentMap: st.Present()},
		Out:  &VecState{Vector: res.Out.Output(), PresentMap: st.Present()},
	}
	res.V = anydiff.MergeVarSets(res.Out.Vars(), res.NewCell.Vars())
	for _, p := range []*anydiff.Var{res.InPool, res.CellPool, res.OutPool, res.NewCellPool} {
		res.V.Del(p)
	}
	res.V.Add(l.InitState)
	return res
}

// Parameters returns the initial cell followed by the
// parameters of every gate.
func (l *LSTM) Parameters() []*anydiff.Var {
	res := []*anydiff.Var{l.InitState}
	for _, g := range []*LSTMGate{l.InValue, l.In, l.Remember, l.Output} {
		res = append(res, g.Parameters()...)
	}
	return res
}

// SerializerType returns the unique ID used to serialize
// an LSTM with the serializer package.
func (l *LSTM) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyrnn.LSTM"
}

// Serialize serializes the LSTM.
func (l *LSTM) Serialize() ([]byte, error) {
	return serializer.SerializeAny(l.InValue, l.In, l.Remember, l.Output,
		&anyvecsave.S{Vector: l.InitState.Vector})
}

// An LSTMGate computes a gate value from the input, the
// previous output, and (through the peephole) a cell.
type LSTMGate struct {
	StateWeights *anydiff.Var
	InputWeights *anydiff.Var
	Peephole     *anydiff.Var
	Biases       *anydiff.Var
	Activation   anyspeech.Layer
}

// DeserializeLSTMGate deserializes an LSTMGate.
func DeserializeLSTMGate(d []byte) (*LSTMGate, error) {
	var sw, iw, p, b *anyvecsave.S
	var a anyspeech.Activation
	if err := serializer.DeserializeAny(d, &sw, &iw, &p, &b, &a); err != nil {
		return nil, essentials.AddCtx("deserialize LSTMGate", err)
	}
	return &LSTMGate{
		StateWeights: anydiff.NewVar(sw.Vector),
		InputWeights: anydiff.NewVar(iw.Vector),
		Peephole:     anydiff.NewVar(p.Vector),
		Biases:       anydiff.NewVar(b.Vector),
		Activation:   a,
	}, nil
}

// NewLSTMGate creates a randomized LSTM gate.
func NewLSTMGate(c anyvec.Creator, in, state int, activation anyspeech.Activation) *LSTMGate {
	res := NewLSTMGateZero(c, in, state, activation)
	randomizeWeights(c, res.StateWeights.Vector, state)
	randomizeWeights(c, res.InputWeights.Vector, in)
	return res
}

// NewLSTMGateZero creates an all-zero LSTM gate.
func NewLSTMGateZero(c anyvec.Creator, in, state int, activation anyspeech.Activation) *LSTMGate {
	return &LSTMGate{
		StateWeights: anydiff.NewVar(c.MakeVector(state * state)),
		InputWeights: anydiff.NewVar(c.MakeVector(state * in)),
		Peephole:     anydiff.NewVar(c.MakeVector(state)),
		Biases:       anydiff.NewVar(c.MakeVector(state)),
		Activation:   activation,
	}
}

// Parameters returns the parameters of the gate.
func (l *LSTMGate) Parameters() []*anydiff.Var {
	return []*anydiff.Var{l.StateWeights, l.InputWeights, l.Peephole, l.Biases}
}

// SerializerType returns the unique ID used to serialize
// an LSTM gate with the serializer package.
func (l *LSTMGate) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyrnn.LSTMGate"
}

// Serialize serializes the gate.
func (l *LSTMGate) Serialize() ([]byte, error) {
	return serializer.SerializeAny(
		&anyvecsave.S{Vector: l.StateWeights.Vector},
		&anyvecsave.S{Vector: l.InputWeights.Vector},
		&anyvecsave.S{Vector: l.Peephole.Vector},
		&anyvecsave.S{Vector: l.Biases.Vector},
		l.Activation,
	)
}

func (l *LSTMGate) stateSize() int {
	return l.Biases.Vector.Len()
}

// apply computes the gate for n sequences.
// If cell is nil, the peephole is skipped.
func (l *LSTMGate) apply(in, prevOut, cell anydiff.Res, n int) anydiff.Res {
	size := l.stateSize()
	inCount := l.InputWeights.Vector.Len() / size
	sum := anydiff.Add(
		applyWeights(inCount, size, l.InputWeights, in),
		applyWeights(size, size, l.StateWeights, prevOut),
	)
	if cell != nil {
		sum = anydiff.Add(sum, anydiff.ScaleAddRepeated(cell, l.Peephole, l.Biases))
	} else {
		sum = anydiff.AddRepeated(sum, l.Biases)
	}
	return l.Activation.Apply(sum, n)
}

type lstmState struct {
	Cell *VecState
	Out  *VecState
}

func (l *lstmState) Present() PresentMap {
	return l.Cell.PresentMap
}

func (l *lstmState) Reduce(p PresentMap) State {
	return &lstmState{
		Cell: l.Cell.Reduce(p).(*VecState),
		Out:  l.Out.Reduce(p).(*VecState),
	}
}

func (l *lstmState) Expand(p PresentMap) StateGrad {
	return &lstmState{
		Cell: l.Cell.Expand(p).(*VecState),
		Out:  l.Out.Expand(p).(*VecState),
	}
}

type lstmRes struct {
	InPool      *anydiff.Var
	CellPool    *anydiff.Var
	OutPool     *anydiff.Var
	NewCellPool *anydiff.Var

	NewCell  anydiff.Res
	Out      anydiff.Res
	OutState *lstmState
	V        anydiff.VarSet
}

func (l *lstmRes) State() State {
	return l.OutState
}

func (l *lstmRes) Output() anyvec.Vector {
	return l.Out.Output()
}

func (l *lstmRes) Vars() anydiff.VarSet {
	return l.V
}

func (l *lstmRes) Propagate(u anyvec.Vector, s StateGrad,
	g anydiff.Grad) (anyvec.Vector, StateGrad) {
	c := u.Creator()
	down := c.MakeVector(l.InPool.Vector.Len())
	downCell := c.MakeVector(l.CellPool.Vector.Len())
	downOut := c.MakeVector(l.OutPool.Vector.Len())
	newCellGrad := c.MakeVector(l.NewCellPool.Vector.Len())

	g[l.InPool] = down
	g[l.CellPool] = downCell
	g[l.OutPool] = downOut
	g[l.NewCellPool] = newCellGrad

	if s != nil {
		st := s.(*lstmState)
		u.Add(st.Out.Vector)
		newCellGrad.Add(st.Cell.Vector)
	}
	l.Out.Propagate(u, g)
	delete(g, l.NewCellPool)
	l.NewCell.Propagate(newCellGrad, g)

	delete(g, l.InPool)
	delete(g, l.CellPool)
	delete(g, l.OutPool)

	pres := l.OutState.Present()
	return down, &lstmState{
		Cell: &VecState{Vector: downCell, PresentMap: pres},
		Out:  &VecState{Vector: downOut, PresentMap: pres},
	}
}
