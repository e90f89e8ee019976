// Package anyrnn implements the recurrent encoders used
// after a speech model's convolutional front end.
//
// Blocks are stepped one timestep at a time over an
// anyseq.Seq.
// The state a Block produces after the last timestep can
// be handed back in on the next call, which lets callers
// stream long recordings through an encoder in chunks.
package anyrnn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A PresentMap indicates which sequences of a batch are
// present (true) at a given timestep.
type PresentMap []bool

// NumPresent counts the present sequences.
func (p PresentMap) NumPresent() int {
	var i int
	for _, x := range p {
		if x {
			i++
		}
	}
	return i
}

// A State stores a batch of internal Block states.
//
// Only present sequences have a state.
// When a sequence ends before the others, its state is
// dropped with Reduce.
type State interface {
	// Present indicates which sequences have states.
	Present() PresentMap

	// Reduce creates a copy of the State with a subset of
	// its sequences.
	// Every true value of the PresentMap must be true in
	// Present().
	Reduce(PresentMap) State
}

// A StateGrad is an upstream gradient for a State.
type StateGrad interface {
	// Present indicates which sequences have gradients.
	Present() PresentMap

	// Expand inserts zero gradients to cover a superset
	// of Present().
	// It is the inverse of State.Reduce.
	Expand(PresentMap) StateGrad
}

// A Block is a differentiable recurrent unit.
type Block interface {
	// Start produces the start state for n sequences.
	Start(n int) State

	// PropagateStart back-propagates through a state that
	// came from Start.
	PropagateStart(s StateGrad, g anydiff.Grad)

	// Step applies the block for a single timestep.
	Step(s State, in anyvec.Vector) Res
}

// A Res is the result of a Block step.
type Res interface {
	// State returns the output state batch.
	State() State

	// Output returns the packed block outputs.
	Output() anyvec.Vector

	// Vars returns the variables upon which the output
	// depends, including variables from previous states.
	Vars() anydiff.VarSet

	// Propagate back-propagates through the timestep.
	//
	// The upstream state s may be nil, meaning a zero
	// gradient.
	// Both upstream arguments may be modified.
	//
	// It returns the gradient for the input and for the
	// previous state.
	Propagate(u anyvec.Vector, s StateGrad, g anydiff.Grad) (anyvec.Vector, StateGrad)
}

// allPresent creates a PresentMap with n present
// sequences.
func allPresent(n int) PresentMap {
	res := make(PresentMap, n)
	for i := range res {
		res[i] = true
	}
	return res
}
