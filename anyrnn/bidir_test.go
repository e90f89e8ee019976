package anyrnn

import (
	"testing"

	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestBidirOutputSize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, _ := randomTestSequence(c, 3)
	b := &Bidir{
		Forward:  NewLSTM(c, 3, 2),
		Backward: NewVanilla(c, 3, 4, anyspeech.Tanh),
		Mixer:    anyspeech.ConcatMixer{},
	}
	out := b.Apply(inSeq).Output()
	for i, batch := range out {
		n := 0
		for _, p := range batch.Present {
			if p {
				n++
			}
		}
		if batch.Packed.Len() != n*6 {
			t.Errorf("step %d: expected %d values but got %d", i, n*6, batch.Packed.Len())
		}
	}
}

func TestBidirProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	b := &Bidir{
		Forward:  NewLSTM(c, 3, 2),
		Backward: NewLSTM(c, 3, 2),
		Mixer:    anyspeech.ConcatMixer{},
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return b.Apply(inSeq)
		},
		V: append(inVars, b.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestBidirAddMixerProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	inSeq, inVars := randomTestSequence(c, 3)
	b := &Bidir{
		Forward:  NewLSTM(c, 3, 2),
		Backward: NewVanilla(c, 3, 2, anyspeech.Tanh),
		Mixer: &anyspeech.AddMixer{
			In1: anyspeech.NewProjection(c, 2, 2),
			In2: anyspeech.NewProjection(c, 2, 2),
			Out: anyspeech.Tanh,
		},
	}
	if n := len(b.Parameters()); n != 17+4+4 {
		t.Fatalf("expected 25 parameters but got %d", n)
	}
	checker := &anydifftest.SeqChecker{
		F: func() anyseq.Seq {
			return b.Apply(inSeq)
		},
		V: append(inVars, b.Parameters()...),
	}
	checker.FullCheck(t)
}
