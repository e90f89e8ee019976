package anyctc

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

const (
	testSymbolCount = 5
	testPrecision   = 1e-3
)

func TestLogLikelihoodOutputs(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for i := 0; i < 11; i++ {
		labelLen := 5 + rand.Intn(5)
		if i == 10 {
			labelLen = 0
		}
		seqLen := labelLen + rand.Intn(5)
		label := make([]int, labelLen)
		for i := range label {
			label[i] = rand.Intn(testSymbolCount)
		}
		seq, res := createTestSequence(c, seqLen, testSymbolCount)
		expected := exactLikelihood(seq, label, -1)
		actual := math.Exp(floats64(logLikelihood(c, res, label, testSymbolCount).Output())[0])
		if math.Abs(actual-expected)/math.Abs(expected) > testPrecision {
			t.Errorf("LogLikelihood gave log(%e) but expected log(%e)",
				actual, expected)
		}
	}
}

func TestLogLikelihoodGrad(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	label := make([]int, 5)
	for i := range label {
		label[i] = rand.Intn(testSymbolCount)
	}
	_, resSeq := createTestSequence(c, len(label)+5, testSymbolCount)
	var vars []*anydiff.Var
	for _, x := range resSeq {
		for v := range x.Vars() {
			vars = append(vars, v)
		}
	}
	ch := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return logLikelihood(c, resSeq, label, testSymbolCount)
		},
		V:     vars,
	}
	ch.FullCheck(t)
}

func TestLogLikelihoodInfeasible(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	for _, label := range [][]int{{0, 1, 2}, {1, 1}} {
		_, res := createTestSequence(c, 2, testSymbolCount)
		actual := floats64(logLikelihood(c, res, label, testSymbolCount).Output())[0]
		if !math.IsInf(actual, -1) {
			t.Errorf("label %v: expected -Inf but got %f", label, actual)
		}
	}
}

func TestLogLikelihoodBlankIndex(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	seq, res := createTestSequence(c, 4, testSymbolCount)
	label := []int{2, 2}

	// Move the blank from the end to the front and shift
	// the labels accordingly.
	moved := make([]anydiff.Res, len(res))
	for i, x := range seq {
		row := append([]float64{math.Log(x[len(x)-1])}, make([]float64, len(x)-1)...)
		for j := 0; j < len(x)-1; j++ {
			row[j+1] = math.Log(x[j])
		}
		moved[i] = anydiff.NewConst(c.MakeVectorData(row))
	}
	expected := floats64(logLikelihood(c, res, label, testSymbolCount).Output())[0]
	actual := floats64(logLikelihood(c, moved, []int{3, 3}, 0).Output())[0]
	if math.Abs(actual-expected) > 1e-8 {
		t.Errorf("expected %f but got %f", expected, actual)
	}
}

// createTestSequence creates a test sequence.
//
// The sequence is produced in two forms.
// First, a native sequence of []float64 containing actual
// probabilities is produced.
// Second, a sequence of anydiff.Res is produced with the
// logs of the probabilities.
func createTestSequence(c anyvec.Creator, seqLen, symCount int) ([][]float64, []anydiff.Res) {
	res := make([]anydiff.Res, seqLen)
	seq := make([][]float64, seqLen)
	for i := range seq {
		seq[i] = make([]float64, symCount+1)
		var probSum float64
		for j := range seq[i] {
			seq[i][j] = math.Abs(rand.NormFloat64())
			probSum += seq[i][j]
		}
		for j := range seq[i] {
			seq[i][j] /= probSum
		}
		logVec := make([]float64, len(seq[i]))
		for j := range logVec {
			logVec[j] = math.Log(seq[i][j])
		}
		res[i] = anydiff.NewVar(c.MakeVectorData(c.MakeNumericList(logVec)))
	}
	return seq, res
}

// exactLikelihood computes the log likelihood of a label
// naively from a sequence of raw, unlogged probabilities.
func exactLikelihood(seq [][]float64, label []int, lastSymbol int) float64 {
	if len(seq) == 0 {
		if len(label) == 0 {
			return 1
		}
		return 0
	}

	next := seq[0]
	blank := len(next) - 1

	var res float64
	res += next[blank] * exactLikelihood(seq[1:], label, -1)
	if lastSymbol >= 0 {
		res += next[lastSymbol] * exactLikelihood(seq[1:], label, lastSymbol)
	}
	if len(label) > 0 && label[0] != lastSymbol {
		res += next[label[0]] * exactLikelihood(seq[1:], label[1:], label[0])
	}
	return res
}
