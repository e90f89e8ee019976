package anyctc

import (
	"errors"
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestCostOutputs(t *testing.T) {
	probSeqs := [][][]float64{
		{},
		{{0.3, 0.2, 0.5}, {0.1, 0.5, 0.4}},
		{},
	}
	labels := [][]int{{}, {0, 1}, {1}}
	expectedProbs := []float64{1, 0.3 * 0.5, 0}
	for _, c := range []anyvec.Creator{anyvec32.CurrentCreator(), anyvec64.DefaultCreator{}} {
		inSeqs := logProbSeqs(c, probSeqs)
		costs := floats64(Cost(inSeqs, labels, 2).Output())
		for i, x := range expectedProbs {
			a := math.Exp(-costs[i])
			if x == 0 {
				if !math.IsInf(costs[i], 1) {
					t.Errorf("output %d: expected +Inf cost but got %f", i, costs[i])
				}
			} else if math.Abs(x-a)/x > testPrecision {
				t.Errorf("output %d: expected %f but got %f", i, x, a)
			}
		}
	}
}

func TestCostGrad(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	var vars []*anydiff.Var
	seqs := anyseq.ResSeq(c, []*anyseq.ResBatch{
		{Packed: randomVar(c, 9, &vars), Present: []bool{true, true, true}},
		{Packed: randomVar(c, 6, &vars), Present: []bool{true, false, true}},
		{Packed: randomVar(c, 3, &vars), Present: []bool{false, false, true}},
		{Packed: randomVar(c, 3, &vars), Present: []bool{false, false, true}},
	})
	labels := [][]int{{1, 0}, {0}, {0, 1, 1}}
	ch := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return Cost(seqs, labels, 2)
		},
		V: vars,
	}
	ch.FullCheck(t)
}

func TestLossMatchesCost(t *testing.T) {
	c := anyvec64.DefaultCreator{}

	// Two examples, three timesteps, three classes.
	// The second example only uses two timesteps.
	logProbs := c.MakeVector(3 * 2 * 3)
	anyvec.Rand(logProbs, anyvec.Normal, nil)
	anyvec.LogSoftmax(logProbs, 3)
	data := logProbs.Data().([]float64)

	res, err := Loss(anydiff.NewConst(logProbs), 3, 2, []int{0, 1, 1}, []int{3, 2},
		[]int{2, 1}, 2, ReduceNone)
	if err != nil {
		t.Fatal(err)
	}
	actual := floats64(res.Output())

	lists := [][]anyvec.Vector{
		{c.MakeVectorData(data[0:3]), c.MakeVectorData(data[6:9]),
			c.MakeVectorData(data[12:15])},
		{c.MakeVectorData(data[3:6]), c.MakeVectorData(data[9:12])},
	}
	expected := floats64(Cost(anyseq.ConstSeqList(c, lists), [][]int{{0, 1}, {1}}, 2).Output())
	for i, x := range expected {
		if math.Abs(x-actual[i]) > 1e-8 {
			t.Errorf("example %d: expected %f but got %f", i, x, actual[i])
		}
	}
}

func TestLossGrad(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	var vars []*anydiff.Var
	logProbs := randomVar(c, 4*3*3, &vars)
	for _, r := range []Reduction{ReduceNone, ReduceSum, ReduceMean} {
		ch := anydifftest.ResChecker{
			F: func() anydiff.Res {
				res, err := Loss(logProbs, 4, 3, []int{0, 1, 1, 0, 1}, []int{4, 2, 3},
					[]int{2, 1, 2}, 2, r)
				if err != nil {
					t.Fatal(err)
				}
				return res
			},
			V: vars,
		}
		ch.FullCheck(t)
	}
}

func TestLossReductions(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	logProbs := c.MakeVector(2 * 2 * 3)
	anyvec.Rand(logProbs, anyvec.Normal, nil)
	anyvec.LogSoftmax(logProbs, 3)
	in := anydiff.NewConst(logProbs)
	labels, inLens, labelLens := []int{0, 1, 0}, []int{2, 2}, []int{2, 1}

	loss := func(r Reduction) []float64 {
		res, err := Loss(in, 2, 2, labels, inLens, labelLens, 2, r)
		if err != nil {
			t.Fatal(err)
		}
		return floats64(res.Output())
	}
	none := loss(ReduceNone)
	if len(none) != 2 {
		t.Fatalf("expected 2 costs but got %d", len(none))
	}
	if sum := loss(ReduceSum); math.Abs(sum[0]-(none[0]+none[1])) > 1e-8 {
		t.Errorf("bad sum: %v", sum)
	}
	expectedMean := (none[0]/2 + none[1]/1) / 2
	if mean := loss(ReduceMean); math.Abs(mean[0]-expectedMean) > 1e-8 {
		t.Errorf("expected mean %f but got %f", expectedMean, mean[0])
	}
}

func TestLossInfeasible(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	var vars []*anydiff.Var
	logProbs := randomVar(c, 2*2*3, &vars)
	res, err := Loss(logProbs, 2, 2, []int{0, 1, 0, 0, 1}, []int{2, 2}, []int{3, 2}, 2,
		ReduceNone)
	if err != nil {
		t.Fatal(err)
	}
	costs := floats64(res.Output())
	if !math.IsInf(costs[0], 1) {
		t.Errorf("expected +Inf for infeasible example but got %f", costs[0])
	}
	if math.IsInf(costs[1], 0) || math.IsNaN(costs[1]) {
		t.Errorf("expected finite cost but got %f", costs[1])
	}

	grad := anydiff.NewGrad(vars...)
	res.Propagate(c.MakeVectorData([]float64{1, 1}), grad)
	for _, x := range grad[vars[0]].Data().([]float64) {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("non-finite gradient: %v", grad[vars[0]].Data())
		}
	}
}

func TestLossErrors(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	in := anydiff.NewConst(c.MakeVector(2 * 2 * 3))

	_, err := Loss(in, 2, 0, nil, nil, nil, 2, ReduceNone)
	if !errors.Is(err, anyspeech.ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch but got %v", err)
	}

	var shapeErr *anyspeech.ShapeError
	_, err = Loss(in, 2, 2, []int{0}, []int{2, 2}, []int{1, 1}, 2, ReduceNone)
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeError but got %v", err)
	}
	_, err = Loss(in, 2, 2, []int{0, 1}, []int{3, 2}, []int{1, 1}, 2, ReduceNone)
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeError but got %v", err)
	}
	_, err = Loss(in, 5, 2, []int{0, 1}, []int{2, 2}, []int{1, 1}, 2, ReduceNone)
	if !errors.As(err, &shapeErr) {
		t.Errorf("expected ShapeError but got %v", err)
	}

	var labelErr *anyspeech.LabelError
	_, err = Loss(in, 2, 2, []int{0, 1, 2}, []int{2, 2}, []int{1, 2}, 2, ReduceNone)
	if !errors.As(err, &labelErr) {
		t.Fatalf("expected LabelError but got %v", err)
	}
	if labelErr.Example != 1 || labelErr.Index != 1 || labelErr.Class != 2 {
		t.Errorf("unexpected error details: %+v", labelErr)
	}
}

func logProbSeqs(c anyvec.Creator, values [][][]float64) anyseq.Seq {
	vecLists := make([][]anyvec.Vector, len(values))
	for i, seq := range values {
		vecLists[i] = make([]anyvec.Vector, len(seq))
		for j, x := range seq {
			vecLists[i][j] = c.MakeVectorData(c.MakeNumericList(x))
			anyvec.Log(vecLists[i][j])
		}
	}
	return anyseq.ConstSeqList(c, vecLists)
}

func randomVar(c anyvec.Creator, n int, vs *[]*anydiff.Var) *anydiff.Var {
	v := c.MakeVector(n)
	anyvec.Rand(v, anyvec.Normal, nil)
	anyvec.LogSoftmax(v, 3)
	res := anydiff.NewVar(v)
	*vs = append(*vs, res)
	return res
}
