package anyspeech

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestProjectionGradients(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	proj := NewProjection(c, 3, 4)
	in := anydiff.NewVar(c.MakeVector(3 * 5))
	anyvec.Rand(in.Vector, anyvec.Normal, nil)
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return proj.Apply(in, 5)
		},
		V: append([]*anydiff.Var{in}, proj.Parameters()...),
	}
	checker.FullCheck(t)
}

func TestProjectionBiasClass(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	proj := NewProjectionZero(c, 2, 3)
	proj.BiasClass(2, -1.5)
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList([]float64{1, 2, 3, 4})))
	actual := proj.Apply(in, 2).Output().Data().([]float64)
	expected := []float64{0, 0, -1.5, 0, 0, -1.5}
	for i, x := range expected {
		if math.Abs(actual[i]-x) > 1e-8 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestSoftmaxFrames(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList([]float64{
		1, 2, 3,
		-1, 0, 5,
	})))
	probs := Softmax.Apply(in, 2).Output().Data().([]float64)
	logProbs := LogSoftmax.Apply(in, 2).Output().Data().([]float64)
	for frame := 0; frame < 2; frame++ {
		var sum float64
		for i := 0; i < 3; i++ {
			p := probs[frame*3+i]
			sum += p
			if math.Abs(math.Log(p)-logProbs[frame*3+i]) > 1e-8 {
				t.Errorf("frame %d class %d: log mismatch", frame, i)
			}
		}
		if math.Abs(sum-1) > 1e-8 {
			t.Errorf("frame %d: sum should be 1 but got %f", frame, sum)
		}
	}
}

func TestActivationNamed(t *testing.T) {
	for _, name := range []string{"tanh", "sigmoid", "relu", "logsoftmax", "softmax"} {
		if _, err := ActivationNamed(name); err != nil {
			t.Error(err)
		}
	}
	if _, err := ActivationNamed("sin"); err == nil {
		t.Error("expected error for unknown activation")
	}
}

func TestSetDropout(t *testing.T) {
	d1 := &Dropout{KeepProb: 0.5}
	d2 := &Dropout{KeepProb: 0.5}
	net := Net{d1, Tanh, Net{d2}}
	SetDropout(net, true)
	if !d1.Enabled || !d2.Enabled {
		t.Error("dropout should be enabled")
	}
	SetDropout(net, false)
	if d1.Enabled || d2.Enabled {
		t.Error("dropout should be disabled")
	}
}
