package anyconv

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestTimePaddingOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	p := NewTimePadding(1)
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList([]float64{
		1, 2,
		3, 4,

		5, 6,
		7, 8,
	})))
	shape := Shape{Time: 2, Freq: 2, Depth: 1}
	if out := p.OutShape(shape); out.Time != 4 {
		t.Fatalf("expected time 4 but got %d", out.Time)
	}
	actual := p.Apply(in, 2, shape).Output().Data().([]float64)
	expected := []float64{
		0, 0,
		1, 2,
		3, 4,
		0, 0,

		0, 0,
		5, 6,
		7, 8,
		0, 0,
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestTimePaddingProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	p := &TimePadding{Before: 2, After: 1}
	shape := Shape{Time: 3, Freq: 2, Depth: 2}
	in := anydiff.NewVar(c.MakeVector(3 * shape.Size()))
	anyvec.Rand(in.Vector, anyvec.Normal, nil)
	checker := &anydifftest.ResChecker{
		F: func() anydiff.Res {
			return p.Apply(in, 3, shape)
		},
		V: []*anydiff.Var{in},
	}
	checker.FullCheck(t)
}
