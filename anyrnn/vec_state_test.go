package anyrnn

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestVecStateReduce(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	s := &VecState{
		Vector: c.MakeVectorData([]float64{
			1, 2, 3, 4, 5, 6, 7, 8, 9, 10,
		}),
		PresentMap: []bool{true, false, true, true, false, false, true, true},
	}
	reduced := s.Reduce([]bool{true, false, false, true, false, false, false, true})
	expected := []float64{1, 2, 5, 6, 9, 10}
	actual := reduced.(*VecState).Vector.Data().([]float64)
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}

	reduced = s.Reduce([]bool{false, false, false, false, false, false, false, false})
	if n := reduced.(*VecState).Vector.Len(); n != 0 {
		t.Errorf("expected empty state but got %d values", n)
	}
}

func TestVecStateExpand(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	s := &VecState{
		Vector:     c.MakeVectorData([]float64{1, 2, 3, 4, 5, 6}),
		PresentMap: []bool{true, false, true, false, false, false, false, true},
	}
	expanded := s.Expand([]bool{true, false, true, false, true, false, true, true})
	expected := []float64{1, 2, 3, 4, 0, 0, 0, 0, 5, 6}
	actual := expanded.(*VecState).Vector.Data().([]float64)
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}

	expanded = s.Expand([]bool{true, true, true, true, true, true, true, true})
	expected = []float64{1, 2, 0, 0, 3, 4, 0, 0, 0, 0, 0, 0, 0, 0, 5, 6}
	actual = expanded.(*VecState).Vector.Data().([]float64)
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}

func TestVecStatePropagateStart(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	start := anydiff.NewVar(c.MakeVectorData([]float64{1, -1}))
	s := NewVecState(start.Vector, 3)
	if actual := s.Vector.Data().([]float64); !reflect.DeepEqual(actual,
		[]float64{1, -1, 1, -1, 1, -1}) {
		t.Errorf("unexpected start state: %v", actual)
	}

	grad := anydiff.NewGrad(start)
	upstream := &VecState{
		Vector:     c.MakeVectorData([]float64{1, 2, 3, 4, 5, 6}),
		PresentMap: allPresent(3),
	}
	upstream.PropagateStart(start, grad)
	expected := []float64{9, 12}
	if actual := grad[start].Data().([]float64); !reflect.DeepEqual(actual, expected) {
		t.Errorf("expected %v but got %v", expected, actual)
	}
}
