package anyconv

import (
	"math"
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anydifftest"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/serializer"
)

func TestConvOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := &Conv{
		FilterCount: 1,
		KernelTime:  2,
		KernelFreq:  2,
		StrideTime:  1,
		StrideFreq:  1,
		InputFreq:   2,
		InputDepth:  1,
	}
	layer.InitZero(c)
	layer.Filters.Vector.SetData(c.MakeNumericList([]float64{1, 2, 3, 4}))
	layer.Biases.Vector.SetData(c.MakeNumericList([]float64{0.5}))

	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList([]float64{
		1, 2,
		3, 4,
		5, 6,
	})))
	shape := Shape{Time: 3, Freq: 2, Depth: 1}
	if out := layer.OutShape(shape); out != (Shape{Time: 2, Freq: 1, Depth: 1}) {
		t.Fatalf("unexpected output shape: %v", out)
	}
	actual := layer.Apply(in, 1, shape).Output().Data().([]float64)
	expected := []float64{30.5, 50.5}
	if len(actual) != len(expected) {
		t.Fatalf("expected %v but got %v", expected, actual)
	}
	for i, x := range expected {
		if math.Abs(actual[i]-x) > 1e-8 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestConvTooShort(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := &Conv{FilterCount: 2, KernelTime: 5, KernelFreq: 1, StrideTime: 1,
		StrideFreq: 1, InputFreq: 3, InputDepth: 1}
	layer.InitRand(c)
	in := anydiff.NewConst(c.MakeVector(2 * 4 * 3))
	out := layer.Apply(in, 2, Shape{Time: 4, Freq: 3, Depth: 1})
	if out.Output().Len() != 0 {
		t.Errorf("expected empty output but got length %d", out.Output().Len())
	}
}

func TestConvProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := &Conv{
		FilterCount: 3,
		KernelTime:  3,
		KernelFreq:  2,
		StrideTime:  2,
		StrideFreq:  1,
		InputFreq:   4,
		InputDepth:  2,
	}
	layer.InitRand(c)
	shape := Shape{Time: 7, Freq: 4, Depth: 2}
	in := anydiff.NewVar(c.MakeVector(2 * shape.Size()))
	anyvec.Rand(in.Vector, anyvec.Normal, nil)

	for _, parallel := range []bool{false, true} {
		layer.Parallel = parallel
		checker := &anydifftest.ResChecker{
			F: func() anydiff.Res {
				return layer.Apply(in, 2, shape)
			},
			V: append([]*anydiff.Var{in}, layer.Parameters()...),
		}
		checker.FullCheck(t)
	}
}

func TestConvVariableTime(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := &Conv{FilterCount: 2, KernelTime: 3, KernelFreq: 1, StrideTime: 1,
		StrideFreq: 1, InputFreq: 2, InputDepth: 1}
	layer.InitRand(c)
	for _, time := range []int{3, 10, 5} {
		shape := Shape{Time: time, Freq: 2, Depth: 1}
		in := anydiff.NewConst(c.MakeVector(shape.Size()))
		out := layer.Apply(in, 1, shape)
		if out.Output().Len() != layer.OutShape(shape).Size() {
			t.Errorf("time %d: bad output length %d", time, out.Output().Len())
		}
	}
}

func TestConvSerialize(t *testing.T) {
	layer := &Conv{FilterCount: 3, KernelTime: 5, KernelFreq: 2, StrideTime: 2,
		StrideFreq: 1, InputFreq: 8, InputDepth: 2}
	layer.InitRand(anyvec64.DefaultCreator{})
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *Conv
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(layer.Parameters(), newLayer.Parameters()) ||
		newLayer.KernelTime != 5 || newLayer.StrideTime != 2 || newLayer.InputFreq != 8 {
		t.Error("layers differ")
	}
}
