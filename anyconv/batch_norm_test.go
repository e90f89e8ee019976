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

func TestBatchNormSerialize(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := NewBatchNorm(c, 4)
	anyvec.Rand(layer.Scalers.Vector, anyvec.Normal, nil)
	anyvec.Rand(layer.Biases.Vector, anyvec.Normal, nil)
	layer.Stabilizer = 0.01
	data, err := serializer.SerializeAny(layer)
	if err != nil {
		t.Fatal(err)
	}
	var newLayer *BatchNorm
	if err := serializer.DeserializeAny(data, &newLayer); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(layer, newLayer) {
		t.Error("layers differ")
	}
}

func TestBatchNormOutput(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := &BatchNorm{
		Channels: 2,
		Scalers:  anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{2, -3}))),
		Biases:   anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{-1.5, 2}))),
	}
	vec := c.MakeVectorData(c.MakeNumericList([]float64{
		-0.636299517987754, 1.381820934572628, 1.117062796520384,
		-1.032042307499387, -0.603144099627179, 0.937477768422949,
	}))
	shape := Shape{Time: 3, Freq: 1, Depth: 2}
	actual := layer.Apply(anydiff.NewConst(vec), 1, shape).Output().Data().([]float64)
	expected := []float64{
		-2.953427612694010, -0.723517206628873, 1.325934113323319,
		6.176822169129221, -2.872506500629310, 0.546695037499651,
	}
	for i, x := range expected {
		a := actual[i]
		if math.IsNaN(a) || math.Abs(a-x) > 1e-3 {
			t.Fatalf("expected %v but got %v", expected, actual)
		}
	}
}

func TestBatchNormProp(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	layer := NewBatchNorm(c, 2)
	input := c.MakeVector(24)
	anyvec.Rand(input, anyvec.Normal, nil)
	inVar := anydiff.NewVar(input)
	shape := Shape{Time: 3, Freq: 2, Depth: 2}

	checker := anydifftest.ResChecker{
		F: func() anydiff.Res {
			return layer.Apply(inVar, 2, shape)
		},
		V: append([]*anydiff.Var{inVar}, layer.Parameters()...),
	}
	checker.FullCheck(t)
}
