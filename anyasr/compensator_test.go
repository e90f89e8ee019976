package anyasr

import (
	"testing"

	"github.com/unixpickle/anyspeech/anyconv"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestCompensatorLengths(t *testing.T) {
	c := &Compensator{Kernels: []int{5, 5, 5}}
	if p := c.Padding(); p != 6 {
		t.Errorf("expected padding 6 but got %d", p)
	}
	if n := c.OutputLength(80); n != 68 {
		t.Errorf("expected 68 but got %d", n)
	}
	if n := c.OutputLength(80 + 2*c.Padding()); n != 80 {
		t.Errorf("padded input should keep its length, got %d", n)
	}
	if n := c.OutputLength(12); n != 0 {
		t.Errorf("expected 0 but got %d", n)
	}
}

func TestCompensatorMonotonic(t *testing.T) {
	c := &Compensator{Kernels: []int{3, 5, 7}, Strides: []int{1, 2, 3}}
	last := 0
	for n := 0; n < 200; n++ {
		out := c.OutputLength(n)
		if out < last {
			t.Fatalf("OutputLength(%d) = %d < OutputLength(%d) = %d", n, out, n-1, last)
		}
		last = out
	}
}

func TestCompensatorMinInputLength(t *testing.T) {
	c := &Compensator{Kernels: []int{3, 5, 7}, Strides: []int{1, 2, 3}}
	for out := 0; out < 20; out++ {
		n := c.MinInputLength(out)
		if c.OutputLength(n) < out {
			t.Errorf("output %d: OutputLength(%d) is too short", out, n)
		}
		if n > 0 && c.OutputLength(n-1) >= out {
			t.Errorf("output %d: %d is not minimal", out, n)
		}
	}
}

func TestCompensatorMatchesFrontEnd(t *testing.T) {
	code := `
Conv(w=3, h=5, n=2)
ReLU
Conv(w=3, h=3, n=2, sy=2)
`
	fe, err := anyconv.FromMarkup(anyvec64.DefaultCreator{}, 8, code)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCompensator(&ConvRNN{FrontEnd: fe})
	if c.Padding() != 3 {
		t.Errorf("expected padding 3 but got %d", c.Padding())
	}
	for n := 0; n < 50; n++ {
		if a, e := c.OutputLength(n), fe.OutputLength(n); a != e {
			t.Errorf("length %d: expected %d but got %d", n, e, a)
		}
	}
}
