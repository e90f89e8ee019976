package anyasr

import (
	"reflect"
	"testing"
)

func TestClassSpace(t *testing.T) {
	s := ClassSpace{OutputDim: 3}
	if s.Size() != 4 || s.BlankIndex() != 3 {
		t.Fatalf("bad size %d or blank %d", s.Size(), s.BlankIndex())
	}
	for pos := 0; pos < s.Size(); pos++ {
		if actual := s.Position(s.Class(pos)); actual != pos {
			t.Errorf("position %d maps back to %d", pos, actual)
		}
	}
	if s.Class(3) != Blank {
		t.Errorf("expected blank at position 3")
	}
	if s.Valid(3) || s.Valid(-2) || !s.Valid(Blank) || !s.Valid(0) {
		t.Errorf("unexpected validity")
	}
}

func TestClassSpaceLabels(t *testing.T) {
	s := ClassSpace{OutputDim: 3}
	if res := s.Labels([]int{3, 0, 3, 2, 2, 3}); !reflect.DeepEqual(res, []int{0, 2, 2}) {
		t.Errorf("unexpected labels: %v", res)
	}
	if res := s.Labels(nil); res == nil || len(res) != 0 {
		t.Errorf("expected empty labels but got %#v", res)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out of range position")
		}
	}()
	s.Labels([]int{4})
}
