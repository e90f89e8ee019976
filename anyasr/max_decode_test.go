package anyasr

import (
	"reflect"
	"testing"
)

func TestMaxDecode(t *testing.T) {
	const a, b, blank = 0, 1, 2
	cases := []struct {
		path     []int
		expected []int
	}{
		{[]int{a, a, b, blank, b, a}, []int{a, b, b, a}},
		{[]int{blank, blank, blank}, []int{}},
		{[]int{a}, []int{a}},
		{[]int{a, a, a}, []int{a}},
		{[]int{}, []int{}},
		{[]int{blank, a, blank, a, a, blank}, []int{a, a}},
	}
	for i, c := range cases {
		actual := MaxDecode(c.path, blank)
		if !reflect.DeepEqual(actual, c.expected) {
			t.Errorf("case %d: expected %v but got %v", i, c.expected, actual)
		}
		if len(actual) > len(c.path) {
			t.Errorf("case %d: output longer than path", i)
		}
	}
}
