package anyfeat

import (
	"fmt"
	"math"
	"reflect"
	"testing"
)

func TestHashSplit(t *testing.T) {
	var keys []string
	for i := 0; i < 5000; i++ {
		keys = append(keys, fmt.Sprintf("utt%d", i))
	}
	left, right := HashSplit(keys, 0.3)
	if len(left)+len(right) != len(keys) {
		t.Fatalf("lost keys: %d + %d", len(left), len(right))
	}
	if frac := float64(len(left)) / float64(len(keys)); math.Abs(frac-0.3) > 0.03 {
		t.Errorf("left fraction %f", frac)
	}

	left2, _ := HashSplit(append(keys, "extra1", "extra2"), 0.3)
	for i, key := range left {
		if left2[i] != key {
			t.Fatalf("key %s changed sides", key)
		}
	}

	if l, r := HashSplit(keys, 0); l != nil || !reflect.DeepEqual(r, keys) {
		t.Error("ratio 0 should put everything on the right")
	}
	if l, r := HashSplit(keys, 1); r != nil || !reflect.DeepEqual(l, keys) {
		t.Error("ratio 1 should put everything on the left")
	}
}
