package anyasr

// MaxDecode collapses a path of per-frame classes into a
// label sequence.
//
// Blanks are dropped, and consecutive repeats of a class
// produce a single label.
// A blank between two equal classes separates them, so
// both are kept.
func MaxDecode(path []int, blank int) []int {
	res := []int{}
	if len(path) == 0 {
		return res
	}
	prev := path[0]
	if prev != blank {
		res = append(res, prev)
	}
	for _, x := range path[1:] {
		if x != blank && x != prev {
			res = append(res, x)
		}
		prev = x
	}
	return res
}
