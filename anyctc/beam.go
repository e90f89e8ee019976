package anyctc

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// BeamSearch is a Decoder which runs a CTC prefix beam
// search.
//
// The search keeps the Width most likely prefixes at
// every timestep, merging the alignments that collapse
// to the same prefix.
// It returns up to Width hypotheses with their
// (beam-approximated) log probabilities.
type BeamSearch struct {
	// Width is the beam size.
	// Values below 1 are treated as 1.
	Width int
}

// Decode runs the beam search.
func (b *BeamSearch) Decode(probs [][]float64, blank int) []Hypothesis {
	beam := prefixBeam(logProbs(probs), blank, b.Width)
	res := make([]Hypothesis, len(beam))
	for i, entry := range beam {
		res[i] = Hypothesis{Labels: entry.Labels, LogProb: entry.Prob.Total()}
	}
	return res
}

// Distribution is a Decoder which runs a prefix beam
// search and normalizes the scores of the surviving
// hypotheses so that their probabilities sum to 1.
type Distribution struct {
	// Width is the beam size.
	// Values below 1 are treated as 1.
	Width int
}

// Decode runs the beam search and normalizes the results.
func (d *Distribution) Decode(probs [][]float64, blank int) []Hypothesis {
	res := (&BeamSearch{Width: d.Width}).Decode(probs, blank)
	total := math.Inf(-1)
	for _, h := range res {
		total = addLogs(total, h.LogProb)
	}
	if math.IsInf(total, -1) {
		return res
	}
	for i := range res {
		res[i].LogProb -= total
	}
	return res
}

type beamEntry struct {
	Labels []int
	Prob   labelProb
}

func prefixBeam(seq [][]float64, blank, width int) []*beamEntry {
	if width < 1 {
		width = 1
	}
	beam := []*beamEntry{{Labels: []int{}, Prob: labelProb{NoBlank: math.Inf(-1)}}}
	for _, next := range seq {
		entries := map[string]*beamEntry{}
		var order []string
		lookup := func(labels []int) *beamEntry {
			key := labelKey(labels)
			if e, ok := entries[key]; ok {
				return e
			}
			e := &beamEntry{Labels: labels, Prob: *zeroLabelProb()}
			entries[key] = e
			order = append(order, key)
			return e
		}
		for _, entry := range beam {
			total := entry.Prob.Total()
			same := lookup(entry.Labels)
			same.Prob.Blank = addLogs(same.Prob.Blank, total+next[blank])
			if n := len(entry.Labels); n > 0 {
				last := entry.Labels[n-1]
				same.Prob.NoBlank = addLogs(same.Prob.NoBlank, entry.Prob.NoBlank+next[last])
			}
			for class, logProb := range next {
				if class == blank || math.IsInf(logProb, -1) {
					continue
				}
				extended := append(append([]int{}, entry.Labels...), class)
				e := lookup(extended)
				if n := len(entry.Labels); n > 0 && entry.Labels[n-1] == class {
					e.Prob.NoBlank = addLogs(e.Prob.NoBlank, entry.Prob.Blank+logProb)
				} else {
					e.Prob.NoBlank = addLogs(e.Prob.NoBlank, total+logProb)
				}
			}
		}
		beam = beam[:0]
		for _, key := range order {
			beam = append(beam, entries[key])
		}
		sortBeam(beam)
		if len(beam) > width {
			beam = beam[:width]
		}
	}
	sortBeam(beam)
	return beam
}

func sortBeam(beam []*beamEntry) {
	sort.SliceStable(beam, func(i, j int) bool {
		return beam[i].Prob.Total() > beam[j].Prob.Total()
	})
}

func labelKey(labels []int) string {
	var b strings.Builder
	for i, x := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}
