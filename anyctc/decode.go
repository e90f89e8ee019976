package anyctc

import (
	"math"
	"sort"

	"github.com/unixpickle/anydiff/anyseq"
)

// A Hypothesis is a candidate labeling produced by a
// Decoder.
type Hypothesis struct {
	Labels []int

	// LogProb is the natural log of the probability the
	// Decoder assigns to the labeling.
	LogProb float64
}

// A Decoder turns a sequence of per-timestep class
// probabilities into ranked labelings.
//
// Every row of probs holds the probabilities of every
// class (blank included) at one timestep.
// Results are sorted from most to least likely.
type Decoder interface {
	Decode(probs [][]float64, blank int) []Hypothesis
}

// PrefixSearch is a Decoder which greedily splits the
// sequence at timesteps dominated by blanks and runs an
// exhaustive prefix search on every segment.
//
// It produces exactly one Hypothesis.
type PrefixSearch struct {
	// Threshold specifies how greedy the search should be
	// with respect to blank symbols.
	// Typically, a value close to -1e-3 is sufficient.
	// As an example, a Threshold of -0.0001 means that any
	// blank with probability greater than e^-0.0001 is
	// treated as if it had a 100% probability.
	//
	// A Threshold of zero is not recommended unless the
	// input sequences are fairly short.
	Threshold float64
}

// Decode runs the prefix search.
func (p *PrefixSearch) Decode(probs [][]float64, blank int) []Hypothesis {
	logs := logProbs(probs)
	labels, logProb := prefixSearch(logs, blank, p.Threshold)
	return []Hypothesis{{Labels: labels, LogProb: logProb}}
}

// BestLabels produces the most likely labelings for a
// batch of log probability sequences.
//
// See PrefixSearch for the meaning of blankThresh.
func BestLabels(seqs anyseq.Seq, blank int, blankThresh float64) [][]int {
	var res [][]int
	for _, seq := range seqFloats(seqs) {
		labels, _ := prefixSearch(seq, blank, blankThresh)
		res = append(res, labels)
	}
	return res
}

func prefixSearch(seq [][]float64, blank int, blankThresh float64) ([]int, float64) {
	var subSeqs [][][]float64
	var subSeq [][]float64
	var logProb float64
	for _, x := range seq {
		if x[blank] > blankThresh {
			logProb += x[blank]
			if len(subSeq) > 0 {
				subSeqs = append(subSeqs, subSeq)
				subSeq = nil
			}
		} else {
			subSeq = append(subSeq, x)
		}
	}
	if len(subSeq) > 0 {
		subSeqs = append(subSeqs, subSeq)
	}

	res := []int{}
	for _, sub := range subSeqs {
		startProb := &labelProb{Blank: 0, NoBlank: math.Inf(-1)}
		subRes, prob := subPrefixSearch(sub, blank, nil, startProb)
		res = append(res, subRes...)
		logProb += prob.Total()
	}
	return res, logProb
}

func subPrefixSearch(seq [][]float64, blank int, prefix []int,
	prob *labelProb) ([]int, *labelProb) {
	if len(seq) == 0 {
		return prefix, prob
	}

	extensions := allExtensions(seq[0], blank, prefix, prob)
	sort.Stable(extensionSorter(extensions))

	bestProb := zeroLabelProb()
	bestSeq := []int{}
	for _, ext := range extensions {
		if ext.Prob.Total() > bestProb.Total() {
			extended := append(append([]int{}, prefix...), ext.Addition...)
			res, finalProb := subPrefixSearch(seq[1:], blank, extended, ext.Prob)
			if finalProb.Total() > bestProb.Total() {
				bestProb = finalProb
				bestSeq = res
			}
		}
	}

	return bestSeq, bestProb
}

// labelProb represents the probability of a labeling,
// split up into the probability of the labeling without a
// trailing blank and with a trailing blank.
type labelProb struct {
	Blank   float64
	NoBlank float64
}

func zeroLabelProb() *labelProb {
	return &labelProb{Blank: math.Inf(-1), NoBlank: math.Inf(-1)}
}

func (l *labelProb) Total() float64 {
	return addLogs(l.Blank, l.NoBlank)
}

// possibleExtension represents a possible way to extend a
// labeling (during prefix search).
type possibleExtension struct {
	// Tokens added to the labeling by this extension.
	Addition []int

	// Probability of the extended labeling.
	Prob *labelProb
}

func allExtensions(next []float64, blank int, label []int,
	prob *labelProb) []*possibleExtension {
	var res []*possibleExtension
	for i, compProb := range next {
		if i == blank {
			continue
		}
		p := zeroLabelProb()
		if len(label) > 0 && i == label[len(label)-1] {
			p.NoBlank = compProb + prob.Blank
		} else {
			p.NoBlank = compProb + prob.Total()
		}
		res = append(res, &possibleExtension{Addition: []int{i}, Prob: p})
	}
	noChangeProb := &labelProb{
		Blank:   prob.Total() + next[blank],
		NoBlank: math.Inf(-1),
	}
	if len(label) > 0 {
		last := label[len(label)-1]
		noChangeProb.NoBlank = prob.NoBlank + next[last]
	}
	return append(res, &possibleExtension{Prob: noChangeProb})
}

// An extensionSorter sorts possible labeling extensions
// from most to least probable.
type extensionSorter []*possibleExtension

func (e extensionSorter) Len() int {
	return len(e)
}

func (e extensionSorter) Swap(i, j int) {
	e[i], e[j] = e[j], e[i]
}

func (e extensionSorter) Less(i, j int) bool {
	return e[i].Prob.Total() > e[j].Prob.Total()
}

func logProbs(probs [][]float64) [][]float64 {
	res := make([][]float64, len(probs))
	for i, row := range probs {
		res[i] = make([]float64, len(row))
		for j, x := range row {
			res[i][j] = math.Log(x)
		}
	}
	return res
}
