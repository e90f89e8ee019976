package anyasr

import (
	"fmt"

	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec"
)

// A LengthMapper maps an input time length to the time
// length the encoder's front end produces for it.
type LengthMapper interface {
	OutputLength(time int) int
}

// A Batch is a collated batch of examples.
type Batch struct {
	// Inputs is packed as (Size, MaxTime, FreqDim), with
	// every example zero-padded to MaxTime frames.
	Inputs anyvec.Vector

	// Labels holds every example's labels, concatenated
	// in batch order.
	Labels []int

	// InputLens holds the number of encoder output frames
	// used to align each example.
	InputLens []int

	// LabelLens splits Labels into examples.
	LabelLens []int

	Size    int
	MaxTime int
	FreqDim int
}

// ExampleLabels returns the labels of one example.
func (b *Batch) ExampleLabels(idx int) []int {
	var offset int
	for _, n := range b.LabelLens[:idx] {
		offset += n
	}
	return b.Labels[offset : offset+b.LabelLens[idx]]
}

// A Collator builds Batches.
type Collator struct {
	// Creator creates the input tensor.
	Creator anyvec.Creator

	// Lengths computes input lengths.
	Lengths LengthMapper

	// OutputDim is the number of real classes.
	OutputDim int

	// FreqDim, if non-zero, is the required frequency
	// dimension.
	// Otherwise, the first frame of the batch sets it.
	FreqDim int

	// PerExampleLengths computes every input length from
	// the example's own time length.
	// By default, every example gets the length computed
	// for the longest example.
	PerExampleLengths bool
}

// Collate builds a batch from feature sequences (each a
// list of frames) and their label sequences.
//
// It fails with anyspeech.ErrEmptyBatch for no examples,
// an *anyspeech.ShapeError for mismatched dimensions, and
// an *anyspeech.LabelError for labels outside of
// [0, OutputDim).
func (c *Collator) Collate(inputs [][][]float64, labels [][]int) (*Batch, error) {
	if len(inputs) == 0 {
		return nil, anyspeech.ErrEmptyBatch
	}
	if len(labels) != len(inputs) {
		return nil, &anyspeech.ShapeError{Op: "collate", What: "label sequence count",
			Want: len(inputs), Got: len(labels)}
	}

	freqDim := c.FreqDim
	var maxTime int
	for i, seq := range inputs {
		maxTime = max(maxTime, len(seq))
		for t, frame := range seq {
			if freqDim == 0 {
				freqDim = len(frame)
			}
			if len(frame) != freqDim {
				return nil, &anyspeech.ShapeError{
					Op:   "collate",
					What: fmt.Sprintf("frequency dim of example %d, frame %d", i, t),
					Want: freqDim,
					Got:  len(frame),
				}
			}
		}
	}

	res := &Batch{
		Size:      len(inputs),
		MaxTime:   maxTime,
		FreqDim:   freqDim,
		InputLens: make([]int, len(inputs)),
		LabelLens: make([]int, len(inputs)),
	}
	space := ClassSpace{OutputDim: c.OutputDim}
	for i, seq := range labels {
		for j, label := range seq {
			if cl := Class(label); cl == Blank || !space.Valid(cl) {
				return nil, &anyspeech.LabelError{Example: i, Index: j, Class: label,
					OutputDim: c.OutputDim}
			}
		}
		res.Labels = append(res.Labels, seq...)
		res.LabelLens[i] = len(seq)
	}

	uniform := c.Lengths.OutputLength(maxTime)
	for i, seq := range inputs {
		if c.PerExampleLengths {
			res.InputLens[i] = c.Lengths.OutputLength(len(seq))
		} else {
			res.InputLens[i] = uniform
		}
	}

	data := make([]float64, len(inputs)*maxTime*freqDim)
	for i, seq := range inputs {
		offset := i * maxTime * freqDim
		for _, frame := range seq {
			copy(data[offset:], frame)
			offset += freqDim
		}
	}
	res.Inputs = c.Creator.MakeVectorData(c.Creator.MakeNumericList(data))

	return res, nil
}
