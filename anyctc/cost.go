package anyctc

import (
	"fmt"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec"
)

// A Reduction determines how Loss combines the costs of
// the examples in a batch.
type Reduction int

const (
	// ReduceNone produces one cost per example.
	ReduceNone Reduction = iota

	// ReduceSum adds up the costs.
	ReduceSum

	// ReduceMean divides every cost by its label length
	// (or by 1 for empty labels) and averages the results.
	ReduceMean
)

// String returns the name of the reduction.
func (r Reduction) String() string {
	switch r {
	case ReduceNone:
		return "none"
	case ReduceSum:
		return "sum"
	case ReduceMean:
		return "mean"
	default:
		return fmt.Sprintf("Reduction(%d)", int(r))
	}
}

// Cost computes the cost for a batch of output sequences.
// The cost for each sequence is the negative log
// likelihood of the corresponding label.
//
// Every timestep of every sequence holds log
// probabilities, and entry blank is the blank symbol.
// A label that cannot be aligned to its sequence has a
// cost of +Inf.
//
// The anyvec.Creator must use an anyvec.NumericList type
// []float32 or []float64.
// No other numeric types are supported.
func Cost(seqs anyseq.Seq, labels [][]int, blank int) anydiff.Res {
	rawData := anyseq.SeparateSeqs(seqs.Output())
	pools := make([]*anydiff.Var, len(labels))
	lengths := make([]int, len(labels))
	for i := range pools {
		var raw []anyvec.Vector
		if i < len(rawData) {
			raw = rawData[i]
		}
		lengths[i] = len(raw)
		if len(raw) == 0 {
			pools[i] = anydiff.NewVar(internalCreator.MakeVector(0))
		} else {
			pools[i] = anydiff.NewVar(vectorTo64(seqs.Creator().Concat(raw...)))
		}
	}
	return newCostRes(seqs.Creator(), pools, lengths, labels, blank, seqs.Vars(),
		func(grads []anyvec.Vector, g anydiff.Grad) {
			if len(seqs.Output()) == 0 {
				return
			}
			downstream := make([][]anyvec.Vector, len(grads))
			for i, grad := range grads {
				downstream[i] = splitVec(vectorFrom64(seqs.Creator(), grad), lengths[i])
			}
			joined := anyseq.ConstSeqList(seqs.Creator(), downstream).Output()
			seqs.Propagate(joined, g)
		})
}

// Loss computes CTC costs for a time-major tensor of log
// probabilities.
//
// The logProbs tensor is laid out as (time, batch, class),
// so the log probabilities for example b at timestep t
// start at (t*batch+b)*classes.
// The labels of all examples are concatenated in batch
// order and labelLens splits them back up.
// Only the first inputLens[b] timesteps of example b are
// used for alignment.
//
// Malformed arguments produce an *anyspeech.ShapeError,
// an *anyspeech.LabelError, or anyspeech.ErrEmptyBatch.
// Alignment infeasibility is not an error; the cost of
// such an example is +Inf.
func Loss(logProbs anydiff.Res, time, batch int, labels, inputLens, labelLens []int,
	blank int, r Reduction) (anydiff.Res, error) {
	if batch == 0 {
		return nil, anyspeech.ErrEmptyBatch
	}
	classes, err := checkLossArgs(logProbs.Output().Len(), time, batch, labels,
		inputLens, labelLens, blank)
	if err != nil {
		return nil, err
	}

	c := logProbs.Output().Creator()
	split := make([][]int, batch)
	var offset int
	for i, n := range labelLens {
		split[i] = labels[offset : offset+n]
		offset += n
	}

	mappers := make([]anyvec.Mapper, batch)
	pools := make([]*anydiff.Var, batch)
	for b := 0; b < batch; b++ {
		if inputLens[b] == 0 {
			pools[b] = anydiff.NewVar(internalCreator.MakeVector(0))
			continue
		}
		table := make([]int, 0, inputLens[b]*classes)
		for t := 0; t < inputLens[b]; t++ {
			start := (t*batch + b) * classes
			for k := 0; k < classes; k++ {
				table = append(table, start+k)
			}
		}
		mappers[b] = c.MakeMapper(logProbs.Output().Len(), table)
		gathered := c.MakeVector(len(table))
		mappers[b].Map(logProbs.Output(), gathered)
		pools[b] = anydiff.NewVar(vectorTo64(gathered))
	}

	costs := newCostRes(c, pools, inputLens, split, blank, logProbs.Vars(),
		func(grads []anyvec.Vector, g anydiff.Grad) {
			down := c.MakeVector(logProbs.Output().Len())
			for b, grad := range grads {
				if mappers[b] != nil {
					mappers[b].MapTranspose(vectorFrom64(c, grad), down)
				}
			}
			logProbs.Propagate(down, g)
		})
	return reduce(costs, labelLens, r), nil
}

func checkLossArgs(size, time, batch int, labels, inputLens, labelLens []int,
	blank int) (int, error) {
	if time <= 0 || size%(time*batch) != 0 || size == 0 {
		return 0, &anyspeech.ShapeError{
			Op:   "CTC loss",
			What: fmt.Sprintf("log prob count (time=%d, batch=%d)", time, batch),
			Want: time * batch,
			Got:  size,
		}
	}
	classes := size / (time * batch)
	if len(inputLens) != batch {
		return 0, &anyspeech.ShapeError{Op: "CTC loss", What: "input length count",
			Want: batch, Got: len(inputLens)}
	}
	if len(labelLens) != batch {
		return 0, &anyspeech.ShapeError{Op: "CTC loss", What: "label length count",
			Want: batch, Got: len(labelLens)}
	}
	var total int
	for i, n := range inputLens {
		if n < 0 || n > time {
			return 0, &anyspeech.ShapeError{Op: "CTC loss",
				What: fmt.Sprintf("input length of example %d", i), Want: time, Got: n}
		}
		if labelLens[i] < 0 {
			return 0, &anyspeech.ShapeError{Op: "CTC loss",
				What: fmt.Sprintf("label length of example %d", i), Want: 0, Got: labelLens[i]}
		}
		total += labelLens[i]
	}
	if total != len(labels) {
		return 0, &anyspeech.ShapeError{Op: "CTC loss", What: "concatenated label count",
			Want: total, Got: len(labels)}
	}
	if blank < 0 || blank >= classes {
		return 0, &anyspeech.ShapeError{Op: "CTC loss", What: "class count",
			Want: blank + 1, Got: classes}
	}
	var example, index int
	for _, label := range labels {
		for index >= labelLens[example] {
			example++
			index = 0
		}
		if label < 0 || label >= classes || label == blank {
			return 0, &anyspeech.LabelError{Example: example, Index: index, Class: label,
				OutputDim: classes - 1}
		}
		index++
	}
	return classes, nil
}

func reduce(costs anydiff.Res, labelLens []int, r Reduction) anydiff.Res {
	c := costs.Output().Creator()
	switch r {
	case ReduceSum:
		return anydiff.Sum(costs)
	case ReduceMean:
		scales := make([]float64, len(labelLens))
		for i, n := range labelLens {
			scales[i] = 1 / math.Max(1, float64(n))
		}
		weights := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(scales)))
		sum := anydiff.Sum(anydiff.Mul(costs, weights))
		return anydiff.Scale(sum, c.MakeNumeric(1/float64(len(labelLens))))
	default:
		return costs
	}
}

// costRes computes negative log likelihoods from pools
// of []float64 log probabilities and hands the gradients
// of the pools to Back.
type costRes struct {
	Pools []*anydiff.Var
	Res   anydiff.Res
	Out   anyvec.Vector
	V     anydiff.VarSet
	Back  func(grads []anyvec.Vector, g anydiff.Grad)
}

func newCostRes(c anyvec.Creator, pools []*anydiff.Var, lengths []int, labels [][]int,
	blank int, v anydiff.VarSet, back func([]anyvec.Vector, anydiff.Grad)) *costRes {
	var likelihoods []anydiff.Res
	for i, pool := range pools {
		steps := splitRes(pool, lengths[i])
		likelihoods = append(likelihoods, logLikelihood(internalCreator, steps, labels[i], blank))
	}
	res := anydiff.Scale(anydiff.Concat(likelihoods...), internalCreator.MakeNumeric(-1))
	return &costRes{
		Pools: pools,
		Res:   res,
		Out:   vectorFrom64(c, res.Output()),
		V:     v,
		Back:  back,
	}
}

func (c *costRes) Output() anyvec.Vector {
	return c.Out
}

func (c *costRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *costRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	for _, pvar := range c.Pools {
		g[pvar] = internalCreator.MakeVector(pvar.Vector.Len())
	}
	c.Res.Propagate(vectorTo64(u), g)
	grads := make([]anyvec.Vector, len(c.Pools))
	for i, pvar := range c.Pools {
		grads[i] = g[pvar]
		delete(g, pvar)
	}
	c.Back(grads, g)
}

func splitVec(vec anyvec.Vector, parts int) []anyvec.Vector {
	res := make([]anyvec.Vector, parts)
	if parts == 0 {
		return res
	}
	chunkSize := vec.Len() / parts
	for i := range res {
		res[i] = vec.Slice(i*chunkSize, (i+1)*chunkSize)
	}
	return res
}

func splitRes(res anydiff.Res, parts int) []anydiff.Res {
	if parts == 0 {
		return nil
	}
	reses := make([]anydiff.Res, parts)
	chunkSize := res.Output().Len() / parts
	for i := range reses {
		reses[i] = anydiff.Slice(res, i*chunkSize, (i+1)*chunkSize)
	}
	return reses
}
