package anyconv

import (
	"fmt"

	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/convmarkup"
	"github.com/unixpickle/essentials"
)

// markupTime is the nominal time length given to the
// markup Input block.
// It only serves convmarkup's dimension checks.
const markupTime = 1 << 16

// FromMarkup creates a FrontEnd from a convmarkup
// description.
//
// The markup must not contain an Input block: the input
// is implicitly freqDim wide, one channel deep, and as
// long as each batch.
// Conv blocks use w for frequency and h for time, so
// "Conv(w=5, h=11, n=32, sy=2)" has a time kernel of 11
// and a time stride of 2.
//
// Supported blocks are Conv, BatchNorm, ReLU, Sigmoid,
// Tanh, Dropout, Debug, and Repeat.
func FromMarkup(c anyvec.Creator, freqDim int, code string) (*FrontEnd, error) {
	header := fmt.Sprintf("Input(w=%d, h=%d, d=1)\n", freqDim, markupTime)
	parsed, err := convmarkup.Parse(header + code)
	if err != nil {
		return nil, essentials.AddCtx("parse markup", err)
	}
	block, err := parsed.Block(convmarkup.Dims{}, convmarkup.DefaultCreators())
	if err != nil {
		return nil, essentials.AddCtx("make markup block", err)
	}
	chain := convmarkup.RealizerChain{convmarkup.MetaRealizer{}, Realizer(c)}
	instance, _, err := chain.Realize(convmarkup.Dims{}, block)
	if err != nil {
		return nil, essentials.AddCtx("realize markup block", err)
	}
	stages, ok := instance.([]Stage)
	if !ok {
		return nil, fmt.Errorf("realize markup block: unexpected %T", instance)
	}
	return &FrontEnd{FreqDim: freqDim, Stages: stages}, nil
}

// Realizer creates a convmarkup.Realizer for front-end
// stages.
// Every realized object is a Stage, except for the root
// block, which is realized as a []Stage.
//
// It is meant to be chained after a
// convmarkup.MetaRealizer.
func Realizer(c anyvec.Creator) convmarkup.Realizer {
	return &realizer{creator: c}
}

type realizer struct {
	creator anyvec.Creator
}

func (r *realizer) Realize(chain convmarkup.RealizerChain, inDims convmarkup.Dims,
	b convmarkup.Block) (interface{}, error) {
	switch b := b.(type) {
	case *convmarkup.Root:
		return r.stages(chain, inDims, b.Children)
	case *convmarkup.Conv:
		return r.conv(inDims, b), nil
	case *convmarkup.Activation:
		return r.activation(inDims, b)
	case *convmarkup.Dropout:
		return &Pointwise{Layer: &anyspeech.Dropout{KeepProb: b.Prob, Enabled: true}}, nil
	case *convmarkup.Debug:
		return &Pointwise{Layer: &anyspeech.Debug{
			LogMean:      b.Attrs["mean"] == 1,
			LogVariance:  b.Attrs["variance"] == 1,
			LogAbsMaxima: b.Attrs["absmax"] == 1,
		}}, nil
	default:
		return nil, convmarkup.ErrUnsupportedBlock
	}
}

func (r *realizer) stages(chain convmarkup.RealizerChain, inDims convmarkup.Dims,
	ch []convmarkup.Block) ([]Stage, error) {
	var res []Stage
	for _, b := range ch {
		if rep, ok := b.(*convmarkup.Repeat); ok {
			for i := 0; i < rep.N; i++ {
				sub, err := r.stages(chain, inDims, rep.Children)
				if err != nil {
					return nil, err
				}
				res = append(res, sub...)
			}
			continue
		}
		obj, _, err := chain.Realize(inDims, b)
		if err != nil {
			return nil, err
		} else if obj != nil {
			stage, ok := obj.(Stage)
			if !ok {
				return nil, fmt.Errorf("not a Stage: %T", obj)
			}
			res = append(res, stage)
		}
		inDims = b.OutDims()
	}
	return res, nil
}

func (r *realizer) conv(d convmarkup.Dims, b *convmarkup.Conv) *Conv {
	res := &Conv{
		FilterCount: b.FilterCount,
		KernelTime:  b.FilterHeight,
		KernelFreq:  b.FilterWidth,
		StrideTime:  b.StrideY,
		StrideFreq:  b.StrideX,
		InputFreq:   d.Width,
		InputDepth:  d.Depth,
	}
	res.InitRand(r.creator)
	return res
}

func (r *realizer) activation(d convmarkup.Dims, b *convmarkup.Activation) (Stage, error) {
	if b.Name == "BatchNorm" {
		return NewBatchNorm(r.creator, d.Depth), nil
	}
	act, err := anyspeech.ActivationNamed(b.Name)
	if err != nil {
		return nil, err
	}
	return &Pointwise{Layer: act}, nil
}
