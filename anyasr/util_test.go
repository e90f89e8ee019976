package anyasr

import (
	"io"
	"log/slog"
	"math/rand"

	"github.com/unixpickle/anyspeech"
	"github.com/unixpickle/anyspeech/anyconv"
	"github.com/unixpickle/anyspeech/anyrnn"
	"github.com/unixpickle/anyvec"
)

// testModel creates a model with three time kernels of
// size 5 followed by a recurrent layer.
func testModel(c anyvec.Creator, freq, outputDim int, bidir bool) *Model {
	var stages []anyconv.Stage
	depth := 1
	for i := 0; i < 3; i++ {
		conv := &anyconv.Conv{FilterCount: 2, KernelTime: 5, KernelFreq: 1, StrideTime: 1,
			StrideFreq: 1, InputFreq: freq, InputDepth: depth}
		conv.InitRand(c)
		stages = append(stages, conv, &anyconv.Pointwise{Layer: anyspeech.Tanh})
		depth = 2
	}
	enc := &ConvRNN{FrontEnd: &anyconv.FrontEnd{FreqDim: freq, Stages: stages}}
	if bidir {
		enc.Bidir = []*anyrnn.Bidir{{
			Forward:  anyrnn.NewLSTM(c, freq*2, 3),
			Backward: anyrnn.NewVanilla(c, freq*2, 3, anyspeech.Tanh),
			Mixer:    anyspeech.ConcatMixer{},
		}}
		enc.Hidden = 6
	} else {
		enc.Forward = anyrnn.NewLSTM(c, freq*2, 4)
		enc.Hidden = 4
	}
	return &Model{
		Encoder:    enc,
		Projection: anyspeech.NewProjection(c, enc.Hidden, outputDim+1),
		OutputDim:  outputDim,
		Creator:    c,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func randomFeatures(times []int, freq int) [][][]float64 {
	res := make([][][]float64, len(times))
	for i, n := range times {
		res[i] = make([][]float64, n)
		for t := range res[i] {
			res[i][t] = make([]float64, freq)
			for j := range res[i][t] {
				res[i][t][j] = rand.NormFloat64()
			}
		}
	}
	return res
}
