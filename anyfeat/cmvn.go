package anyfeat

import "math"

// CMVN normalizes every feature dimension of an
// utterance to zero mean and unit variance, in place.
//
// Dimensions with (near) zero variance are only
// mean-normalized.
func CMVN(frames [][]float64) {
	if len(frames) == 0 {
		return
	}
	dim := len(frames[0])
	mean := make([]float64, dim)
	for _, frame := range frames {
		for i, x := range frame {
			mean[i] += x
		}
	}
	for i := range mean {
		mean[i] /= float64(len(frames))
	}
	variance := make([]float64, dim)
	for _, frame := range frames {
		for i, x := range frame {
			d := x - mean[i]
			variance[i] += d * d
		}
	}
	for _, frame := range frames {
		for i := range frame {
			frame[i] -= mean[i]
			if std := math.Sqrt(variance[i] / float64(len(frames))); std > 1e-8 {
				frame[i] /= std
			}
		}
	}
}
