package anyfeat

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Fbank computes log-mel filterbank features.
//
// An Fbank reuses FFT work space, so it should not be
// used from multiple Goroutines at once.
type Fbank struct {
	config  Config
	filters [][]float64
	window  []float64
	fft     *fourier.FFT
	frame   []float64
	coeffs  []complex128
}

// NewFbank creates an Fbank for the configuration.
func NewFbank(c Config) (*Fbank, error) {
	switch {
	case c.SampleRate <= 0:
		return nil, fmt.Errorf("fbank: bad sample rate: %d", c.SampleRate)
	case c.FrameLength <= 0 || c.FrameShift <= 0:
		return nil, fmt.Errorf("fbank: bad framing: length %d, shift %d", c.FrameLength,
			c.FrameShift)
	case c.FFTSize < c.FrameLength || c.FFTSize&(c.FFTSize-1) != 0:
		return nil, fmt.Errorf("fbank: bad FFT size: %d", c.FFTSize)
	case c.NumMels <= 0:
		return nil, fmt.Errorf("fbank: bad mel count: %d", c.NumMels)
	case c.LowFreq < 0 || c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2:
		return nil, fmt.Errorf("fbank: bad frequency range: [%f, %f]", c.LowFreq, c.HighFreq)
	}
	return &Fbank{
		config:  c,
		filters: melFilters(c),
		window:  hammingWindow(c.FrameLength),
		fft:     fourier.NewFFT(c.FFTSize),
		frame:   make([]float64, c.FFTSize),
		coeffs:  make([]complex128, c.FFTSize/2+1),
	}, nil
}

// Config returns the Fbank's configuration.
func (f *Fbank) Config() Config {
	return f.config
}

// NumFrames returns the number of frames computed for a
// given number of samples.
func (f *Fbank) NumFrames(samples int) int {
	if samples < f.config.FrameLength {
		return 0
	}
	return (samples-f.config.FrameLength)/f.config.FrameShift + 1
}

// Compute computes the features of a signal in [-1, 1].
// The result has one row of NumMels values per frame.
func (f *Fbank) Compute(samples []float64) [][]float64 {
	c := f.config
	res := make([][]float64, f.NumFrames(len(samples)))
	for i := range res {
		start := i * c.FrameShift
		raw := samples[start : start+c.FrameLength]

		var mean float64
		for _, x := range raw {
			mean += x
		}
		mean /= float64(len(raw))

		for j := range f.frame {
			f.frame[j] = 0
		}
		for j := len(raw) - 1; j >= 0; j-- {
			x := raw[j] - mean
			if j > 0 {
				x -= c.Preemphasis * (raw[j-1] - mean)
			} else {
				x -= c.Preemphasis * x
			}
			f.frame[j] = x * f.window[j]
		}

		f.fft.Coefficients(f.coeffs, f.frame)
		row := make([]float64, c.NumMels)
		for m, filter := range f.filters {
			var energy float64
			for k, weight := range filter {
				if weight != 0 {
					re, im := real(f.coeffs[k]), imag(f.coeffs[k])
					energy += weight * (re*re + im*im)
				}
			}
			row[m] = math.Log(math.Max(energy, c.LogFloor))
		}
		res[i] = row
	}
	return res
}

// ComputeInt16 computes the features of 16-bit PCM.
func (f *Fbank) ComputeInt16(pcm []int16) [][]float64 {
	return f.Compute(Int16Samples(pcm))
}

// Int16Samples scales 16-bit PCM into [-1, 1].
func Int16Samples(pcm []int16) []float64 {
	res := make([]float64, len(pcm))
	for i, x := range pcm {
		res[i] = float64(x) / 32768
	}
	return res
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// melFilters creates triangular filters, evenly spaced
// on the HTK mel scale, over the non-negative FFT bins.
func melFilters(c Config) [][]float64 {
	numBins := c.FFTSize/2 + 1
	binHz := float64(c.SampleRate) / float64(c.FFTSize)

	lowMel, highMel := hzToMel(c.LowFreq), hzToMel(c.HighFreq)
	points := make([]float64, c.NumMels+2)
	for i := range points {
		points[i] = melToHz(lowMel + float64(i)*(highMel-lowMel)/float64(c.NumMels+1))
	}

	filters := make([][]float64, c.NumMels)
	for m := range filters {
		filters[m] = make([]float64, numBins)
		left, center, right := points[m], points[m+1], points[m+2]
		for k := range filters[m] {
			hz := float64(k) * binHz
			lower := (hz - left) / (center - left)
			upper := (right - hz) / (right - center)
			filters[m][k] = math.Max(0, math.Min(lower, upper))
		}
	}
	return filters
}

func hammingWindow(size int) []float64 {
	res := make([]float64, size)
	if size == 1 {
		res[0] = 1
		return res
	}
	for i := range res {
		res[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(size-1))
	}
	return res
}
