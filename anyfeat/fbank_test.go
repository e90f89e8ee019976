package anyfeat

import (
	"math"
	"testing"
)

func TestFbankSine(t *testing.T) {
	f, err := NewFbank(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]float64, 16000)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*1000*float64(i)/16000)
	}
	frames := f.Compute(samples)
	if len(frames) != 98 || f.NumFrames(len(samples)) != 98 {
		t.Fatalf("expected 98 frames but got %d", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != 80 {
			t.Fatalf("frame %d: expected 80 mels but got %d", i, len(frame))
		}
		var best int
		for j, x := range frame {
			if x > frame[best] {
				best = j
			}
		}
		lowMel, highMel := hzToMel(20), hzToMel(7600)
		center := melToHz(lowMel + float64(best+1)*(highMel-lowMel)/81)
		if center < 800 || center > 1250 {
			t.Errorf("frame %d: peak band is centered at %f Hz", i, center)
		}
	}
}

func TestFbankSilence(t *testing.T) {
	f, err := NewFbank(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	frames := f.ComputeInt16(make([]int16, 800))
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames but got %d", len(frames))
	}
	floor := math.Log(1e-10)
	for _, frame := range frames {
		for _, x := range frame {
			if x != floor {
				t.Fatalf("expected %f but got %f", floor, x)
			}
		}
	}
	if n := len(f.Compute(make([]float64, 399))); n != 0 {
		t.Errorf("expected no frames but got %d", n)
	}
}

func TestFbankBadConfig(t *testing.T) {
	mutations := []func(c *Config){
		func(c *Config) { c.SampleRate = 0 },
		func(c *Config) { c.FrameShift = 0 },
		func(c *Config) { c.FFTSize = 256 },
		func(c *Config) { c.FFTSize = 600 },
		func(c *Config) { c.NumMels = 0 },
		func(c *Config) { c.HighFreq = 9000 },
		func(c *Config) { c.LowFreq = 8000 },
	}
	for i, mutate := range mutations {
		c := DefaultConfig()
		mutate(&c)
		if _, err := NewFbank(c); err == nil {
			t.Errorf("mutation %d: expected error", i)
		}
	}
}

func TestInt16Samples(t *testing.T) {
	res := Int16Samples([]int16{-32768, 0, 16384})
	expected := []float64{-1, 0, 0.5}
	for i, x := range expected {
		if res[i] != x {
			t.Errorf("sample %d: expected %f but got %f", i, x, res[i])
		}
	}
}

func TestMelFilters(t *testing.T) {
	c := DefaultConfig()
	filters := melFilters(c)
	for m, filter := range filters {
		var peak float64
		for _, x := range filter {
			if x < 0 || x > 1 {
				t.Fatalf("filter %d: weight %f out of range", m, x)
			}
			peak = math.Max(peak, x)
		}
		if peak == 0 {
			t.Errorf("filter %d: empty", m)
		}
	}
}

func TestCMVN(t *testing.T) {
	frames := [][]float64{{1, 5}, {2, 5}, {3, 5}, {6, 5}}
	CMVN(frames)
	for dim := 0; dim < 2; dim++ {
		var mean, sqMean float64
		for _, frame := range frames {
			mean += frame[dim] / 4
			sqMean += frame[dim] * frame[dim] / 4
		}
		if math.Abs(mean) > 1e-8 {
			t.Errorf("dim %d: mean %f", dim, mean)
		}
		expected := 1.0
		if dim == 1 {
			expected = 0
		}
		if math.Abs(sqMean-expected) > 1e-8 {
			t.Errorf("dim %d: variance %f", dim, sqMean)
		}
	}
	CMVN(nil)
}
