package anyasr

// A Compensator does the time-axis bookkeeping for a
// stack of valid (unpadded) convolutions.
//
// Stage i has a time kernel Kernels[i] and a time stride
// Strides[i]; a missing stride is 1.
type Compensator struct {
	Kernels []int
	Strides []int
}

// NewCompensator creates a Compensator for an Encoder's
// front end.
func NewCompensator(e Encoder) *Compensator {
	return &Compensator{Kernels: e.TimeKernels(), Strides: e.TimeStrides()}
}

// Padding is the number of frames to add to each end of
// the time axis, sum(kernel/2), so that every input frame
// reaches the center of some window.
func (c *Compensator) Padding() int {
	var res int
	for _, k := range c.Kernels {
		res += k / 2
	}
	return res
}

// OutputLength maps an input time length to the time
// length after every stage.
// Inputs shorter than a kernel produce 0.
func (c *Compensator) OutputLength(time int) int {
	for i, k := range c.Kernels {
		s := c.stride(i)
		if time < k {
			return 0
		}
		time = 1 + (time-k)/s
	}
	return time
}

// MinInputLength returns the shortest input time length
// whose OutputLength is at least out.
func (c *Compensator) MinInputLength(out int) int {
	if out <= 0 {
		return 0
	}
	for i := len(c.Kernels) - 1; i >= 0; i-- {
		out = (out-1)*c.stride(i) + c.Kernels[i]
	}
	return out
}

func (c *Compensator) stride(i int) int {
	if i < len(c.Strides) && c.Strides[i] > 0 {
		return c.Strides[i]
	}
	return 1
}
