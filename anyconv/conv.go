package anyconv

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Conv
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeConv)
}

// Conv is a 2-D convolution over time and frequency.
//
// The frequency and depth of the input are fixed when
// the layer is created, while the time length may change
// from batch to batch.
// No implicit padding is applied: a Conv maps T input
// frames to 1+(T-KernelTime)/StrideTime output frames.
type Conv struct {
	FilterCount int
	KernelTime  int
	KernelFreq  int

	StrideTime int
	StrideFreq int

	InputFreq  int
	InputDepth int

	Filters *anydiff.Var
	Biases  *anydiff.Var

	// Parallel spreads each batch across goroutines.
	// This helps small convolutions on the CPU.
	Parallel bool

	windowLock sync.Mutex
	windows    map[int]*Im2Row
}

// DeserializeConv deserializes a Conv.
func DeserializeConv(d []byte) (*Conv, error) {
	var inF, inD, kT, kF, sT, sF serializer.Int
	var f, b *anyvecsave.S
	err := serializer.DeserializeAny(d, &inF, &inD, &kT, &kF, &sT, &sF, &f, &b)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Conv", err)
	}
	if b.Vector.Len() == 0 || f.Vector.Len() != b.Vector.Len()*int(kT*kF*inD) {
		return nil, errors.New("deserialize Conv: invalid filter dimensions")
	}
	return &Conv{
		FilterCount: b.Vector.Len(),
		KernelTime:  int(kT),
		KernelFreq:  int(kF),
		StrideTime:  int(sT),
		StrideFreq:  int(sF),
		InputFreq:   int(inF),
		InputDepth:  int(inD),
		Filters:     anydiff.NewVar(f.Vector),
		Biases:      anydiff.NewVar(b.Vector),
	}, nil
}

// InitRand initializes the filters randomly and the
// biases to zero.
func (c *Conv) InitRand(cr anyvec.Creator) {
	c.InitZero(cr)
	normalizer := 1 / math.Sqrt(float64(c.KernelTime*c.KernelFreq*c.InputDepth))
	anyvec.Rand(c.Filters.Vector, anyvec.Normal, nil)
	c.Filters.Vector.Scale(cr.MakeNumeric(normalizer))
}

// InitZero initializes the parameters to zero.
func (c *Conv) InitZero(cr anyvec.Creator) {
	filterSize := c.KernelTime * c.KernelFreq * c.InputDepth
	c.Filters = anydiff.NewVar(cr.MakeVector(filterSize * c.FilterCount))
	c.Biases = anydiff.NewVar(cr.MakeVector(c.FilterCount))
}

// TimeKernel returns the kernel size on the time axis.
func (c *Conv) TimeKernel() int {
	return c.KernelTime
}

// TimeStride returns the stride on the time axis.
func (c *Conv) TimeStride() int {
	return c.StrideTime
}

// OutShape returns the output shape for an input shape.
func (c *Conv) OutShape(in Shape) Shape {
	return Shape{
		Time:  windowCount(in.Time, c.KernelTime, c.StrideTime),
		Freq:  windowCount(in.Freq, c.KernelFreq, c.StrideFreq),
		Depth: c.FilterCount,
	}
}

// Apply applies the convolution to a batch.
//
// The layer must have been initialized.
func (c *Conv) Apply(in anydiff.Res, batch int, shape Shape) anydiff.Res {
	if shape.Freq != c.InputFreq || shape.Depth != c.InputDepth {
		panic(fmt.Sprintf("conv expects freq=%d depth=%d but got freq=%d depth=%d",
			c.InputFreq, c.InputDepth, shape.Freq, shape.Depth))
	}
	if in.Output().Len() != batch*shape.Size() {
		panic("incorrect input size")
	}
	cr := in.Output().Creator()
	outShape := c.OutShape(shape)
	if outShape.Size() == 0 || batch == 0 {
		return anydiff.NewConst(cr.MakeVector(0))
	}

	window := c.window(shape.Time)
	filterMatrix := c.filterMatrix()
	productResults := make([]anyvec.Vector, batch)
	c.mapper(window)(in.Output(), func(i int, imgMatrix *anyvec.Matrix) {
		prodMat := &anyvec.Matrix{
			Data: cr.MakeVector(outShape.Size()),
			Rows: outShape.Time * outShape.Freq,
			Cols: outShape.Depth,
		}
		prodMat.Product(false, true, cr.MakeNumeric(1), imgMatrix, filterMatrix,
			cr.MakeNumeric(0))
		productResults[i] = prodMat.Data
	})

	outData := cr.Concat(productResults...)
	anyvec.AddRepeated(outData, c.Biases.Vector)

	ourVars := anydiff.VarSet{}
	ourVars.Add(c.Filters)
	ourVars.Add(c.Biases)

	return &convRes{
		Layer:    c,
		Window:   window,
		N:        batch,
		OutShape: outShape,
		In:       in,
		OutVec:   outData,
		V:        anydiff.MergeVarSets(in.Vars(), ourVars),
	}
}

// Parameters returns the filters and the biases, in that
// order.
// If the layer is uninitialized, the result is nil.
func (c *Conv) Parameters() []*anydiff.Var {
	if c.Filters == nil || c.Biases == nil {
		return nil
	}
	return []*anydiff.Var{c.Filters, c.Biases}
}

// SerializerType returns the unique ID used to serialize
// a Conv with the serializer package.
func (c *Conv) SerializerType() string {
	return "github.com/unixpickle/anyspeech/anyconv.Conv"
}

// Serialize serializes the layer.
// It fails if the layer was not initialized.
func (c *Conv) Serialize() ([]byte, error) {
	if c.Filters == nil || c.Biases == nil {
		return nil, errors.New("cannot serialize uninitialized Conv")
	}
	return serializer.SerializeAny(
		serializer.Int(c.InputFreq),
		serializer.Int(c.InputDepth),
		serializer.Int(c.KernelTime),
		serializer.Int(c.KernelFreq),
		serializer.Int(c.StrideTime),
		serializer.Int(c.StrideFreq),
		&anyvecsave.S{Vector: c.Filters.Vector},
		&anyvecsave.S{Vector: c.Biases.Vector},
	)
}

// window returns the (cached) Im2Row for inputs with the
// given time length.
func (c *Conv) window(inTime int) *Im2Row {
	c.windowLock.Lock()
	defer c.windowLock.Unlock()
	if c.windows == nil {
		c.windows = map[int]*Im2Row{}
	}
	if w, ok := c.windows[inTime]; ok {
		return w
	}
	w := &Im2Row{
		WindowTime: c.KernelTime,
		WindowFreq: c.KernelFreq,
		StrideTime: c.StrideTime,
		StrideFreq: c.StrideFreq,
		InputTime:  inTime,
		InputFreq:  c.InputFreq,
		InputDepth: c.InputDepth,
	}
	c.windows[inTime] = w
	return w
}

func (c *Conv) filterMatrix() *anyvec.Matrix {
	return &anyvec.Matrix{
		Data: c.Filters.Vector,
		Rows: c.FilterCount,
		Cols: c.KernelTime * c.KernelFreq * c.InputDepth,
	}
}

func (c *Conv) mapper(w *Im2Row) func(anyvec.Vector, func(int, *anyvec.Matrix)) {
	if c.Parallel {
		return w.MapParallel
	}
	return w.MapAll
}

type convRes struct {
	Layer    *Conv
	Window   *Im2Row
	N        int
	OutShape Shape
	In       anydiff.Res
	OutVec   anyvec.Vector
	V        anydiff.VarSet
}

func (c *convRes) Output() anyvec.Vector {
	return c.OutVec
}

func (c *convRes) Vars() anydiff.VarSet {
	return c.V
}

func (c *convRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	doIn := g.Intersects(c.In.Vars())

	outSize := u.Len() / c.N
	inSize := c.In.Output().Len() / c.N

	filterMat := c.Layer.filterMatrix()
	one := u.Creator().MakeNumeric(1)
	zero := u.Creator().MakeNumeric(0)

	if biasGrad, ok := g[c.Layer.Biases]; ok {
		propagateBiases(biasGrad, u)
	}

	inputUpstreams := make([]anyvec.Vector, c.N)
	var updateLock sync.Mutex
	c.loopImageMatrix(g, func(i int, imgMat *anyvec.Matrix) {
		uMat := &anyvec.Matrix{
			Data: u.Slice(outSize*i, outSize*(i+1)),
			Rows: c.OutShape.Time * c.OutShape.Freq,
			Cols: c.OutShape.Depth,
		}
		if filterGrad, ok := g[c.Layer.Filters]; ok {
			fgMat := *filterMat
			fgMat.Data = filterGrad.Creator().MakeVector(filterGrad.Len())
			fgMat.Product(true, false, one, uMat, imgMat, zero)
			updateLock.Lock()
			filterGrad.Add(fgMat.Data)
			updateLock.Unlock()
		}
		if doIn {
			imgMat.Product(false, false, one, uMat, filterMat, zero)
			inUp := u.Creator().MakeVector(inSize)
			c.Window.Mapper(u.Creator()).MapTranspose(imgMat.Data, inUp)
			inputUpstreams[i] = inUp
		}
	})

	if doIn {
		c.In.Propagate(u.Creator().Concat(inputUpstreams...), g)
	}
}

// loopImageMatrix only performs the im2row mapping when
// the filter gradient needs it.
func (c *convRes) loopImageMatrix(g anydiff.Grad, f func(i int, m *anyvec.Matrix)) {
	if _, ok := g[c.Layer.Filters]; ok {
		c.Layer.mapper(c.Window)(c.In.Output(), f)
	} else if c.Layer.Parallel {
		c.Window.CallParallel(c.In.Output().Creator(), c.N, f)
	} else {
		c.Window.CallAll(c.In.Output().Creator(), c.N, f)
	}
}

// propagateBiases sums the upstream rows into biasGrad.
func propagateBiases(biasGrad, upstream anyvec.Vector) {
	upMat := &anyvec.Matrix{
		Data: upstream,
		Rows: upstream.Len() / biasGrad.Len(),
		Cols: biasGrad.Len(),
	}
	onesMat := &anyvec.Matrix{
		Data: upstream.Creator().MakeVector(upMat.Rows),
		Rows: upMat.Rows,
		Cols: 1,
	}
	onesMat.Data.AddScalar(upstream.Creator().MakeNumeric(1))
	resMat := &anyvec.Matrix{
		Data: biasGrad,
		Rows: biasGrad.Len(),
		Cols: 1,
	}
	one := upstream.Creator().MakeNumeric(1)
	resMat.Product(true, false, one, upMat, onesMat, one)
}
