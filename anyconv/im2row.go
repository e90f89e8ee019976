package anyconv

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/unixpickle/anyvec"
)

// Im2Row maps the (possibly overlapping) windows of a
// (time, freq, depth) tensor to the rows of a matrix.
//
// Row i corresponds to the i-th output position of a Conv
// with the same window and strides, in (time, freq)
// order.
//
// An Im2Row caches its mapping.
// You should not modify it after the first mapping.
type Im2Row struct {
	WindowTime int
	WindowFreq int

	StrideTime int
	StrideFreq int

	InputTime  int
	InputFreq  int
	InputDepth int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// InputSize returns the number of components in each
// input tensor.
func (m *Im2Row) InputSize() int {
	return m.InputTime * m.InputFreq * m.InputDepth
}

// NumTime returns the number of window positions along
// the time axis.
func (m *Im2Row) NumTime() int {
	return windowCount(m.InputTime, m.WindowTime, m.StrideTime)
}

// NumFreq returns the number of window positions along
// the frequency axis.
func (m *Im2Row) NumFreq() int {
	return windowCount(m.InputFreq, m.WindowFreq, m.StrideFreq)
}

// MakeOut allocates a row matrix for one tensor.
func (m *Im2Row) MakeOut(c anyvec.Creator) *anyvec.Matrix {
	rows := m.NumTime() * m.NumFreq()
	cols := m.WindowTime * m.WindowFreq * m.InputDepth
	return &anyvec.Matrix{Data: c.MakeVector(rows * cols), Rows: rows, Cols: cols}
}

// MapAll maps each packed tensor of in to a row matrix
// and calls f with it, in order.
//
// The matrix passed to f is reused between calls, so f
// must not retain it.
func (m *Im2Row) MapAll(in anyvec.Vector, f func(idx int, m *anyvec.Matrix)) {
	m.mapImpl(in, f, false)
}

// MapParallel is like MapAll, but f may be called
// concurrently and out of order.
func (m *Im2Row) MapParallel(in anyvec.Vector, f func(idx int, m *anyvec.Matrix)) {
	m.mapImpl(in, f, true)
}

func (m *Im2Row) mapImpl(in anyvec.Vector, f func(idx int, m *anyvec.Matrix),
	parallel bool) {
	inSize := m.InputSize()
	if in.Len()%inSize != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", in.Len(), inSize))
	}

	mapper := m.Mapper(in.Creator())
	mapAndCall := func(i int, mat *anyvec.Matrix) {
		mapper.Map(in.Slice(inSize*i, inSize*(i+1)), mat.Data)
		f(i, mat)
	}

	n := in.Len() / inSize
	if parallel {
		m.CallParallel(in.Creator(), n, mapAndCall)
	} else {
		m.CallAll(in.Creator(), n, mapAndCall)
	}
}

// CallAll calls f for indices 0 through n-1 with a
// scratch matrix whose contents are unspecified.
func (m *Im2Row) CallAll(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	mat := m.MakeOut(c)
	for i := 0; i < n; i++ {
		f(i, mat)
	}
}

// CallParallel is like CallAll, but it spreads the calls
// across GOMAXPROCS goroutines, each with its own scratch
// matrix.
func (m *Im2Row) CallParallel(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < runtime.GOMAXPROCS(0); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mat := m.MakeOut(c)
			for i := range jobs {
				f(i, mat)
			}
		}()
	}
	wg.Wait()
}

// Mapper returns the mapper which performs the mapping
// for a single tensor.
func (m *Im2Row) Mapper(c anyvec.Creator) anyvec.Mapper {
	m.mapperLock.Lock()
	defer m.mapperLock.Unlock()
	if m.mapper != nil && m.mapper.Creator() == c {
		return m.mapper
	}

	var mapping []int
	rowStride := m.InputFreq * m.InputDepth
	for t := 0; t+m.WindowTime <= m.InputTime; t += m.StrideTime {
		for f := 0; f+m.WindowFreq <= m.InputFreq; f += m.StrideFreq {
			for subT := 0; subT < m.WindowTime; subT++ {
				rowIdx := (t + subT) * rowStride
				for subF := 0; subF < m.WindowFreq; subF++ {
					colIdx := rowIdx + (f+subF)*m.InputDepth
					for z := 0; z < m.InputDepth; z++ {
						mapping = append(mapping, colIdx+z)
					}
				}
			}
		}
	}

	m.mapper = c.MakeMapper(m.InputSize(), mapping)
	return m.mapper
}
