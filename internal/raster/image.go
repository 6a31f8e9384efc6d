package raster

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Image is a rasterized scalar field. Data[x*YSize+y] holds cell (x, y);
// NaN marks cells with no source pixel.
type Image struct {
	Grid
	Data []float64
}

var _ mat.Matrix = (*Image)(nil)

// NewImage allocates an image filled with NaN.
func NewImage(g Grid) *Image {
	data := make([]float64, g.Cells())
	for i := range data {
		data[i] = math.NaN()
	}
	return &Image{Grid: g, Data: data}
}

// Dims returns (XSize, YSize).
func (m *Image) Dims() (int, int) { return m.XSize, m.YSize }

// At returns cell (x, y). It panics with mat.ErrIndexOutOfRange outside the
// grid.
func (m *Image) At(x, y int) float64 {
	if uint(x) >= uint(m.XSize) || uint(y) >= uint(m.YSize) {
		panic(mat.ErrIndexOutOfRange)
	}
	return m.Data[m.Index(x, y)]
}

// T returns the (YSize x XSize) transpose, latitude first.
func (m *Image) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// FiniteRange returns the smallest and largest non-NaN, finite values.
// ok is false when there are none.
func (m *Image) FiniteRange() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		ok = true
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

// MissingFraction is the share of NaN cells.
func (m *Image) MissingFraction() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Data {
		if math.IsNaN(v) {
			n++
		}
	}
	return float64(n) / float64(len(m.Data))
}

// Stack is a sequence of images sharing one grid, stored contiguously as
// Data[r*XSize*YSize + x*YSize + y].
type Stack struct {
	Grid
	Rows int
	Data []float64
}

// NewStack allocates rows NaN-filled layers.
func NewStack(g Grid, rows int) *Stack {
	data := make([]float64, rows*g.Cells())
	for i := range data {
		data[i] = math.NaN()
	}
	return &Stack{Grid: g, Rows: rows, Data: data}
}

// Layer returns row r as an Image aliasing the stack's storage.
func (s *Stack) Layer(r int) *Image {
	n := s.Cells()
	return &Image{Grid: s.Grid, Data: s.Data[r*n : (r+1)*n : (r+1)*n]}
}
