// Package tensor provides the dense row-major 3-D float64 array shared by
// the pixel store, the cloud decoder and the extinction evaluator.
package tensor

import "fmt"

// Tensor3 is a dense row-major array of shape Shape[0] x Shape[1] x Shape[2].
type Tensor3 struct {
	Shape [3]int
	Data  []float64
}

// New allocates a zeroed tensor.
func New(d0, d1, d2 int) *Tensor3 {
	if d0 < 0 || d1 < 0 || d2 < 0 {
		panic(fmt.Sprintf("tensor: negative dimension (%d, %d, %d)", d0, d1, d2))
	}
	return &Tensor3{
		Shape: [3]int{d0, d1, d2},
		Data:  make([]float64, d0*d1*d2),
	}
}

// FromData wraps data with the given shape. The length must match.
func FromData(shape [3]int, data []float64) (*Tensor3, error) {
	if shape[0] < 0 || shape[1] < 0 || shape[2] < 0 {
		return nil, fmt.Errorf("tensor: negative dimension in shape %v", shape)
	}
	if want := shape[0] * shape[1] * shape[2]; len(data) != want {
		return nil, fmt.Errorf("tensor: shape %v needs %d values, got %d", shape, want, len(data))
	}
	return &Tensor3{Shape: shape, Data: data}, nil
}

func (t *Tensor3) offset(i, j, k int) int {
	return (i*t.Shape[1]+j)*t.Shape[2] + k
}

// At returns element (i, j, k).
func (t *Tensor3) At(i, j, k int) float64 { return t.Data[t.offset(i, j, k)] }

// Set stores v at (i, j, k).
func (t *Tensor3) Set(i, j, k int, v float64) { t.Data[t.offset(i, j, k)] = v }

// Row returns the innermost vector at (i, j). The slice aliases t.Data.
func (t *Tensor3) Row(i, j int) []float64 {
	o := t.offset(i, j, 0)
	return t.Data[o : o+t.Shape[2] : o+t.Shape[2]]
}

// Slab returns the (Shape[1] x Shape[2]) block at index i. The slice aliases
// t.Data.
func (t *Tensor3) Slab(i int) []float64 {
	n := t.Shape[1] * t.Shape[2]
	return t.Data[i*n : (i+1)*n : (i+1)*n]
}

// Clone returns a deep copy.
func (t *Tensor3) Clone() *Tensor3 {
	out := &Tensor3{Shape: t.Shape, Data: make([]float64, len(t.Data))}
	copy(out.Data, t.Data)
	return out
}

func (t *Tensor3) String() string {
	return fmt.Sprintf("Tensor3%v", t.Shape)
}
