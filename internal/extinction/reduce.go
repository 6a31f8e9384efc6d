package extinction

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Reducer collapses the samples of one pixel into Outputs() scalars.
type Reducer interface {
	Outputs() int
	ReduceRow(dst, samples []float64)
}

// Mean is the arithmetic mean over samples.
type Mean struct{}

func (Mean) Outputs() int { return 1 }

func (Mean) ReduceRow(dst, samples []float64) {
	dst[0] = stat.Mean(samples, nil)
}

// Percentiles reduces to the listed percentiles, each in [0, 100].
// Quantiles interpolate linearly between the order statistics at rank
// (n-1)*p/100, so the median of an even-sized sample is the midpoint of the
// two middle values.
type Percentiles struct {
	P []float64
}

// Median is the 50th percentile.
func Median() Percentiles { return Percentiles{P: []float64{50}} }

func (q Percentiles) Outputs() int { return len(q.P) }

// Validate rejects an empty list or values outside [0, 100].
func (q Percentiles) Validate() error {
	if len(q.P) == 0 {
		return fmt.Errorf("at least one percentile is required")
	}
	for _, p := range q.P {
		if !(p >= 0 && p <= 100) {
			return fmt.Errorf("percentile %v outside [0, 100]", p)
		}
	}
	return nil
}

func (q Percentiles) ReduceRow(dst, samples []float64) {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	for i, p := range q.P {
		dst[i] = linearQuantile(sorted, p/100)
	}
}

// linearQuantile returns the q-quantile of sorted, q in [0, 1].
func linearQuantile(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	v := sorted[int(lo)]
	if frac := h - lo; frac > 0 {
		v += frac * (sorted[int(lo)+1] - v)
	}
	return v
}

// Reduce applies r to each row of a pixels x samples matrix and returns a
// pixels x r.Outputs() matrix.
func Reduce(m *mat.Dense, r Reducer) (*mat.Dense, error) {
	if v, ok := r.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	rows, cols := m.Dims()
	if cols == 0 {
		return nil, fmt.Errorf("cannot reduce %d pixels with no samples", rows)
	}
	out := mat.NewDense(rows, r.Outputs(), nil)
	for i := 0; i < rows; i++ {
		r.ReduceRow(out.RawRowView(i), m.RawRowView(i))
	}
	return out, nil
}

// ParseReducer resolves a reducer name ("mean", "median" or "percentile").
// percentiles is only consulted for "percentile".
func ParseReducer(name string, percentiles []float64) (Reducer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mean":
		return Mean{}, nil
	case "median":
		return Median(), nil
	case "percentile", "percentiles":
		q := Percentiles{P: append([]float64(nil), percentiles...)}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown reducer %q (expected mean, median or percentile)", name)
	}
}
