// Package extinction evaluates the piecewise cloud model at a query
// distance modulus and collapses the sample axis with a caller-chosen
// reducer.
package extinction

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dustmap/internal/clouds"
)

// Total returns the foreground extinction E(B-V) of every (pixel, sample)
// at distance modulus mu as a pixels x samples matrix.
//
// A cloud contributes only when its anchor lies strictly nearer than mu;
// an anchor equal to mu counts as background.
func Total(p *clouds.Profiles, mu float64) (*mat.Dense, error) {
	if p == nil || p.Anchor == nil || p.DeltaEBV == nil {
		return nil, fmt.Errorf("%w: nil profiles", clouds.ErrShape)
	}
	if p.Anchor.Shape != p.DeltaEBV.Shape {
		return nil, fmt.Errorf("%w: anchor shape %v != extinction shape %v",
			clouds.ErrShape, p.Anchor.Shape, p.DeltaEBV.Shape)
	}
	nPix, nSamples, n := p.Pixels(), p.Samples(), p.Clouds()
	if nPix == 0 || nSamples == 0 {
		return nil, fmt.Errorf("%w: cannot evaluate %d pixels x %d samples", clouds.ErrShape, nPix, nSamples)
	}

	out := mat.NewDense(nPix, nSamples, nil)
	if n == 0 {
		return out, nil
	}
	masked := make([]float64, n)
	for i := 0; i < nPix; i++ {
		row := out.RawRowView(i)
		for s := 0; s < nSamples; s++ {
			anchor := p.Anchor.Row(i, s)
			delta := p.DeltaEBV.Row(i, s)
			for c := range masked {
				if anchor[c] < mu {
					masked[c] = delta[c]
				} else {
					masked[c] = 0
				}
			}
			floats.CumSum(masked, masked)
			row[s] = masked[n-1]
		}
	}
	return out, nil
}

// Flatten returns every value of m in row-major order.
func Flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
