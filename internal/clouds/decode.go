// Package clouds decodes raw per-pixel cloud-model samples into dense
// cumulative anchor distance moduli and per-cloud extinction increments.
//
// Each raw sample row has width 2*nClouds+1: a reserved leading entry,
// nClouds distance-modulus increments and nClouds log-extinction
// increments.
package clouds

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/dustmap/internal/tensor"
)

// ErrShape marks malformed sample tensors.
var ErrShape = errors.New("invalid cloud sample shape")

// Profiles are the decoded arrays, both shaped (pixels, samples, nClouds).
type Profiles struct {
	// Anchor holds the running distance modulus of each cloud boundary.
	Anchor *tensor.Tensor3
	// DeltaEBV holds the extinction contributed by each cloud; always
	// positive for finite log-extinction input.
	DeltaEBV *tensor.Tensor3
}

// Pixels returns the size of the pixel axis.
func (p *Profiles) Pixels() int { return p.Anchor.Shape[0] }

// Samples returns the size of the sample axis.
func (p *Profiles) Samples() int { return p.Anchor.Shape[1] }

// Clouds returns the number of cloud segments.
func (p *Profiles) Clouds() int { return p.Anchor.Shape[2] }

// CloudCount derives nClouds from a raw row width.
func CloudCount(width int) (int, error) {
	if width < 1 || (width-1)%2 != 0 {
		return 0, fmt.Errorf("%w: row width %d gives (width-1)/2 = %g clouds, expected an integer",
			ErrShape, width, float64(width-1)/2)
	}
	return (width - 1) / 2, nil
}

// Decode turns a raw tensor of shape (pixels, samples, 2*nClouds+1) into
// cumulative anchors and exponentiated extinction increments.
func Decode(raw *tensor.Tensor3) (*Profiles, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil tensor", ErrShape)
	}
	if len(raw.Data) != raw.Shape[0]*raw.Shape[1]*raw.Shape[2] {
		return nil, fmt.Errorf("%w: shape %v does not match %d values", ErrShape, raw.Shape, len(raw.Data))
	}
	n, err := CloudCount(raw.Shape[2])
	if err != nil {
		return nil, err
	}

	nPix, nSamples := raw.Shape[0], raw.Shape[1]
	out := &Profiles{
		Anchor:   tensor.New(nPix, nSamples, n),
		DeltaEBV: tensor.New(nPix, nSamples, n),
	}
	for p := 0; p < nPix; p++ {
		for s := 0; s < nSamples; s++ {
			row := raw.Row(p, s)
			floats.CumSum(out.Anchor.Row(p, s), row[1:n+1])

			delta := out.DeltaEBV.Row(p, s)
			for c, lnE := range row[n+1:] {
				delta[c] = math.Exp(lnE)
			}
		}
	}
	return out, nil
}

// Encode is the inverse of Decode: it rebuilds raw rows from cumulative
// anchors and extinction increments. The reserved leading entry is zero.
func Encode(p *Profiles) (*tensor.Tensor3, error) {
	if p == nil || p.Anchor == nil || p.DeltaEBV == nil {
		return nil, fmt.Errorf("%w: nil profiles", ErrShape)
	}
	if p.Anchor.Shape != p.DeltaEBV.Shape {
		return nil, fmt.Errorf("%w: anchor shape %v != extinction shape %v", ErrShape, p.Anchor.Shape, p.DeltaEBV.Shape)
	}
	nPix, nSamples, n := p.Pixels(), p.Samples(), p.Clouds()
	raw := tensor.New(nPix, nSamples, 2*n+1)
	for i := 0; i < nPix; i++ {
		for s := 0; s < nSamples; s++ {
			row := raw.Row(i, s)
			anchor := p.Anchor.Row(i, s)
			prev := 0.0
			for c, a := range anchor {
				row[1+c] = a - prev
				prev = a
			}
			for c, d := range p.DeltaEBV.Row(i, s) {
				row[1+n+c] = math.Log(d)
			}
		}
	}
	return raw, nil
}
