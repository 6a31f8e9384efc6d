package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
)

// SurfaceBounds is the (DM_min, DM_max, EBV_min, EBV_max) box of a
// probability surface.
type SurfaceBounds [4]float64

// surfaceGrid maps surface[i][j] to distance modulus bin i and E(B-V) bin j.
type surfaceGrid struct {
	z      [][]float64
	bounds SurfaceBounds
}

func (g surfaceGrid) Dims() (c, r int) { return len(g.z), len(g.z[0]) }

func (g surfaceGrid) Z(c, r int) float64 { return g.z[c][r] }

func (g surfaceGrid) X(c int) float64 {
	n := float64(len(g.z))
	return g.bounds[0] + (g.bounds[1]-g.bounds[0])*(float64(c)+0.5)/n
}

func (g surfaceGrid) Y(r int) float64 {
	n := float64(len(g.z[0]))
	return g.bounds[2] + (g.bounds[3]-g.bounds[2])*(float64(r)+0.5)/n
}

// SurfacePlot draws one star's probability surface, distance modulus
// along x and E(B-V) along y.
func SurfacePlot(surface [][]float64, bounds SurfaceBounds, o PlotOptions) (*plot.Plot, error) {
	if len(surface) == 0 || len(surface[0]) == 0 {
		return nil, fmt.Errorf("cannot plot an empty surface")
	}
	for i, row := range surface {
		if len(row) != len(surface[0]) {
			return nil, fmt.Errorf("surface row %d has %d bins, expected %d", i, len(row), len(surface[0]))
		}
	}
	hm := plotter.NewHeatMap(surfaceGrid{z: surface, bounds: bounds}, palette.Heat(paletteSize, 1))
	if !(hm.Max > hm.Min) {
		hm.Max = hm.Min + 1
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "DM"
	p.Y.Label.Text = "E(B-V)"
	p.Add(hm)
	p.X.Min, p.X.Max = bounds[0], bounds[1]
	p.Y.Min, p.Y.Max = bounds[2], bounds[3]
	return p, nil
}

// SurfacePNG writes a probability surface as a PNG.
func SurfacePNG(w io.Writer, surface [][]float64, bounds SurfaceBounds, o PlotOptions) error {
	p, err := SurfacePlot(surface, bounds, o)
	if err != nil {
		return err
	}
	width, height := o.size()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode surface png: %w", err)
	}
	return nil
}
