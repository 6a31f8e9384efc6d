package render

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dustmap/internal/extinction"
)

// PlotOptions sizes line and surface plots.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func (o PlotOptions) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 7 * vg.Inch
	}
	if h <= 0 {
		h = 4 * vg.Inch
	}
	return w, h
}

// band pairs a lower and upper percentile curve.
type band struct {
	lo, hi []float64
}

// nestedBands pairs percentiles symmetrically from the outside in, so
// {5, 25, 75, 95} yields (5, 95) then (25, 75).
func nestedBands(prof *extinction.Profile) []band {
	order := make([]int, len(prof.Percentiles))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return prof.Percentiles[order[a]] < prof.Percentiles[order[b]]
	})
	var out []band
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		out = append(out, band{lo: prof.Bands[order[i]], hi: prof.Bands[order[j]]})
	}
	return out
}

func bandPolygon(mu []float64, b band) (*plotter.Polygon, error) {
	pts := make(plotter.XYs, 0, 2*len(mu))
	for k := range mu {
		pts = append(pts, plotter.XY{X: mu[k], Y: b.hi[k]})
	}
	for k := len(mu) - 1; k >= 0; k-- {
		pts = append(pts, plotter.XY{X: mu[k], Y: b.lo[k]})
	}
	return plotter.NewPolygon(pts)
}

// ProfilePlot draws the mean extinction curve over shaded percentile bands.
func ProfilePlot(prof *extinction.Profile, o PlotOptions) (*plot.Plot, error) {
	if prof == nil || len(prof.Mu) == 0 {
		return nil, fmt.Errorf("cannot plot an empty profile")
	}
	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "distance modulus"
	p.Y.Label.Text = "E(B-V)"

	for i, b := range nestedBands(prof) {
		poly, err := bandPolygon(prof.Mu, b)
		if err != nil {
			return nil, err
		}
		alpha := uint8(60 + 50*i)
		poly.Color = color.NRGBA{R: 30, G: 90, B: 200, A: alpha}
		poly.LineStyle.Width = 0
		p.Add(poly)
	}

	pts := make(plotter.XYs, len(prof.Mu))
	for k := range prof.Mu {
		pts[k] = plotter.XY{X: prof.Mu[k], Y: prof.Mean[k]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.Black
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("mean", line)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// ProfilePNG writes the distance profile as a PNG.
func ProfilePNG(w io.Writer, prof *extinction.Profile, o PlotOptions) error {
	p, err := ProfilePlot(prof, o)
	if err != nil {
		return err
	}
	width, height := o.size()
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode profile png: %w", err)
	}
	return nil
}
