package render

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/dustmap/internal/raster"
)

const paletteSize = 256

// MapOptions controls map rendering. Zero values select defaults.
type MapOptions struct {
	Title string
	// Label annotates the colour bar.
	Label string
	// VMin and VMax clip the colour scale; nil uses the image's finite range.
	VMin, VMax *float64
	Width      vg.Length
	Height     vg.Length
}

func (o MapOptions) size() (vg.Length, vg.Length) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = 5 * vg.Inch
	}
	if h <= 0 {
		h = 5 * vg.Inch
	}
	return w, h
}

// ColorRange resolves the colour limits for img.
func (o MapOptions) ColorRange(img *raster.Image) (lo, hi float64) {
	lo, hi, ok := img.FiniteRange()
	if !ok {
		lo, hi = 0, 1
	}
	if o.VMin != nil {
		lo = *o.VMin
	}
	if o.VMax != nil {
		hi = *o.VMax
	}
	if !(hi > lo) {
		hi = lo + 1
	}
	return lo, hi
}

// imageGrid presents a raster image to plotter.HeatMap with increasing X.
// Column c shows image column XSize-1-c.
type imageGrid struct {
	img *raster.Image
}

func (g imageGrid) Dims() (c, r int) { return g.img.XSize, g.img.YSize }

func (g imageGrid) Z(c, r int) float64 { return g.img.At(g.img.XSize-1-c, r) }

func (g imageGrid) X(c int) float64 {
	l, _ := g.img.Cell(g.img.XSize-1-c, 0)
	return l
}

func (g imageGrid) Y(r int) float64 {
	_, b := g.img.Cell(0, r)
	return b
}

// fixedTicks places n evenly spaced labelled ticks across the axis.
type fixedTicks struct {
	n      int
	format string
}

func (t fixedTicks) Ticks(min, max float64) []plot.Tick {
	if t.n < 2 {
		return []plot.Tick{{Value: min, Label: fmt.Sprintf(t.format, min)}}
	}
	ticks := make([]plot.Tick, t.n)
	step := (max - min) / float64(t.n-1)
	for i := range ticks {
		v := min + step*float64(i)
		ticks[i] = plot.Tick{Value: v, Label: fmt.Sprintf(t.format, v)}
	}
	return ticks
}

func colorMap(lo, hi float64) palette.ColorMap {
	cm := moreland.ExtendedBlackBody()
	cm.SetMax(hi)
	cm.SetMin(lo)
	return cm
}

// MapPlot builds the heat map plot of img. NaN cells are left blank.
func MapPlot(img *raster.Image, o MapOptions) (*plot.Plot, error) {
	if img == nil || img.Cells() == 0 {
		return nil, fmt.Errorf("cannot plot an empty image")
	}
	lo, hi := o.ColorRange(img)

	hm := plotter.NewHeatMap(imageGrid{img: img}, colorMap(lo, hi).Palette(paletteSize))
	hm.Min, hm.Max = lo, hi

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "l"
	p.Y.Label.Text = "b"
	p.Add(hm)

	p.X.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.X.Min, p.X.Max = img.Bounds.LMin, img.Bounds.LMax
	p.Y.Min, p.Y.Max = img.Bounds.BMin, img.Bounds.BMax
	p.X.Tick.Marker = fixedTicks{n: 5, format: "%.1f"}
	p.Y.Tick.Marker = fixedTicks{n: 4, format: "%.1f"}
	return p, nil
}

// HeatMapPNG writes img as a PNG heat map with a colour bar on the right.
func HeatMapPNG(w io.Writer, img *raster.Image, o MapOptions) error {
	p, err := MapPlot(img, o)
	if err != nil {
		return err
	}
	lo, hi := o.ColorRange(img)

	bar := plot.New()
	bar.Add(&plotter.ColorBar{ColorMap: colorMap(lo, hi), Vertical: true})
	bar.HideX()
	bar.Y.Label.Text = o.Label
	bar.Y.Padding = 0

	width, height := o.size()
	barWidth := vg.Length(math.Min(float64(width)/5, float64(vg.Inch)))

	c := vgimg.New(width, height)
	dc := draw.New(c)
	p.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	bar.Draw(draw.Crop(dc, width-barWidth, 0, 0, 0))

	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode map png: %w", err)
	}
	return nil
}
