package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/dustmap/internal/raster"
)

// EchartsAssetsHost serves the echarts javascript for HTML output.
var EchartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// HeatMapHTML writes an interactive scatter heat map of img. Cells are
// plotted by grid index, so longitude decreases along x as in the PNG.
// Missing cells are omitted.
func HeatMapHTML(w io.Writer, img *raster.Image, o MapOptions) error {
	if img == nil || img.Cells() == 0 {
		return fmt.Errorf("cannot plot an empty image")
	}
	lo, hi := o.ColorRange(img)

	points := make([]opts.ScatterData, 0, img.Cells())
	for x := 0; x < img.XSize; x++ {
		for y := 0; y < img.YSize; y++ {
			v := img.At(x, y)
			if math.IsNaN(v) {
				continue
			}
			l, b := img.Cell(x, y)
			points = append(points, opts.ScatterData{Value: []interface{}{x, y, v, l, b}})
		}
	}

	title := o.Title
	if title == "" {
		title = "Extinction map"
	}
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px", AssetsHost: EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d cells, %v", img.XSize, img.YSize, img.Bounds)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Min: 0, Max: img.XSize,
			Name:         fmt.Sprintf("l %.2f to %.2f", img.Bounds.LMax, img.Bounds.LMin),
			NameLocation: "middle", NameGap: 25,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Min: 0, Max: img.YSize,
			Name:         fmt.Sprintf("b %.2f to %.2f", img.Bounds.BMin, img.Bounds.BMax),
			NameLocation: "middle", NameGap: 30,
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("extinction", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
