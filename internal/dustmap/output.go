package dustmap

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/dustmap/internal/config"
	"github.com/banshee-data/dustmap/internal/extinction"
	"github.com/banshee-data/dustmap/internal/raster"
	"github.com/banshee-data/dustmap/internal/render"
)

// Format names a map output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatHTML Format = "html"
	FormatJSON Format = "json"
)

// ParseFormat accepts png, html or json; empty means png.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPNG, nil
	case FormatPNG, FormatHTML, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (expected png, html or json)", s)
}

// FormatFromPath picks a format from a file extension, defaulting to png.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return FormatHTML
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	}
	return FormatPNG
}

// MapOptions derives render options from cfg.
func MapOptions(cfg *config.MapConfig, title string) render.MapOptions {
	return render.MapOptions{
		Title:  title,
		Label:  "E(B-V)",
		Width:  vg.Length(cfg.GetImageWidthIn()) * vg.Inch,
		Height: vg.Length(cfg.GetImageHeightIn()) * vg.Inch,
	}
}

// ImageDocument is the JSON form of a rasterized map. NaN cells are null.
type ImageDocument struct {
	raster.Grid
	Mu     float64    `json:"mu"`
	Layer  int        `json:"layer"`
	Values []*float64 `json:"values"` // row-major, index x*y_size+y
}

// NewImageDocument converts img for JSON output.
func NewImageDocument(img *raster.Image, mu float64, layer int) ImageDocument {
	vals := make([]*float64, len(img.Data))
	for i := range img.Data {
		if !math.IsNaN(img.Data[i]) {
			vals[i] = &img.Data[i]
		}
	}
	return ImageDocument{Grid: img.Grid, Mu: mu, Layer: layer, Values: vals}
}

// WriteMap encodes img in format f.
func WriteMap(w io.Writer, f Format, img *raster.Image, mu float64, layer int, o render.MapOptions) error {
	switch f {
	case FormatPNG:
		return render.HeatMapPNG(w, img, o)
	case FormatHTML:
		return render.HeatMapHTML(w, img, o)
	case FormatJSON:
		return writeJSON(w, NewImageDocument(img, mu, layer))
	}
	return fmt.Errorf("unsupported format %q", f)
}

// WriteProfile encodes a distance profile as png or json.
func WriteProfile(w io.Writer, f Format, prof *extinction.Profile, o render.PlotOptions) error {
	switch f {
	case FormatPNG:
		return render.ProfilePNG(w, prof, o)
	case FormatJSON:
		return writeJSON(w, prof)
	}
	return fmt.Errorf("format %q is not available for profiles", f)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
