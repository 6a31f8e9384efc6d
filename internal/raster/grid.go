package raster

import (
	"fmt"
	"math"
)

// Bounds is the angular box covered by a grid, in degrees.
type Bounds struct {
	LMin float64 `json:"l_min"`
	LMax float64 `json:"l_max"`
	BMin float64 `json:"b_min"`
	BMax float64 `json:"b_max"`
}

// Width is the longitude span.
func (b Bounds) Width() float64 { return b.LMax - b.LMin }

// Height is the latitude span.
func (b Bounds) Height() float64 { return b.BMax - b.BMin }

func (b Bounds) String() string {
	return fmt.Sprintf("l=[%.4f, %.4f] b=[%.4f, %.4f]", b.LMin, b.LMax, b.BMin, b.BMax)
}

// Grid is the output raster geometry.
type Grid struct {
	Bounds Bounds `json:"bounds"`
	XSize  int    `json:"x_size"`
	YSize  int    `json:"y_size"`
}

// Cells returns XSize*YSize.
func (g Grid) Cells() int { return g.XSize * g.YSize }

// Cell returns the galactic coordinates of the centre of cell (x, y).
// Longitude decreases with x.
func (g Grid) Cell(x, y int) (l, b float64) {
	l = g.Bounds.LMax - g.Bounds.Width()*(float64(x)+0.5)/float64(g.XSize)
	b = g.Bounds.BMin + g.Bounds.Height()*(float64(y)+0.5)/float64(g.YSize)
	return l, b
}

// Index is the offset of cell (x, y) in a row-major buffer.
func (g Grid) Index(x, y int) int { return x*g.YSize + y }

// newGrid sizes a grid so that one pixel length spans oversample cells.
func newGrid(b Bounds, pixLen, oversample float64) Grid {
	return Grid{
		Bounds: b,
		XSize:  cellCount(b.Width(), pixLen, oversample),
		YSize:  cellCount(b.Height(), pixLen, oversample),
	}
}

func cellCount(span, pixLen, oversample float64) int {
	n := int(oversample * span / pixLen)
	if n < 1 {
		return 1
	}
	return n
}

// centerBounds returns the box enclosing every centre with half a pixel of
// margin on each side.
func centerBounds(ls, bs []float64, pixLen float64) Bounds {
	out := Bounds{
		LMin: math.Inf(1), LMax: math.Inf(-1),
		BMin: math.Inf(1), BMax: math.Inf(-1),
	}
	for i := range ls {
		out.LMin = math.Min(out.LMin, ls[i])
		out.LMax = math.Max(out.LMax, ls[i])
		out.BMin = math.Min(out.BMin, bs[i])
		out.BMax = math.Max(out.BMax, bs[i])
	}
	half := pixLen / 2
	out.LMin -= half
	out.LMax += half
	out.BMin -= half
	out.BMax += half
	return out
}
