package raster

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dustmap/internal/healpix"
	"github.com/banshee-data/dustmap/internal/monitoring"
)

var (
	// ErrEmptyPixels is returned when asked to rasterize no pixels.
	ErrEmptyPixels = errors.New("raster: empty pixel list")
	// ErrShape marks values that do not line up with the pixel list.
	ErrShape = errors.New("raster: value shape mismatch")
)

// DefaultOversample is the number of output cells per pixel length.
const DefaultOversample = 3

// Rasterizer holds the pixelization and resampling options. The zero value
// of every option selects its default.
type Rasterizer struct {
	Nside      int64
	Nested     bool
	Oversample float64
	Lookup     LookupMode
	DenseLimit int64
	Workers    int
}

// Plan is the reusable part of a rasterization: the grid and, for every
// cell, the position of its pixel in the input list.
type Plan struct {
	Grid
	Pixels    []int64
	positions []int32
}

// Missing reports whether cell (x, y) maps to no input pixel.
func (p *Plan) Missing(x, y int) bool {
	return p.positions[p.Index(x, y)] == missing
}

// Position returns the input position that fills cell (x, y), or -1.
func (p *Plan) Position(x, y int) int {
	return int(p.positions[p.Index(x, y)])
}

func (r Rasterizer) oversample() float64 {
	if r.Oversample > 0 {
		return r.Oversample
	}
	return DefaultOversample
}

func (r Rasterizer) denseLimit() int64 {
	if r.DenseLimit > 0 {
		return r.DenseLimit
	}
	return DefaultDenseLimit
}

func (r Rasterizer) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return 1
}

// Plan computes the grid covering ids and resolves each cell to an input
// position. ids is not modified.
func (r Rasterizer) Plan(ids []int64) (*Plan, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyPixels
	}
	if int64(len(ids)) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d pixels exceed the lookup capacity", ErrShape, len(ids))
	}
	base, err := healpix.New(r.Nside, r.Nested)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(ids))
	ls := make([]float64, len(ids))
	bs := make([]float64, len(ids))
	for i, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: pixel %d listed more than once", ErrShape, id)
		}
		seen[id] = struct{}{}
		if ls[i], bs[i], err = base.PixelCenter(id); err != nil {
			return nil, err
		}
	}

	pixLen := healpix.Degrees(healpix.PixelLength(r.Nside))
	grid := newGrid(centerBounds(ls, bs, pixLen), pixLen, r.oversample())

	var lookup positionLookup
	mode := r.Lookup
	if mode == LookupAuto {
		mode = LookupHash
		if base.Npix() <= r.denseLimit() {
			mode = LookupDense
		}
	}
	switch mode {
	case LookupDense:
		lookup = newDenseLookup(base.Npix(), ids)
	case LookupHash:
		lookup = newHashLookup(ids)
	default:
		return nil, fmt.Errorf("unsupported lookup mode %v", r.Lookup)
	}
	monitoring.Logf("[raster] %d pixels at nside=%d -> %dx%d grid (%s lookup), %v",
		len(ids), r.Nside, grid.XSize, grid.YSize, mode, grid.Bounds)

	positions := make([]int32, grid.Cells())
	var g errgroup.Group
	g.SetLimit(r.workers())
	for x := 0; x < grid.XSize; x++ {
		g.Go(func() error {
			for y := 0; y < grid.YSize; y++ {
				l, b := grid.Cell(x, y)
				positions[grid.Index(x, y)] = lookup.position(base.GalacticToPix(l, b))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Plan{
		Grid:      grid,
		Pixels:    append([]int64(nil), ids...),
		positions: positions,
	}, nil
}

// Scalar fills an image with values[i] for the cells of pixel i.
func (p *Plan) Scalar(values []float64) (*Image, error) {
	if len(values) != len(p.Pixels) {
		return nil, fmt.Errorf("%w: %d values for %d pixels", ErrShape, len(values), len(p.Pixels))
	}
	img := NewImage(p.Grid)
	p.fill(img.Data, func(i int32) float64 { return values[i] })
	return img, nil
}

// Rows fills one image per row of values, which must be
// (rows x len(Pixels)).
func (p *Plan) Rows(values mat.Matrix) (*Stack, error) {
	rows, cols := values.Dims()
	if cols != len(p.Pixels) {
		return nil, fmt.Errorf("%w: value matrix is %dx%d, expected (_ x %d)", ErrShape, rows, cols, len(p.Pixels))
	}
	st := NewStack(p.Grid, rows)
	for r := 0; r < rows; r++ {
		p.fill(st.Layer(r).Data, func(i int32) float64 { return values.At(r, int(i)) })
	}
	return st, nil
}

func (p *Plan) fill(dst []float64, value func(int32) float64) {
	for c, pos := range p.positions {
		if pos == missing {
			dst[c] = math.NaN()
		} else {
			dst[c] = value(pos)
		}
	}
}

// RasterizeScalar rasterizes one value per pixel into a 2-D image.
func (r Rasterizer) RasterizeScalar(ids []int64, values []float64) (*Image, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("%w: %d values for %d pixels", ErrShape, len(values), len(ids))
	}
	plan, err := r.Plan(ids)
	if err != nil {
		return nil, err
	}
	return plan.Scalar(values)
}

// RasterizeRows rasterizes a (rows x pixels) matrix into a stack of images,
// one per row.
func (r Rasterizer) RasterizeRows(ids []int64, values mat.Matrix) (*Stack, error) {
	if _, cols := values.Dims(); cols != len(ids) {
		return nil, fmt.Errorf("%w: value matrix has %d columns for %d pixels", ErrShape, cols, len(ids))
	}
	plan, err := r.Plan(ids)
	if err != nil {
		return nil, err
	}
	return plan.Rows(values)
}
