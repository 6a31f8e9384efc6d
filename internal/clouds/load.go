package clouds

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/dustmap/internal/monitoring"
	"github.com/banshee-data/dustmap/internal/pixelstore"
	"github.com/banshee-data/dustmap/internal/tensor"
)

// ErrNoPixels is returned when a store holds no pixel groups.
var ErrNoPixels = errors.New("pixel store holds no pixel groups")

// DefaultWorkers bounds concurrent pixel reads in Load.
const DefaultWorkers = 4

// Model is a fully decoded dataset: one profile row per listed pixel.
type Model struct {
	Pixels []int64
	Nside  int64
	Nested bool
	*Profiles
}

// Load reads every pixel group from store and decodes them. The sample
// count and row width are taken from the first pixel; any pixel that
// disagrees, or that uses a different resolution or ordering, is a shape
// error.
func Load(ctx context.Context, store pixelstore.Store, workers int) (*Model, error) {
	if workers < 1 {
		workers = DefaultWorkers
	}
	ids, err := store.ListPixels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pixels: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrNoPixels
	}
	defer monitoring.Timed(fmt.Sprintf("[clouds] load %d pixels", len(ids)))()

	first, err := store.ReadPixelSamples(ctx, ids[0])
	if err != nil {
		return nil, err
	}
	if first.Shape[0] < 1 {
		return nil, fmt.Errorf("%w: pixel %d has shape %v, expected at least one record", ErrShape, ids[0], first.Shape)
	}
	nside, nested, err := pixelstore.ReadNside(ctx, store, ids[0])
	if err != nil {
		return nil, err
	}

	nSamples, width := first.Shape[1], first.Shape[2]
	raw := tensor.New(len(ids), nSamples, width)
	copy(raw.Slab(0), first.Slab(0))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids[1:] {
		g.Go(func() error {
			t, err := store.ReadPixelSamples(gctx, id)
			if err != nil {
				return err
			}
			if t.Shape[0] < 1 || t.Shape[1] != nSamples || t.Shape[2] != width {
				return fmt.Errorf("%w: pixel %d has shape %v, expected (_, %d, %d) as in pixel %d",
					ErrShape, id, t.Shape, nSamples, width, ids[0])
			}
			pn, pnested, err := pixelstore.ReadNside(gctx, store, id)
			if err != nil {
				return err
			}
			if pn != nside || pnested != nested {
				return fmt.Errorf("%w: pixel %d has nside=%d nested=%v, expected nside=%d nested=%v",
					ErrShape, id, pn, pnested, nside, nested)
			}
			// Only the leading record is used, as in the stored layout.
			copy(raw.Slab(i+1), t.Slab(0))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prof, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("[clouds] decoded %d pixels x %d samples x %d clouds (nside=%d nested=%v)",
		prof.Pixels(), prof.Samples(), prof.Clouds(), nside, nested)

	return &Model{
		Pixels:   ids,
		Nside:    nside,
		Nested:   nested,
		Profiles: prof,
	}, nil
}
