// Package dustmap wires the pixel store, cloud decoder, extinction
// evaluator and rasterizer into map and profile computations.
package dustmap

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/dustmap/internal/clouds"
	"github.com/banshee-data/dustmap/internal/config"
	"github.com/banshee-data/dustmap/internal/extinction"
	"github.com/banshee-data/dustmap/internal/monitoring"
	"github.com/banshee-data/dustmap/internal/pixelstore"
	"github.com/banshee-data/dustmap/internal/raster"
)

// Pipeline computes maps and profiles from one store. The decoded model and
// the raster plan are loaded on first use and cached until Reset.
type Pipeline struct {
	store pixelstore.Store
	cfg   *config.MapConfig

	mu    sync.Mutex
	model *clouds.Model
	plan  *raster.Plan
}

// New returns a pipeline over store. A nil cfg uses the defaults.
func New(store pixelstore.Store, cfg *config.MapConfig) *Pipeline {
	if cfg == nil {
		cfg = config.EmptyMapConfig()
	}
	return &Pipeline{store: store, cfg: cfg}
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() *config.MapConfig { return p.cfg }

// Reset drops the cached model and plan, e.g. after an import.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = nil
	p.plan = nil
}

// Model loads and decodes every pixel in the store.
func (p *Pipeline) Model(ctx context.Context) (*clouds.Model, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked(ctx)
}

func (p *Pipeline) loadLocked(ctx context.Context) (*clouds.Model, error) {
	if p.model != nil {
		return p.model, nil
	}
	m, err := clouds.Load(ctx, p.store, p.cfg.GetWorkers())
	if err != nil {
		return nil, err
	}
	p.model = m
	return m, nil
}

// Rasterizer returns the rasterizer for the model's pixelization.
func (p *Pipeline) Rasterizer(m *clouds.Model) (raster.Rasterizer, error) {
	mode, err := raster.ParseLookupMode(p.cfg.GetLookup())
	if err != nil {
		return raster.Rasterizer{}, err
	}
	return raster.Rasterizer{
		Nside:      m.Nside,
		Nested:     m.Nested,
		Oversample: p.cfg.GetOversample(),
		Lookup:     mode,
		DenseLimit: p.cfg.GetDenseLookupMaxPixels(),
		Workers:    p.cfg.GetWorkers(),
	}, nil
}

func (p *Pipeline) modelAndPlan(ctx context.Context) (*clouds.Model, *raster.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.loadLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	if p.plan == nil {
		r, err := p.Rasterizer(m)
		if err != nil {
			return nil, nil, err
		}
		if p.plan, err = r.Plan(m.Pixels); err != nil {
			return nil, nil, err
		}
	}
	return m, p.plan, nil
}

// Reducer resolves the named reducer, falling back to the configured one
// when name is empty.
func (p *Pipeline) Reducer(name string) (extinction.Reducer, error) {
	if name == "" {
		name = p.cfg.GetReducer()
	}
	return extinction.ParseReducer(name, p.cfg.GetPercentiles())
}

// MapResult is one evaluated and rasterized map.
type MapResult struct {
	Mu     float64
	Pixels []int64
	// Values is pixels x reducer outputs.
	Values *mat.Dense
	// Layers holds one image per reducer output.
	Layers *raster.Stack
}

// Image returns reducer output i as an image.
func (r *MapResult) Image(i int) (*raster.Image, error) {
	if i < 0 || i >= r.Layers.Rows {
		return nil, fmt.Errorf("layer %d out of range [0, %d)", i, r.Layers.Rows)
	}
	return r.Layers.Layer(i), nil
}

// Map evaluates extinction at mu, reduces across samples and rasterizes
// every reducer output.
func (p *Pipeline) Map(ctx context.Context, mu float64, reducer extinction.Reducer) (*MapResult, error) {
	m, plan, err := p.modelAndPlan(ctx)
	if err != nil {
		return nil, err
	}
	defer monitoring.Timed(fmt.Sprintf("[dustmap] map at mu=%g", mu))()

	total, err := extinction.Total(m.Profiles, mu)
	if err != nil {
		return nil, err
	}
	values, err := extinction.Reduce(total, reducer)
	if err != nil {
		return nil, err
	}
	layers, err := plan.Rows(values.T())
	if err != nil {
		return nil, err
	}
	return &MapResult{Mu: mu, Pixels: m.Pixels, Values: values, Layers: layers}, nil
}

// Profile computes the configured distance profile.
func (p *Pipeline) Profile(ctx context.Context) (*extinction.Profile, error) {
	p.mu.Lock()
	m, err := p.loadLocked(ctx)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	defer monitoring.Timed("[dustmap] distance profile")()
	return extinction.DistanceProfile(m.Profiles,
		p.cfg.GetProfileMuMin(), p.cfg.GetProfileMuMax(), p.cfg.GetProfileSteps(), p.cfg.GetPercentiles())
}
