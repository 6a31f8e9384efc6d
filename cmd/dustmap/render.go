package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/dustmap/internal/config"
	"github.com/banshee-data/dustmap/internal/dustmap"
	"github.com/banshee-data/dustmap/internal/fsutil"
	"github.com/banshee-data/dustmap/internal/pixelstore"
	"github.com/banshee-data/dustmap/internal/render"
)

// mapFlags are the options shared by commands that evaluate the model.
type mapFlags struct {
	configPath string
	storePath  string
	reducer    string
	lookup     string
	oversample float64
	workers    int
}

func (f *mapFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Map configuration JSON (default "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&f.storePath, "store", "pixels.db", "Pixel store database")
	fs.StringVar(&f.reducer, "reducer", "", "Sample reducer: mean, median or percentile")
	fs.StringVar(&f.lookup, "lookup", "", "Pixel lookup: auto, dense or hash")
	fs.Float64Var(&f.oversample, "oversample", 0, "Raster cells per pixel length")
	fs.IntVar(&f.workers, "workers", 0, "Parallel store readers and raster workers")
}

// load reads the configuration and applies any flags set on fs.
func (f *mapFlags) load(fs *flag.FlagSet) (*config.MapConfig, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "reducer":
			cfg.Reducer = &f.reducer
		case "lookup":
			cfg.Lookup = &f.lookup
		case "oversample":
			cfg.Oversample = &f.oversample
		case "workers":
			cfg.Workers = &f.workers
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openStore(path string) (*pixelstore.SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("-store is required")
	}
	return pixelstore.Open(path)
}

func runRender(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var mf mapFlags
	mf.register(fs)
	mu := fs.Float64("mu", 0, "Distance modulus (default from config)")
	out := fs.String("out", "extinction.png", "Output file; .png, .html or .json")
	layer := fs.Int("layer", 0, "Reducer output to render; -1 writes every layer")
	vmin := fs.Float64("vmin", 0, "Lower end of the colour scale (default finite minimum)")
	vmax := fs.Float64("vmax", 0, "Upper end of the colour scale (default finite maximum)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := mf.load(fs)
	if err != nil {
		return err
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "mu" {
			cfg.DistanceModulus = mu
		}
	})

	store, err := openStore(mf.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	p := dustmap.New(store, cfg)
	reducer, err := p.Reducer("")
	if err != nil {
		return err
	}
	result, err := p.Map(context.Background(), cfg.GetDistanceModulus(), reducer)
	if err != nil {
		return err
	}

	opts := dustmap.MapOptions(cfg, fmt.Sprintf("E(B-V) at mu = %.2f", result.Mu))
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "vmin":
			opts.VMin = vmin
		case "vmax":
			opts.VMax = vmax
		}
	})

	layers := []int{*layer}
	if *layer < 0 {
		layers = layers[:0]
		for i := 0; i < result.Layers.Rows; i++ {
			layers = append(layers, i)
		}
	}
	format := dustmap.FormatFromPath(*out)
	for _, i := range layers {
		img, err := result.Image(i)
		if err != nil {
			return err
		}
		path := *out
		if len(layers) > 1 {
			path = layerPath(*out, i)
		}
		err = render.WriteFile(fsutil.OSFileSystem{}, path, func(w io.Writer) error {
			return dustmap.WriteMap(w, format, img, result.Mu, i, opts)
		})
		if err != nil {
			return err
		}
		lo, hi := opts.ColorRange(img)
		fmt.Fprintf(stdout, "wrote %s (%dx%d, %s, colour range %.4g to %.4g, %.1f%% empty)\n",
			path, img.XSize, img.YSize, img.Bounds, lo, hi, 100*img.MissingFraction())
	}
	return nil
}

// layerPath inserts the layer number before the extension.
func layerPath(path string, layer int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), layer, ext)
}

func runProfile(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	var mf mapFlags
	mf.register(fs)
	muMin := fs.Float64("mu-min", 0, "Smallest distance modulus (default from config)")
	muMax := fs.Float64("mu-max", 0, "Largest distance modulus (default from config)")
	steps := fs.Int("steps", 0, "Number of distance moduli (default from config)")
	out := fs.String("out", "profile.png", "Output file; .png or .json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := mf.load(fs)
	if err != nil {
		return err
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "mu-min":
			cfg.ProfileMuMin = muMin
		case "mu-max":
			cfg.ProfileMuMax = muMax
		case "steps":
			cfg.ProfileSteps = steps
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := openStore(mf.storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	prof, err := dustmap.New(store, cfg).Profile(context.Background())
	if err != nil {
		return err
	}
	format := dustmap.FormatFromPath(*out)
	opts := render.PlotOptions{Title: "Extinction vs distance modulus"}
	err = render.WriteFile(fsutil.OSFileSystem{}, *out, func(w io.Writer) error {
		return dustmap.WriteProfile(w, format, prof, opts)
	})
	if err != nil {
		return err
	}
	last := len(prof.Mu) - 1
	fmt.Fprintf(stdout, "wrote %s (%d distance moduli, mean E(B-V) %.4g at mu = %.2f)\n",
		*out, len(prof.Mu), prof.Mean[last], prof.Mu[last])
	return nil
}
