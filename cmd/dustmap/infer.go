package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/dustmap/internal/bayestar"
	"github.com/banshee-data/dustmap/internal/fsutil"
	"github.com/banshee-data/dustmap/internal/render"
)

// starTable is the input of the infer command: the photometry of every star
// along one line of sight and, for simulated stars, their true parameters.
type starTable struct {
	L        float64               `json:"l"`
	B        float64               `json:"b"`
	EBVGuess float32               `json:"ebv_guess"`
	Mag      []bayestar.Photometry `json:"mag"`
	Err      []bayestar.Photometry `json:"err"`
	MagLimit []bayestar.Photometry `json:"maglimit"`
	Truth    *struct {
		DM  []float32 `json:"dm"`
		EBV []float32 `json:"ebv"`
		Mr  []float32 `json:"mr"`
		FeH []float32 `json:"feh"`
	} `json:"truth,omitempty"`
}

func readStarTable(fsys fsutil.FileSystem, path string) (*bayestar.Request, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read star table: %w", err)
	}
	var tbl starTable
	if err := json.Unmarshal(data, &tbl); err != nil {
		return nil, fmt.Errorf("failed to parse star table %s: %w", path, err)
	}
	req, err := bayestar.NewRequest(tbl.Mag, tbl.Err, tbl.MagLimit, tbl.L, tbl.B, tbl.EBVGuess)
	if err != nil {
		return nil, err
	}
	if t := tbl.Truth; t != nil {
		if err := req.AddTrueParams(t.DM, t.EBV, t.Mr, t.FeH); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func runInfer(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("infer", flag.ContinueOnError)
	configPath := fs.String("config", "", "Map configuration JSON supplying bayestar_binary and bayestar_args")
	binary := fs.String("binary", "", "Inference program (default from config)")
	tmpDir := fs.String("tmp", "", "Directory for exchange files (default system temp)")
	keep := fs.Bool("keep", false, "Keep the exchange files")
	gz := fs.Bool("gzip", false, "Gzip the input file")
	surfaces := fs.String("surfaces", "", "Directory for per-star probability surface PNGs")
	resultPath := fs.String("result", "", "Write the decoded result as JSON")
	timeout := fs.Duration("timeout", 0, "Abort the run after this long (0 waits indefinitely)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: dustmap infer [options] STARS.json")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *binary == "" {
		*binary = cfg.GetBayestarBinary()
	}

	osfs := fsutil.OSFileSystem{}
	req, err := readStarTable(osfs, fs.Arg(0))
	if err != nil {
		return err
	}

	runner := bayestar.NewExecRunner(*binary)
	runner.Args = cfg.GetBayestarArgs()
	runner.TempDir = *tmpDir
	runner.KeepFiles = *keep
	runner.Codec = bayestar.JSONCodec{Gzip: *gz}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "inferred %d stars at (l, b) = (%.3f, %.3f) in %s\n",
		res.Stars(), req.Pixel.L, req.Pixel.B, time.Since(start).Round(time.Millisecond))
	return reportResult(osfs, stdout, res, *surfaces, *resultPath)
}

// reportResult prints chain summaries and writes the optional outputs.
func reportResult(fsys fsutil.FileSystem, stdout io.Writer, res *bayestar.Result, surfaceDir, resultPath string) error {
	for i, chain := range res.Chains {
		mean, std, err := bayestar.SummarizeChain(chain, bayestar.ParamEBV)
		if err != nil {
			fmt.Fprintf(stdout, "star %d: %v\n", i, err)
			continue
		}
		fmt.Fprintf(stdout, "star %d: E(B-V) = %.3f +- %.3f (converged: %t, ln Z = %.2f)\n",
			i, mean, std, res.Converged[i], res.LnZ[i])
	}

	if surfaceDir != "" {
		opts := render.PlotOptions{}
		for i, surface := range res.Surfaces {
			if len(surface) == 0 || len(surface[0]) == 0 {
				continue
			}
			opts.Title = fmt.Sprintf("Star %d", i)
			path := filepath.Join(surfaceDir, fmt.Sprintf("star-%03d.png", i))
			err := render.WriteFile(fsys, path, func(w io.Writer) error {
				return render.SurfacePNG(w, surface, render.SurfaceBounds(res.Bounds), opts)
			})
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(stdout, "wrote %d surfaces to %s\n", len(res.Surfaces), surfaceDir)
	}

	if resultPath != "" {
		data, err := json.MarshalIndent(newResultDocument(res), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		if err := fsys.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return nil
}

// resultDocument is the JSON form of a result. Evidences and chain
// probabilities may be infinite, so they go through bayestar.Float.
type resultDocument struct {
	*bayestar.Result
	LnZ []bayestar.Float   `json:"ln_z"`
	LnP [][]bayestar.Float `json:"ln_p"`
}

func newResultDocument(res *bayestar.Result) resultDocument {
	doc := resultDocument{Result: res, LnZ: toFloats(res.LnZ), LnP: make([][]bayestar.Float, len(res.LnP))}
	for i, row := range res.LnP {
		doc.LnP[i] = toFloats(row)
	}
	return doc
}

func toFloats(v []float64) []bayestar.Float {
	out := make([]bayestar.Float, len(v))
	for i, x := range v {
		out[i] = bayestar.Float(x)
	}
	return out
}
