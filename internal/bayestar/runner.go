package bayestar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/banshee-data/dustmap/internal/fsutil"
	"github.com/banshee-data/dustmap/internal/monitoring"
)

// ErrRunFailed is returned when the program exits unsuccessfully.
var ErrRunFailed = errors.New("bayestar run failed")

// DefaultArgs are the sampler flags passed after the input and output paths.
var DefaultArgs = []string{
	"--save-surfs",
	"--star-steps", "350",
	"--star-samplers", "50",
	"--star-p-replacement", "0.2",
	"--clouds", "0",
	"--regions", "0",
}

// Runner runs the inference program on a request.
type Runner interface {
	Run(ctx context.Context, req *Request) (*Result, error)
}

// ExecRunner runs the program as a subprocess. The command line is
// Binary, BaseArgs, the input path, the output path, then Args.
type ExecRunner struct {
	Binary   string
	BaseArgs []string
	Args     []string
	// Env is appended to the current environment.
	Env []string
	// TempDir holds the exchange files; empty uses os.TempDir().
	TempDir string
	FS      fsutil.FileSystem
	Codec   Codec
	// KeepFiles leaves the exchange files in place for debugging.
	KeepFiles bool
}

// NewExecRunner returns a runner for binary with DefaultArgs.
func NewExecRunner(binary string) *ExecRunner {
	return &ExecRunner{
		Binary: binary,
		Args:   append([]string(nil), DefaultArgs...),
		FS:     fsutil.OSFileSystem{},
		Codec:  JSONCodec{},
	}
}

func (r *ExecRunner) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

func (r *ExecRunner) codec() Codec {
	if r.Codec == nil {
		return JSONCodec{}
	}
	return r.Codec
}

// Run writes req, runs the program and decodes its output. On failure the
// returned Result, when non-nil, still carries the captured log.
func (r *ExecRunner) Run(ctx context.Context, req *Request) (*Result, error) {
	if r.Binary == "" {
		return nil, fmt.Errorf("%w: no binary configured", ErrRunFailed)
	}
	fsys := r.fs()
	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	runID := uuid.NewString()
	inPath := filepath.Join(dir, "bayestar-"+runID+".in.json")
	outPath := filepath.Join(dir, "bayestar-"+runID+".out.json")
	if !r.KeepFiles {
		defer func() {
			_ = fsys.Remove(inPath)
			_ = fsys.Remove(outPath)
		}()
	}

	if err := r.writeInput(fsys, inPath, req); err != nil {
		return nil, err
	}

	args := make([]string, 0, len(r.BaseArgs)+2+len(r.Args))
	args = append(args, r.BaseArgs...)
	args = append(args, inPath, outPath)
	args = append(args, r.Args...)

	var logBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdout = &logBuf
	cmd.Stderr = &logBuf
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	monitoring.Logf("[bayestar] run %s: %d stars", runID, len(req.Stars))
	done := monitoring.Timed(fmt.Sprintf("[bayestar] run %s", runID))
	runErr := cmd.Run()
	done()
	if runErr != nil {
		return &Result{Log: logBuf.String()}, fmt.Errorf("%w: %v, output: %s", ErrRunFailed, runErr, logBuf.String())
	}

	f, err := fsys.Open(outPath)
	if err != nil {
		return &Result{Log: logBuf.String()}, fmt.Errorf("%w: no output file: %v", ErrRunFailed, err)
	}
	defer f.Close()
	res, err := r.codec().DecodeResult(f)
	if err != nil {
		return &Result{Log: logBuf.String()}, err
	}
	res.Log = logBuf.String()
	return res, nil
}

func (r *ExecRunner) writeInput(fsys fsutil.FileSystem, path string, req *Request) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create input file: %w", err)
	}
	if err := r.codec().EncodeRequest(f, req); err != nil {
		f.Close()
		return fmt.Errorf("failed to write input file: %w", err)
	}
	return f.Close()
}
