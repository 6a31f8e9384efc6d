package bayestar

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dustmap/internal/fsutil"
	"github.com/banshee-data/dustmap/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func sampleRequest(t *testing.T) *Request {
	t.Helper()
	mag := []Photometry{
		{21.047907, 19.536139, 18.257175, 17.624685, 17.33963},
		{20.1, 19.2, 18.3, 17.4, 17.5},
	}
	errs := []Photometry{
		{0.059, 0.028, float32(math.Inf(1)), 0.022, 0.026},
		{0.02, 0.02, 0.02, 0.1, 0.1},
	}
	req, err := NewRequest(mag, errs, []Photometry{{24.5, 24.5, 24.5, 24.5, 24.5}}, 185.83, 185.82, 2)
	require.NoError(t, err)
	return req
}

func TestNewRequest(t *testing.T) {
	t.Parallel()
	req := sampleRequest(t)

	want := PixelInfo{HealpixIndex: 1, Nested: true, Nside: 512, L: 185.83, B: 185.82}
	assert.Empty(t, cmp.Diff(want, req.Pixel))
	require.Len(t, req.Stars, 2)
	for i, s := range req.Stars {
		assert.Equal(t, uint64(i), s.ObjID)
		assert.Equal(t, [NBands]uint32{1, 1, 1, 1, 1}, s.NDet)
		assert.Equal(t, float32(2), s.EBV)
		assert.Equal(t, Photometry{24.5, 24.5, 24.5, 24.5, 24.5}, s.MagLimit)
		assert.Equal(t, 185.83, s.L)
	}
	assert.True(t, math.IsInf(float64(req.Stars[0].Err[2]), 1))

	_, err := NewRequest(make([]Photometry, 2), make([]Photometry, 1), make([]Photometry, 1), 0, 0, 0)
	assert.Error(t, err)
	_, err = NewRequest(make([]Photometry, 3), make([]Photometry, 3), make([]Photometry, 2), 0, 0, 0)
	assert.Error(t, err)

	perStar, err := NewRequest(make([]Photometry, 2), make([]Photometry, 2), []Photometry{{1}, {2}}, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float32(2), perStar.Stars[1].MagLimit[0])
}

func TestAddTrueParams(t *testing.T) {
	t.Parallel()
	req := sampleRequest(t)
	require.NoError(t, req.AddTrueParams([]float32{10, 11}, []float32{0.1, 0.2}, []float32{4, 5}, []float32{-1, -0.5}))
	require.Len(t, req.Parameters, 2)
	assert.Equal(t, TrueParams{ObjID: 1, L: 185.83, B: 185.82, DM: 11, EBV: 0.2, Mr: 5, FeH: -0.5}, req.Parameters[1])

	assert.Error(t, req.AddTrueParams([]float32{1}, nil, nil, nil))
}

func TestPhotometryJSON_NonFinite(t *testing.T) {
	t.Parallel()
	p := Photometry{1.5, float32(math.Inf(1)), float32(math.Inf(-1)), float32(math.NaN()), 0}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `[1.5,"inf","-inf","nan",0]`, string(data))

	var back Photometry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, float32(1.5), back[0])
	assert.True(t, math.IsInf(float64(back[1]), 1))
	assert.True(t, math.IsInf(float64(back[2]), -1))
	assert.True(t, math.IsNaN(float64(back[3])))

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3,4,"x"]`), &back))
}

func TestFloatJSON(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal([]Float{Float(math.Inf(-1)), 2.25})
	require.NoError(t, err)
	assert.Equal(t, `["-inf",2.25]`, string(data))

	var back []Float
	require.NoError(t, json.Unmarshal([]byte(`["-Inf", 3, "NaN"]`), &back))
	assert.True(t, math.IsInf(float64(back[0]), -1))
	assert.Equal(t, Float(3), back[1])
	assert.True(t, math.IsNaN(float64(back[2])))
}

// fakeOutput builds a program output for req: a 3x2 surface per star, a
// three-step chain and ln(Z) of -inf for stars with an undetected band.
func fakeOutput(req *Request) output {
	var o output
	o.PDFs.Min = [2]float64{4, 0}
	o.PDFs.Max = [2]float64{19, 5}
	for i, s := range req.Stars {
		o.PDFs.Surfaces = append(o.PDFs.Surfaces, [][]float64{{0, 1}, {2, 3}, {4, float64(i)}})
		o.Chains.Converged = append(o.Chains.Converged, i%2 == 0)
		lnZ := Float(-10 * float64(i+1))
		for _, e := range s.Err {
			if math.IsInf(float64(e), 1) {
				lnZ = Float(math.Inf(-1))
			}
		}
		o.Chains.LnZ = append(o.Chains.LnZ, lnZ)
		o.Chains.Samples = append(o.Chains.Samples, [][]Float{
			{-1, 0.5, 10, 4, -1},
			{-2, 0.7, 11, 4.5, -0.5},
			{Float(math.Inf(-1)), 0.9, 12, 5, 0},
		})
	}
	return o
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	t.Parallel()
	req := sampleRequest(t)
	for _, gz := range []bool{false, true} {
		codec := JSONCodec{Gzip: gz}
		var in bytes.Buffer
		require.NoError(t, codec.EncodeRequest(&in, req))
		assert.Equal(t, gz, bytes.HasPrefix(in.Bytes(), gzipMagic))

		var back Request
		require.NoError(t, decodeMaybeGzip(&in, &back))
		assert.Empty(t, cmp.Diff(req.Pixel, back.Pixel))
		require.Len(t, back.Stars, 2)
		assert.True(t, math.IsInf(float64(back.Stars[0].Err[2]), 1))
		assert.Equal(t, req.Stars[1].Mag, back.Stars[1].Mag)

		var o bytes.Buffer
		require.NoError(t, json.NewEncoder(&o).Encode(fakeOutput(req)))
		res, err := codec.DecodeResult(&o)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Stars())
		assert.Equal(t, [4]float64{4, 19, 0, 5}, res.Bounds)
		assert.Equal(t, []float64{0.5, 10, 4, -1}, res.Chains[0][0])
		assert.Equal(t, -1.0, res.LnP[0][0])
		assert.True(t, math.IsInf(res.LnP[1][2], -1))
		assert.True(t, math.IsInf(res.LnZ[0], -1))
		assert.Equal(t, -20.0, res.LnZ[1])
	}
}

func TestDecodeResult_Gzip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	require.NoError(t, json.NewEncoder(gz).Encode(fakeOutput(sampleRequest(t))))
	require.NoError(t, gz.Close())

	res, err := JSONCodec{}.DecodeResult(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stars())
}

// decodeMaybeGzip reads a request written by either codec setting.
func decodeMaybeGzip(r io.Reader, req *Request) error {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, err := br.Peek(2); err == nil && bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return err
		}
		defer gz.Close()
		src = gz
	}
	return json.NewDecoder(src).Decode(req)
}

func TestDecodeResult_Errors(t *testing.T) {
	t.Parallel()
	_, err := JSONCodec{}.DecodeResult(bytes.NewBufferString("{"))
	assert.Error(t, err)

	o := fakeOutput(sampleRequest(t))
	o.Chains.Converged = o.Chains.Converged[:1]
	data, err := json.Marshal(o)
	require.NoError(t, err)
	_, err = JSONCodec{}.DecodeResult(bytes.NewReader(data))
	assert.Error(t, err)

	o = fakeOutput(sampleRequest(t))
	o.Chains.Samples[0][1] = []Float{1}
	data, err = json.Marshal(o)
	require.NoError(t, err)
	_, err = JSONCodec{}.DecodeResult(bytes.NewReader(data))
	assert.Error(t, err)
}

func TestSummarizeChain(t *testing.T) {
	t.Parallel()
	chain := [][]float64{{1, 10}, {2, 10}, {3, 10}, {4, 10}}
	mean, std, err := SummarizeChain(chain, ParamEBV)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), std, 1e-12)

	mean, std, err = SummarizeChain(chain, ParamDM)
	require.NoError(t, err)
	assert.Equal(t, 10.0, mean)
	assert.Equal(t, 0.0, std)

	_, _, err = SummarizeChain(nil, ParamEBV)
	assert.Error(t, err)
	_, _, err = SummarizeChain(chain, ParamFeH)
	assert.Error(t, err)
}

// helperRunner re-executes the test binary as a stand-in for the program.
func helperRunner(t *testing.T, mode string) *ExecRunner {
	r := NewExecRunner(os.Args[0])
	r.BaseArgs = []string{"-test.run=^TestHelperProcess$", "--"}
	r.Env = []string{"BAYESTAR_HELPER_MODE=" + mode}
	r.TempDir = t.TempDir()
	return r
}

func TestExecRunner_Success(t *testing.T) {
	t.Parallel()
	r := helperRunner(t, "ok")
	res, err := r.Run(context.Background(), sampleRequest(t))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Stars())
	assert.Equal(t, []bool{true, false}, res.Converged)
	assert.True(t, math.IsInf(res.LnZ[0], -1), "undetected band survives the round trip")
	assert.Contains(t, res.Log, "processed 2 stars")
	assert.Contains(t, res.Log, "--star-steps 350")

	mean, _, err := SummarizeChain(res.Chains[0], ParamEBV)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, mean, 1e-12)

	entries, err := os.ReadDir(r.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "exchange files are removed")
}

func TestExecRunner_KeepFiles(t *testing.T) {
	t.Parallel()
	r := helperRunner(t, "ok")
	r.KeepFiles = true
	r.Codec = JSONCodec{Gzip: true}
	_, err := r.Run(context.Background(), sampleRequest(t))
	require.NoError(t, err)

	in, err := filepath.Glob(filepath.Join(r.TempDir, "bayestar-*.in.json"))
	require.NoError(t, err)
	require.Len(t, in, 1)
	data, err := os.ReadFile(in[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, gzipMagic))
}

func TestExecRunner_Failure(t *testing.T) {
	t.Parallel()
	res, err := helperRunner(t, "fail").Run(context.Background(), sampleRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunFailed))
	require.NotNil(t, res)
	assert.Contains(t, res.Log, "sampler diverged")
}

func TestExecRunner_NoOutput(t *testing.T) {
	t.Parallel()
	_, err := helperRunner(t, "silent").Run(context.Background(), sampleRequest(t))
	assert.True(t, errors.Is(err, ErrRunFailed))
}

func TestExecRunner_NoBinary(t *testing.T) {
	t.Parallel()
	_, err := (&ExecRunner{}).Run(context.Background(), sampleRequest(t))
	assert.True(t, errors.Is(err, ErrRunFailed))
}

func TestExecRunner_InputWriteFailure(t *testing.T) {
	t.Parallel()
	r := helperRunner(t, "ok")
	r.FS = failingCreateFS{fsutil.NewMemoryFileSystem()}
	_, err := r.Run(context.Background(), sampleRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input file")
}

type failingCreateFS struct {
	*fsutil.MemoryFileSystem
}

func (failingCreateFS) Create(string) (io.WriteCloser, error) {
	return nil, errors.New("read-only")
}

// TestHelperProcess is not a real test. It plays the inference program for
// the ExecRunner tests.
func TestHelperProcess(t *testing.T) {
	mode := os.Getenv("BAYESTAR_HELPER_MODE")
	if mode == "" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: bayestar IN OUT [flags]")
		os.Exit(2)
	}
	inPath, outPath := args[0], args[1]

	switch mode {
	case "fail":
		fmt.Fprintln(os.Stderr, "sampler diverged")
		os.Exit(3)
	case "silent":
		os.Exit(0)
	}

	f, err := os.Open(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var req Request
	if err := decodeMaybeGzip(f, &req); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	f.Close()

	data, err := json.Marshal(fakeOutput(&req))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("processed %d stars with %v\n", len(req.Stars), args[2:])
	os.Exit(0)
}
