package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dustmap/internal/dustmap"
	"github.com/banshee-data/dustmap/internal/extinction"
	"github.com/banshee-data/dustmap/internal/monitoring"
	"github.com/banshee-data/dustmap/internal/pixelstore"
	"github.com/banshee-data/dustmap/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

var (
	testPixels = []int64{100, 101, 102, 103}
	pngMagic   = []byte("\x89PNG\r\n\x1a\n")
)

func newTestMux(t *testing.T, store pixelstore.Store) (*http.ServeMux, *dustmap.Pipeline) {
	t.Helper()
	p := dustmap.New(store, nil)
	mux, err := NewServer(p, store).ServeMux()
	require.NoError(t, err)
	return mux, p
}

func serve(mux http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(method, target))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp["error"]
}

func TestListPixels_MemoryStore(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, testutil.PopulatedStore(t, testPixels, 32, true, 8, 3))

	rec := serve(mux, http.MethodGet, "/api/pixels")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp pixelsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.Count)
	assert.Equal(t, testPixels, resp.Pixels)
	assert.Empty(t, resp.Summaries)
}

func TestListPixels_SQLiteStore(t *testing.T) {
	t.Parallel()
	store, err := pixelstore.Open(filepath.Join(t.TempDir(), "pixels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	for _, id := range testPixels[:2] {
		require.NoError(t, store.PutPixel(context.Background(), pixelstore.Pixel{
			ID: id, Nside: 32, Nested: true, Samples: testutil.SyntheticSamples(id, 4, 2),
		}))
	}
	mux, _ := newTestMux(t, store)

	rec := serve(mux, http.MethodGet, "/api/pixels")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp pixelsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int64{100, 101}, resp.Pixels)
	require.Len(t, resp.Summaries, 2)
	assert.Equal(t, int64(32), resp.Summaries[0].Nside)
	assert.Equal(t, 4, resp.Summaries[0].Samples)
	assert.Equal(t, 5, resp.Summaries[0].Width)

	debug := serve(mux, http.MethodGet, "/debug/")
	testutil.AssertStatusCode(t, debug.Code, http.StatusOK)
	assert.Contains(t, debug.Body.String(), "tailsql")
}

func TestListPixels_EmptyStoreReturnsEmptyList(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, pixelstore.NewMemoryStore())

	rec := serve(mux, http.MethodGet, "/api/pixels")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"pixels":[]`)
}

func TestShowMap_Formats(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, testutil.PopulatedStore(t, testPixels, 32, true, 8, 3))

	t.Run("png", func(t *testing.T) {
		t.Parallel()
		rec := serve(mux, http.MethodGet, "/api/map?mu=9&format=png")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngMagic))
	})

	t.Run("html", func(t *testing.T) {
		t.Parallel()
		rec := serve(mux, http.MethodGet, "/api/map?mu=9&format=html&vmin=0&vmax=1")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
		assert.Contains(t, rec.Body.String(), "echarts")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		rec := serve(mux, http.MethodGet, "/api/map?mu=9&format=json&reducer=percentile&layer=2")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

		var doc dustmap.ImageDocument
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
		assert.Equal(t, 9.0, doc.Mu)
		assert.Equal(t, 2, doc.Layer)
		assert.Len(t, doc.Values, doc.XSize*doc.YSize)
	})

	t.Run("default mu from config", func(t *testing.T) {
		t.Parallel()
		rec := serve(mux, http.MethodGet, "/api/map?format=json")
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

		var doc dustmap.ImageDocument
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
		assert.Equal(t, 9.0, doc.Mu)
	})
}

func TestShowMap_BadRequests(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, testutil.PopulatedStore(t, testPixels, 32, true, 8, 3))

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"bad mu", "/api/map?mu=far", "invalid mu"},
		{"infinite mu", "/api/map?mu=inf", "mu must be finite"},
		{"bad format", "/api/map?format=tiff", "unknown format"},
		{"bad layer", "/api/map?layer=x", "invalid layer"},
		{"layer out of range", "/api/map?layer=1", "out of range"},
		{"bad reducer", "/api/map?reducer=mode", "mode"},
		{"bad vmax", "/api/map?vmax=hot", "invalid vmax"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(mux, http.MethodGet, tt.target)
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
			assert.Contains(t, decodeError(t, rec), tt.want)
		})
	}
}

func TestShowMap_EmptyStoreIsNotFound(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, pixelstore.NewMemoryStore())

	rec := serve(mux, http.MethodGet, "/api/map?mu=9")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestShowProfile(t *testing.T) {
	t.Parallel()
	mux, p := newTestMux(t, testutil.PopulatedStore(t, testPixels, 32, true, 8, 3))

	rec := serve(mux, http.MethodGet, "/api/profile?format=json")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var prof extinction.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&prof))
	assert.Len(t, prof.Mu, p.Config().GetProfileSteps())
	assert.Len(t, prof.Bands, len(extinction.DefaultBands))

	rec = serve(mux, http.MethodGet, "/api/profile")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), pngMagic))

	rec = serve(mux, http.MethodGet, "/api/profile?format=html")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestShowConfig(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, pixelstore.NewMemoryStore())

	rec := serve(mux, http.MethodGet, "/api/config")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "mean", resp["reducer"])
	assert.Equal(t, 9.0, resp["distance_modulus"])
}

type flakyStore struct {
	*pixelstore.MemoryStore
	fail bool
}

func (f *flakyStore) ListPixels(ctx context.Context) ([]int64, error) {
	if f.fail {
		return nil, errors.New("disk on fire")
	}
	return f.MemoryStore.ListPixels(ctx)
}

func TestReload(t *testing.T) {
	t.Parallel()
	store := &flakyStore{MemoryStore: testutil.PopulatedStore(t, testPixels, 32, true, 8, 3)}
	mux, _ := newTestMux(t, store)

	testutil.AssertStatusCode(t, serve(mux, http.MethodGet, "/api/map?mu=9&format=json").Code, http.StatusOK)

	// The cached model keeps serving until a reload.
	store.fail = true
	testutil.AssertStatusCode(t, serve(mux, http.MethodGet, "/api/map?mu=9&format=json").Code, http.StatusOK)

	testutil.AssertStatusCode(t, serve(mux, http.MethodGet, "/api/reload").Code, http.StatusMethodNotAllowed)
	testutil.AssertStatusCode(t, serve(mux, http.MethodPost, "/api/reload").Code, http.StatusOK)

	rec := serve(mux, http.MethodGet, "/api/map?mu=9&format=json")
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
	assert.Contains(t, decodeError(t, rec), "disk on fire")
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	mux, _ := newTestMux(t, pixelstore.NewMemoryStore())

	for _, path := range []string{"/api/pixels", "/api/map", "/api/profile", "/api/config"} {
		rec := serve(mux, http.MethodPost, path)
		testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := serve(h, http.MethodGet, "/api/pixels?x=1")

	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	require.Len(t, lines, 1)
	assert.Equal(t, colorBoldRed+"418"+colorReset, statusCodeColor(http.StatusTeapot))
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(http.StatusOK))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(http.StatusNotModified))
}
