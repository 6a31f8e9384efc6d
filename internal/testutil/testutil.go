// Package testutil provides shared test utilities and fixtures.
//
// The fixtures build synthetic cloud-model pixels with known cumulative
// anchors and log-extinctions so decoder, evaluator and rasterizer tests can
// check results against closed-form expectations.
package testutil

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/dustmap/internal/pixelstore"
	"github.com/banshee-data/dustmap/internal/tensor"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request from a loopback address.
func NewTestRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

// CloudRow builds one raw sample row (reserved entry, distance-modulus
// increments, log-extinction increments) from cumulative anchors and
// per-cloud extinctions. Anchors must be non-decreasing.
func CloudRow(anchors, ebv []float64) []float64 {
	if len(anchors) != len(ebv) {
		panic("testutil: anchors and extinctions differ in length")
	}
	n := len(anchors)
	row := make([]float64, 2*n+1)
	prev := 0.0
	for i, a := range anchors {
		row[1+i] = a - prev
		prev = a
		row[1+n+i] = math.Log(ebv[i])
	}
	return row
}

// SyntheticSamples returns a (1, nSamples, 2*nClouds+1) tensor whose sample s
// places cloud c at distance modulus 4 + c + 0.1*s with extinction
// 0.1*(c+1) scaled by (1 + 0.01*id). The values are deterministic so tests
// can recompute expectations.
func SyntheticSamples(id int64, nSamples, nClouds int) *tensor.Tensor3 {
	t := tensor.New(1, nSamples, 2*nClouds+1)
	for s := 0; s < nSamples; s++ {
		anchors, ebv := SyntheticCloud(id, s, nClouds)
		copy(t.Row(0, s), CloudRow(anchors, ebv))
	}
	return t
}

// SyntheticCloud returns the anchors and extinctions SyntheticSamples uses
// for one sample.
func SyntheticCloud(id int64, s, nClouds int) (anchors, ebv []float64) {
	anchors = make([]float64, nClouds)
	ebv = make([]float64, nClouds)
	scale := 1 + 0.01*float64(id)
	for c := 0; c < nClouds; c++ {
		anchors[c] = 4 + float64(c) + 0.1*float64(s)
		ebv[c] = 0.1 * float64(c+1) * scale
	}
	return anchors, ebv
}

// PopulatedStore returns a MemoryStore holding synthetic pixels.
func PopulatedStore(t testing.TB, ids []int64, nside int64, nested bool, nSamples, nClouds int) *pixelstore.MemoryStore {
	t.Helper()
	s := pixelstore.NewMemoryStore()
	for _, id := range ids {
		err := s.PutPixel(context.Background(), pixelstore.Pixel{
			ID:      id,
			Nside:   nside,
			Nested:  nested,
			Samples: SyntheticSamples(id, nSamples, nClouds),
		})
		if err != nil {
			t.Fatalf("failed to store pixel %d: %v", id, err)
		}
	}
	return s
}
