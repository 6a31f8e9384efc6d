package pixelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/banshee-data/dustmap/internal/monitoring"
	"github.com/banshee-data/dustmap/internal/tensor"
)

// Document is the JSON interchange form accepted by ImportJSON.
type Document struct {
	Nside  int64           `json:"nside,omitempty"`
	Nested *bool           `json:"nested,omitempty"`
	Pixels []DocumentPixel `json:"pixels"`
}

// DocumentPixel is one pixel group. Clouds has shape
// (records, samples, 2*nClouds+1).
type DocumentPixel struct {
	ID         int64              `json:"id"`
	Clouds     [][][]float64      `json:"clouds"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// BatchImporter is implemented by writers that can store a whole import
// atomically and keep an import log.
type BatchImporter interface {
	ImportBatch(ctx context.Context, batchID, source string, pixels []Pixel) error
}

// ImportOptions names the import source and supplies the pixelization for
// documents that omit it.
type ImportOptions struct {
	Source string
	Nside  int64
	Nested bool
}

// ImportSummary reports the outcome of ImportJSON.
type ImportSummary struct {
	BatchID string `json:"batch_id"`
	Source  string `json:"source"`
	Pixels  int    `json:"pixels"`
}

// ImportJSON decodes a Document from r and writes every pixel to w. Every
// entry is checked before the first write, and writers implementing
// BatchImporter receive the whole document in one call.
func ImportJSON(ctx context.Context, r io.Reader, opts ImportOptions, w Writer) (*ImportSummary, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse import document: %w", err)
	}
	nside, nested := doc.Nside, opts.Nested
	if nside == 0 {
		nside = opts.Nside
	}
	if doc.Nested != nil {
		nested = *doc.Nested
	}
	if nside < 1 {
		return nil, fmt.Errorf("import document: nside must be positive, got %d", nside)
	}

	pixels := make([]Pixel, len(doc.Pixels))
	for i, dp := range doc.Pixels {
		t, err := nestedToTensor(dp.Clouds)
		if err != nil {
			return nil, fmt.Errorf("pixel %d (entry %d): %w", dp.ID, i, err)
		}
		pixels[i] = Pixel{
			ID:         dp.ID,
			Nside:      nside,
			Nested:     nested,
			Samples:    t,
			Attributes: dp.Attributes,
		}
		if err := pixels[i].Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	source := opts.Source
	summary := &ImportSummary{BatchID: uuid.NewString(), Source: source, Pixels: len(pixels)}
	if bi, ok := w.(BatchImporter); ok {
		if err := bi.ImportBatch(ctx, summary.BatchID, source, pixels); err != nil {
			return nil, err
		}
	} else {
		for _, p := range pixels {
			if err := w.PutPixel(ctx, p); err != nil {
				return nil, err
			}
		}
	}
	monitoring.Logf("[pixelstore] imported %d pixels from %s (batch %s)", summary.Pixels, source, summary.BatchID)
	return summary, nil
}

func nestedToTensor(v [][][]float64) (*tensor.Tensor3, error) {
	d0 := len(v)
	if d0 == 0 {
		return nil, fmt.Errorf("clouds array is empty")
	}
	d1 := len(v[0])
	d2 := 0
	if d1 > 0 {
		d2 = len(v[0][0])
	}
	t := tensor.New(d0, d1, d2)
	for i, plane := range v {
		if len(plane) != d1 {
			return nil, fmt.Errorf("ragged clouds array: record %d has %d samples, want %d", i, len(plane), d1)
		}
		for j, row := range plane {
			if len(row) != d2 {
				return nil, fmt.Errorf("ragged clouds array: record %d sample %d has width %d, want %d", i, j, len(row), d2)
			}
			copy(t.Row(i, j), row)
		}
	}
	return t, nil
}
