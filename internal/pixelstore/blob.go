package pixelstore

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/dustmap/internal/tensor"
)

// samplesBlob is the gob payload stored for each pixel group.
type samplesBlob struct {
	Shape [3]int
	Data  []float64
}

// encodeSamples compresses a sample tensor using gob encoding and gzip.
func encodeSamples(t *tensor.Tensor3) ([]byte, error) {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(samplesBlob{Shape: t.Shape, Data: t.Data}); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeSamples reverses encodeSamples.
func decodeSamples(blob []byte) (*tensor.Tensor3, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty samples blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var b samplesBlob
	if err := gob.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	return tensor.FromData(b.Shape, b.Data)
}
