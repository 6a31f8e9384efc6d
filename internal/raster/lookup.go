package raster

import (
	"fmt"
	"strings"
)

// LookupMode selects how pixel IDs are mapped to value positions.
type LookupMode int

const (
	// LookupAuto uses a dense table when the pixelization has at most
	// DenseLimit pixels and a hash map otherwise.
	LookupAuto LookupMode = iota
	// LookupDense allocates one int32 slot per pixel on the sphere.
	LookupDense
	// LookupHash keys a map by the supplied pixel IDs only.
	LookupHash
)

// DefaultDenseLimit is the largest pixelization (12*2048^2) for which
// LookupAuto allocates a dense table.
const DefaultDenseLimit = 12 * 2048 * 2048

func (m LookupMode) String() string {
	switch m {
	case LookupAuto:
		return "auto"
	case LookupDense:
		return "dense"
	case LookupHash:
		return "hash"
	}
	return fmt.Sprintf("LookupMode(%d)", int(m))
}

// ParseLookupMode parses "auto", "dense" or "hash".
func ParseLookupMode(s string) (LookupMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return LookupAuto, nil
	case "dense":
		return LookupDense, nil
	case "hash":
		return LookupHash, nil
	}
	return 0, fmt.Errorf("unknown lookup mode %q (expected auto, dense or hash)", s)
}

const missing = -1

// positionLookup maps a pixel ID to its position in the input, or missing.
type positionLookup interface {
	position(pix int64) int32
}

type denseLookup []int32

func newDenseLookup(npix int64, ids []int64) denseLookup {
	table := make(denseLookup, npix)
	for i := range table {
		table[i] = missing
	}
	for i, id := range ids {
		table[id] = int32(i)
	}
	return table
}

func (d denseLookup) position(pix int64) int32 {
	if pix < 0 || pix >= int64(len(d)) {
		return missing
	}
	return d[pix]
}

type hashLookup map[int64]int32

func newHashLookup(ids []int64) hashLookup {
	h := make(hashLookup, len(ids))
	for i, id := range ids {
		h[id] = int32(i)
	}
	return h
}

func (h hashLookup) position(pix int64) int32 {
	if i, ok := h[pix]; ok {
		return i
	}
	return missing
}
