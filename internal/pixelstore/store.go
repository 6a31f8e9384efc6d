package pixelstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/dustmap/internal/tensor"
)

// Attribute names every pixel group carries.
const (
	AttrNside        = "nside"
	AttrNested       = "nested"
	AttrHealpixIndex = "healpix_index"
)

var (
	// ErrPixelNotFound is returned when no group exists for a pixel ID.
	ErrPixelNotFound = errors.New("pixel not found")
	// ErrAttributeNotFound is returned for unknown attribute names.
	ErrAttributeNotFound = errors.New("attribute not found")
)

// Store is the read interface consumed by the cloud decoder.
type Store interface {
	// ListPixels returns the IDs of all pixel groups in the store.
	ListPixels(ctx context.Context) ([]int64, error)
	// ReadPixelSamples returns the raw sample tensor for a pixel.
	ReadPixelSamples(ctx context.Context, id int64) (*tensor.Tensor3, error)
	// ReadAttribute returns a named scalar attribute of a pixel.
	ReadAttribute(ctx context.Context, id int64, name string) (float64, error)
}

// Writer persists pixel groups. Writing an existing pixel replaces it.
type Writer interface {
	PutPixel(ctx context.Context, p Pixel) error
}

// Pixel is one stored group.
type Pixel struct {
	ID      int64
	Nside   int64
	Nested  bool
	Samples *tensor.Tensor3
	// Attributes holds any extra scalars beyond nside/nested/healpix_index.
	Attributes map[string]float64
}

// Validate checks that the pixel can be stored.
func (p Pixel) Validate() error {
	if p.ID < 0 {
		return fmt.Errorf("pixel id must be non-negative, got %d", p.ID)
	}
	if p.Nside < 1 {
		return fmt.Errorf("pixel %d: nside must be positive, got %d", p.ID, p.Nside)
	}
	if p.Samples == nil {
		return fmt.Errorf("pixel %d: missing samples", p.ID)
	}
	if n := p.Samples.Shape[0] * p.Samples.Shape[1] * p.Samples.Shape[2]; n != len(p.Samples.Data) {
		return fmt.Errorf("pixel %d: samples shape %v does not match %d values", p.ID, p.Samples.Shape, len(p.Samples.Data))
	}
	for k := range p.Attributes {
		switch k {
		case AttrNside, AttrNested, AttrHealpixIndex:
			return fmt.Errorf("pixel %d: attribute %q is reserved", p.ID, k)
		}
	}
	return nil
}

// attribute resolves a built-in or extra attribute.
func (p Pixel) attribute(name string) (float64, error) {
	switch name {
	case AttrNside:
		return float64(p.Nside), nil
	case AttrNested:
		if p.Nested {
			return 1, nil
		}
		return 0, nil
	case AttrHealpixIndex:
		return float64(p.ID), nil
	}
	if v, ok := p.Attributes[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("pixel %d: %w: %q", p.ID, ErrAttributeNotFound, name)
}

// GroupName is the stored name of a pixel's group.
func GroupName(id int64) string {
	return fmt.Sprintf("pixel %d", id)
}

// ParseGroupName extracts the pixel ID from a group name. Names whose second
// whitespace-separated field is not an integer are not pixel groups.
func ParseGroupName(name string) (int64, bool) {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ReadNside reads the nside and nested attributes of a pixel.
func ReadNside(ctx context.Context, s Store, id int64) (nside int64, nested bool, err error) {
	n, err := s.ReadAttribute(ctx, id, AttrNside)
	if err != nil {
		return 0, false, err
	}
	f, err := s.ReadAttribute(ctx, id, AttrNested)
	if err != nil {
		return 0, false, err
	}
	return int64(n), f != 0, nil
}
