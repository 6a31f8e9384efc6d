package pixelstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/dustmap/internal/tensor"
)

// MemoryStore is an in-memory Store and Writer.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string]Pixel
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]Pixel)}
}

// PutPixel stores a deep copy of p.
func (m *MemoryStore) PutPixel(_ context.Context, p Pixel) error {
	if err := p.Validate(); err != nil {
		return err
	}
	cp := p
	cp.Samples = p.Samples.Clone()
	if p.Attributes != nil {
		cp.Attributes = make(map[string]float64, len(p.Attributes))
		for k, v := range p.Attributes {
			cp.Attributes[k] = v
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[GroupName(p.ID)] = cp
	return nil
}

// PutGroup stores p under an arbitrary group name. Used to mimic containers
// that hold non-pixel groups alongside pixel groups.
func (m *MemoryStore) PutGroup(name string, p Pixel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[name] = p
}

// ListPixels returns the IDs of pixel groups in group-name order.
func (m *MemoryStore) ListPixels(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if id, ok := ParseGroupName(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReadPixelSamples returns a copy of the stored tensor.
func (m *MemoryStore) ReadPixelSamples(_ context.Context, id int64) (*tensor.Tensor3, error) {
	p, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return p.Samples.Clone(), nil
}

// ReadAttribute returns a named scalar attribute.
func (m *MemoryStore) ReadAttribute(_ context.Context, id int64, name string) (float64, error) {
	p, err := m.get(id)
	if err != nil {
		return 0, err
	}
	return p.attribute(name)
}

func (m *MemoryStore) get(id int64) (Pixel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.groups[GroupName(id)]
	if !ok {
		return Pixel{}, fmt.Errorf("%w: %d", ErrPixelNotFound, id)
	}
	return p, nil
}
