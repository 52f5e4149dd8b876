package assets

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory asset store for demo/development.
type MemoryStore struct {
	mu     sync.RWMutex
	assets map[string]*Asset
}

// NewMemoryStore creates a new in-memory asset store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{assets: make(map[string]*Asset)}
}

func (m *MemoryStore) Create(_ context.Context, a *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return nil, ErrAssetNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetByKey(_ context.Context, bucket, key string) (*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.assets {
		if a.Bucket == bucket && a.Key == key {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAssetNotFound
}

func (m *MemoryStore) Update(_ context.Context, a *Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assets[a.ID]; !ok {
		return ErrAssetNotFound
	}
	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

func (m *MemoryStore) ListByOrg(_ context.Context, orgID string, limit int) ([]*Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Asset
	for _, a := range m.assets {
		if a.OrgID == orgID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
