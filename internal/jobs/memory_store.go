package jobs

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory job store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates a new in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (m *MemoryStore) Create(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs[j.ID] = copyJob(j)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return copyJob(j), nil
}

func (m *MemoryStore) Update(_ context.Context, j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[j.ID]; !ok {
		return ErrJobNotFound
	}
	m.jobs[j.ID] = copyJob(j)
	return nil
}

func (m *MemoryStore) ListByOrg(_ context.Context, orgID string, limit int) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Job
	for _, j := range m.jobs {
		if j.OrgID == orgID {
			out = append(out, copyJob(j))
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

func copyJob(j *Job) *Job {
	cp := *j
	if j.OutputAssetIDs != nil {
		cp.OutputAssetIDs = append([]string(nil), j.OutputAssetIDs...)
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
