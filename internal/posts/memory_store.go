package posts

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory post store for demo/development.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

// NewMemoryStore creates a new in-memory post store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[string]*Post)}
}

func (m *MemoryStore) Create(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.posts[p.ID] = copyPost(p)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return copyPost(p), nil
}

func (m *MemoryStore) Update(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[p.ID]; !ok {
		return ErrPostNotFound
	}
	m.posts[p.ID] = copyPost(p)
	return nil
}

func (m *MemoryStore) ListByOrg(_ context.Context, orgID string, limit int) ([]*Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Post
	for _, p := range m.posts {
		if p.OrgID == orgID {
			out = append(out, copyPost(p))
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

func copyPost(p *Post) *Post {
	cp := *p
	if p.ImageAssetIDs != nil {
		cp.ImageAssetIDs = append([]string(nil), p.ImageAssetIDs...)
	}
	if p.ScheduledFor != nil {
		ts := *p.ScheduledFor
		cp.ScheduledFor = &ts
	}
	if p.PublishedAt != nil {
		ts := *p.PublishedAt
		cp.PublishedAt = &ts
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
