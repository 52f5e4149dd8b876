package quota

import (
	"context"
	"sync"
	"time"

	"github.com/recontent/recontent/internal/idgen"
	"github.com/recontent/recontent/internal/org"
)

// MemoryStore is an in-memory quota store for demo/development.
// Organization status and limits are read from the provided org store;
// windows live here. One mutex serializes all admission checks, which is
// the whole point: the read-modify-write is atomic per process.
type MemoryStore struct {
	mu      sync.Mutex
	orgs    org.Store
	windows map[string][]*Window // org ID → windows, newest last
}

// NewMemoryStore creates a new in-memory quota store backed by the given
// organization store.
func NewMemoryStore(orgs org.Store) *MemoryStore {
	return &MemoryStore{
		orgs:    orgs,
		windows: make(map[string][]*Window),
	}
}

func (m *MemoryStore) Admit(ctx context.Context, orgID string, now time.Time) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, err := m.orgs.Get(ctx, orgID)
	if err != nil {
		if err == org.ErrOrgNotFound {
			return nil, ErrOrgNotFound
		}
		return nil, err
	}

	w := m.openWindowLocked(orgID, o.WeeklyLimit, now)

	if o.Status != org.StatusActive {
		cp := *w
		return &cp, ErrOrgSuspended
	}
	if w.Used >= w.Limit {
		cp := *w
		return &cp, ErrQuotaExceeded
	}

	w.Used++
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) Release(_ context.Context, orgID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.currentLocked(orgID, now)
	if w == nil {
		return ErrWindowNotFound
	}
	if w.Used > 0 {
		w.Used--
	}
	return nil
}

func (m *MemoryStore) CurrentWindow(_ context.Context, orgID string, now time.Time) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.currentLocked(orgID, now)
	if w == nil {
		return nil, ErrWindowNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MemoryStore) currentLocked(orgID string, now time.Time) *Window {
	for _, w := range m.windows[orgID] {
		if w.Covers(now) {
			return w
		}
	}
	return nil
}

func (m *MemoryStore) openWindowLocked(orgID string, limit int, now time.Time) *Window {
	if w := m.currentLocked(orgID, now); w != nil {
		return w
	}
	w := &Window{
		ID:          idgen.WithPrefix("qw_"),
		OrgID:       orgID,
		WindowStart: now,
		WindowEnd:   now.Add(WindowLength),
		Limit:       limit,
		Used:        0,
	}
	m.windows[orgID] = append(m.windows[orgID], w)
	return w
}

var _ Store = (*MemoryStore)(nil)
