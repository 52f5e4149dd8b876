package billing

import (
	"context"
	"errors"
	"sync"

	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/user"
)

// MemoryStore composes in-memory org and user stores behind a single lock
// so reconcile writes are serialized the way a database transaction would
// serialize them.
type MemoryStore struct {
	mu    sync.Mutex
	orgs  org.Store
	users user.Store
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(orgs org.Store, users user.Store) *MemoryStore {
	return &MemoryStore{orgs: orgs, users: users}
}

func (s *MemoryStore) OrgByID(ctx context.Context, id string) (*org.Organization, error) {
	return s.orgs.Get(ctx, id)
}

func (s *MemoryStore) OrgBySubscription(ctx context.Context, subscriptionID string) (*org.Organization, error) {
	return s.orgs.GetByStripeSubscription(ctx, subscriptionID)
}

func (s *MemoryStore) OrgByCustomer(ctx context.Context, customerID string) (*org.Organization, error) {
	return s.orgs.GetByStripeCustomer(ctx, customerID)
}

func (s *MemoryStore) CreateOrg(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.orgs.Create(ctx, o); err != nil {
		return UserUnchanged, err
	}
	return s.upsertPayer(ctx, o, payer)
}

func (s *MemoryStore) UpdateOrg(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.orgs.Update(ctx, o); err != nil {
		return UserUnchanged, err
	}
	return s.upsertPayer(ctx, o, payer)
}

func (s *MemoryStore) upsertPayer(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error) {
	if payer == nil {
		return UserUnchanged, nil
	}
	existing, err := s.users.GetByEmail(ctx, payer.Email)
	if errors.Is(err, user.ErrUserNotFound) {
		payer.OrgID = o.ID
		if err := s.users.Create(ctx, payer); err != nil {
			return UserUnchanged, err
		}
		return UserCreated, nil
	}
	if err != nil {
		return UserUnchanged, err
	}
	if existing.OrgID == o.ID {
		return UserUnchanged, nil
	}
	existing.OrgID = o.ID
	if err := s.users.Update(ctx, existing); err != nil {
		return UserUnchanged, err
	}
	return UserReparented, nil
}
