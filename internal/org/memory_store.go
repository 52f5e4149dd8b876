package org

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory organization store for demo/development.
type MemoryStore struct {
	mu   sync.RWMutex
	orgs map[string]*Organization // by ID
	subs map[string]string        // stripe subscription ID → org ID
	cust map[string]string        // stripe customer ID → org ID
}

// NewMemoryStore creates a new in-memory organization store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs: make(map[string]*Organization),
		subs: make(map[string]string),
		cust: make(map[string]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o.StripeSubscriptionID != "" {
		if _, exists := m.subs[o.StripeSubscriptionID]; exists {
			return ErrSubscriptionTaken
		}
	}
	if o.StripeCustomerID != "" {
		if _, exists := m.cust[o.StripeCustomerID]; exists {
			return ErrCustomerTaken
		}
	}

	cp := *o
	m.orgs[o.ID] = &cp
	if o.StripeSubscriptionID != "" {
		m.subs[o.StripeSubscriptionID] = o.ID
	}
	if o.StripeCustomerID != "" {
		m.cust[o.StripeCustomerID] = o.ID
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrOrgNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetByStripeSubscription(_ context.Context, subID string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.subs[subID]
	if !ok {
		return nil, ErrOrgNotFound
	}
	o := m.orgs[id]
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) GetByStripeCustomer(_ context.Context, custID string) (*Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.cust[custID]
	if !ok {
		return nil, ErrOrgNotFound
	}
	o := m.orgs[id]
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, o *Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.orgs[o.ID]
	if !ok {
		return ErrOrgNotFound
	}
	if o.StripeSubscriptionID != "" {
		if owner, exists := m.subs[o.StripeSubscriptionID]; exists && owner != o.ID {
			return ErrSubscriptionTaken
		}
	}
	if o.StripeCustomerID != "" {
		if owner, exists := m.cust[o.StripeCustomerID]; exists && owner != o.ID {
			return ErrCustomerTaken
		}
	}

	if prev.StripeSubscriptionID != "" && prev.StripeSubscriptionID != o.StripeSubscriptionID {
		delete(m.subs, prev.StripeSubscriptionID)
	}
	if prev.StripeCustomerID != "" && prev.StripeCustomerID != o.StripeCustomerID {
		delete(m.cust, prev.StripeCustomerID)
	}

	cp := *o
	m.orgs[o.ID] = &cp
	if o.StripeSubscriptionID != "" {
		m.subs[o.StripeSubscriptionID] = o.ID
	}
	if o.StripeCustomerID != "" {
		m.cust[o.StripeCustomerID] = o.ID
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
