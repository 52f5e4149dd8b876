package org

import "context"

// Store persists organization data.
type Store interface {
	Create(ctx context.Context, o *Organization) error
	Get(ctx context.Context, id string) (*Organization, error)
	GetByStripeSubscription(ctx context.Context, subID string) (*Organization, error)
	GetByStripeCustomer(ctx context.Context, custID string) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
}
