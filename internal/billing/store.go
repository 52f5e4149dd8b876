package billing

import (
	"context"

	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/user"
)

// UserChange reports what a reconcile write did to the payer's user record.
type UserChange int

const (
	UserUnchanged UserChange = iota
	UserCreated
	UserReparented
)

func (c UserChange) String() string {
	switch c {
	case UserCreated:
		return "created"
	case UserReparented:
		return "reparented"
	default:
		return "unchanged"
	}
}

// Store persists reconciliation state. Lookups return org.ErrOrgNotFound
// when no organization matches.
//
// CreateOrg and UpdateOrg are failure-atomic: when payer is non-nil the
// payer's user record is upserted under the organization in the same unit
// as the organization write, so a replayed event never observes an org
// without its creator or vice versa. The payer is matched by email; an
// existing user under a different organization is moved, not duplicated.
type Store interface {
	OrgByID(ctx context.Context, id string) (*org.Organization, error)
	OrgBySubscription(ctx context.Context, subscriptionID string) (*org.Organization, error)
	OrgByCustomer(ctx context.Context, customerID string) (*org.Organization, error)
	CreateOrg(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error)
	UpdateOrg(ctx context.Context, o *org.Organization, payer *user.User) (UserChange, error)
}
