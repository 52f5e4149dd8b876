// Package org provides the organization model for the recontent platform.
//
// Organizations own assets, jobs, and quota windows. Their plan and lifecycle
// status are driven by the billing reconciler; they are never hard-deleted,
// only suspended.
package org

import (
	"errors"
	"time"

	"github.com/recontent/recontent/internal/plan"
)

// Errors
var (
	ErrOrgNotFound       = errors.New("org: not found")
	ErrSubscriptionTaken = errors.New("org: stripe subscription already linked")
	ErrCustomerTaken     = errors.New("org: stripe customer already linked")
)

// Status represents an organization's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Organization represents a brokerage or agent team using the platform.
type Organization struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Plan                 plan.Plan `json:"plan"`
	WeeklyLimit          int       `json:"weeklyLimit"`
	Status               Status    `json:"status"`
	StripeCustomerID     string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
