// Package billing reconciles payment-provider lifecycle events into
// organization plan state.
//
// Events arrive at-least-once and unordered; every transition here is
// idempotent, so replaying an event converges to the same organization
// state instead of double-applying it.
package billing

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrInvalidEvent = errors.New("billing: invalid event payload")
)

// Kind identifies a billing lifecycle event.
type Kind string

const (
	KindCheckoutCompleted   Kind = "checkout.completed"
	KindSubscriptionUpdated Kind = "subscription.updated"
	KindPaymentFailed       Kind = "payment.failed"
)

// Event is a decoded billing lifecycle event. The concrete types below are
// the only implementations; required fields are validated at the decode
// boundary so handlers never poke at optional payload fields.
type Event interface {
	Kind() Kind
	SubID() string
}

// CheckoutCompleted is emitted when a customer finishes checkout for a
// subscription. PlanKey is required: an organization must never be admitted
// without a known plan.
type CheckoutCompleted struct {
	SubscriptionID string
	CustomerID     string
	PlanKey        string
	PayerEmail     string
	DisplayName    string
}

func (CheckoutCompleted) Kind() Kind      { return KindCheckoutCompleted }
func (e CheckoutCompleted) SubID() string { return e.SubscriptionID }

// PriceItem is one subscription line item, in provider listing order.
type PriceItem struct {
	PriceID string
}

// SubscriptionUpdated is emitted when a subscription's plan or line items
// change. It may precede the checkout event for the same subscription.
type SubscriptionUpdated struct {
	SubscriptionID string
	Metadata       map[string]string
	PriceItems     []PriceItem
}

func (SubscriptionUpdated) Kind() Kind      { return KindSubscriptionUpdated }
func (e SubscriptionUpdated) SubID() string { return e.SubscriptionID }

// InvoicePaymentFailed is emitted when a subscription invoice fails to
// collect.
type InvoicePaymentFailed struct {
	SubscriptionID string
}

func (InvoicePaymentFailed) Kind() Kind      { return KindPaymentFailed }
func (e InvoicePaymentFailed) SubID() string { return e.SubscriptionID }

// Validate checks the structural requirements shared by all event kinds.
func Validate(ev Event) error {
	switch e := ev.(type) {
	case CheckoutCompleted:
		if e.SubscriptionID == "" && e.CustomerID == "" {
			return fmt.Errorf("%w: checkout without subscription or customer id", ErrInvalidEvent)
		}
	case SubscriptionUpdated:
		if e.SubscriptionID == "" {
			return fmt.Errorf("%w: subscription update without subscription id", ErrInvalidEvent)
		}
	case InvoicePaymentFailed:
		if e.SubscriptionID == "" {
			return fmt.Errorf("%w: payment failure without subscription id", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown event type %T", ErrInvalidEvent, ev)
	}
	return nil
}
