package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/recontent/recontent/internal/idgen"
	"github.com/recontent/recontent/internal/org"
	"github.com/recontent/recontent/internal/plan"
	"github.com/recontent/recontent/internal/traces"
	"github.com/recontent/recontent/internal/user"
)

// Metadata keys written back to the provider so later subscription events
// are self-describing.
const (
	MetaOrgID   = "org_id"
	MetaPlanKey = "plan_key"
)

// MetadataWriter pushes resolved identifiers back onto the provider's
// subscription object. Write-back is best effort; failures are logged and
// never fail the reconcile.
type MetadataWriter interface {
	WriteSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error
}

// Reconciler folds billing lifecycle events into organization state. Every
// transition is an absolute assignment, so applying the same event twice
// leaves the same state.
type Reconciler struct {
	store     Store
	catalog   *plan.Catalog
	writeback MetadataWriter
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(store Store, catalog *plan.Catalog, writeback MetadataWriter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		catalog:   catalog,
		writeback: writeback,
		logger:    logger,
		now:       time.Now,
	}
}

// Apply validates and dispatches a single event. Unknown subscriptions are
// a clean no-op for update and payment-failure events; a checkout with an
// unknown plan key is a hard error so the provider redelivers it.
func (r *Reconciler) Apply(ctx context.Context, ev Event) error {
	ctx, span := traces.StartSpan(ctx, "billing.Apply",
		traces.EventKind(string(ev.Kind())),
		traces.SubscriptionID(ev.SubID()),
	)
	defer span.End()

	if err := Validate(ev); err != nil {
		eventsTotal.WithLabelValues(string(ev.Kind()), "invalid").Inc()
		return err
	}

	var err error
	switch e := ev.(type) {
	case CheckoutCompleted:
		err = r.applyCheckout(ctx, e)
	case SubscriptionUpdated:
		err = r.applySubscriptionUpdate(ctx, e)
	case InvoicePaymentFailed:
		err = r.applyPaymentFailed(ctx, e)
	}
	if err != nil {
		eventsTotal.WithLabelValues(string(ev.Kind()), "error").Inc()
		return err
	}
	eventsTotal.WithLabelValues(string(ev.Kind()), "applied").Inc()
	return nil
}

func (r *Reconciler) applyCheckout(ctx context.Context, ev CheckoutCompleted) error {
	p, ok := plan.FromKey(ev.PlanKey)
	if !ok {
		return fmt.Errorf("billing: checkout for subscription %q: plan key %q: %w",
			ev.SubscriptionID, ev.PlanKey, plan.ErrUnknownPlan)
	}
	limit, err := r.catalog.LimitFor(p)
	if err != nil {
		return err
	}

	o, err := r.resolveCheckoutOrg(ctx, ev)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	created := o == nil
	if created {
		o = &org.Organization{
			ID:        idgen.WithPrefix("org_"),
			Name:      checkoutOrgName(ev),
			CreatedAt: now,
		}
	}
	o.Plan = p
	o.WeeklyLimit = limit
	o.Status = org.StatusActive
	o.UpdatedAt = now
	r.backfillIdentifiers(ctx, o, ev)

	payer := r.payerFor(ev, now)
	var change UserChange
	if created {
		change, err = r.store.CreateOrg(ctx, o, payer)
	} else {
		change, err = r.store.UpdateOrg(ctx, o, payer)
	}
	if err != nil {
		return fmt.Errorf("billing: persist checkout for org %s: %w", o.ID, err)
	}

	r.logger.Info("checkout reconciled",
		"org_id", o.ID,
		"plan", string(p),
		"created", created,
		"payer", change.String(),
	)
	if change == UserReparented {
		r.logger.Warn("payer moved between organizations",
			"org_id", o.ID, "email", payer.Email)
	}

	r.writeBack(ctx, ev.SubscriptionID, o.ID, string(p))
	return nil
}

// resolveCheckoutOrg looks up the organization by subscription, then by
// customer. A nil result with nil error means no organization exists yet.
func (r *Reconciler) resolveCheckoutOrg(ctx context.Context, ev CheckoutCompleted) (*org.Organization, error) {
	if ev.SubscriptionID != "" {
		o, err := r.store.OrgBySubscription(ctx, ev.SubscriptionID)
		if err == nil {
			return o, nil
		}
		if err != org.ErrOrgNotFound {
			return nil, err
		}
	}
	if ev.CustomerID != "" {
		o, err := r.store.OrgByCustomer(ctx, ev.CustomerID)
		if err == nil {
			return o, nil
		}
		if err != org.ErrOrgNotFound {
			return nil, err
		}
	}
	return nil, nil
}

// backfillIdentifiers fills in billing identifiers the organization is
// missing. A stored identifier that differs from the event's is a data
// anomaly: it is logged and kept, never silently overwritten.
func (r *Reconciler) backfillIdentifiers(ctx context.Context, o *org.Organization, ev CheckoutCompleted) {
	if ev.SubscriptionID != "" {
		switch o.StripeSubscriptionID {
		case "":
			o.StripeSubscriptionID = ev.SubscriptionID
		case ev.SubscriptionID:
		default:
			r.logger.Error("subscription id mismatch",
				"org_id", o.ID,
				"stored", o.StripeSubscriptionID,
				"event", ev.SubscriptionID,
			)
		}
	}
	if ev.CustomerID != "" {
		switch o.StripeCustomerID {
		case "":
			o.StripeCustomerID = ev.CustomerID
		case ev.CustomerID:
		default:
			r.logger.Error("customer id mismatch",
				"org_id", o.ID,
				"stored", o.StripeCustomerID,
				"event", ev.CustomerID,
			)
		}
	}
}

func (r *Reconciler) payerFor(ev CheckoutCompleted, now time.Time) *user.User {
	email := strings.ToLower(strings.TrimSpace(ev.PayerEmail))
	if email == "" {
		return nil
	}
	return &user.User{
		ID:        idgen.WithPrefix("usr_"),
		Email:     email,
		Role:      "owner",
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func checkoutOrgName(ev CheckoutCompleted) string {
	if ev.DisplayName != "" {
		return ev.DisplayName
	}
	if ev.PayerEmail != "" {
		return ev.PayerEmail
	}
	return "org " + ev.CustomerID
}

func (r *Reconciler) applySubscriptionUpdate(ctx context.Context, ev SubscriptionUpdated) error {
	o, err := r.store.OrgBySubscription(ctx, ev.SubscriptionID)
	if err == org.ErrOrgNotFound {
		if orgID := ev.Metadata[MetaOrgID]; orgID != "" {
			o, err = r.store.OrgByID(ctx, orgID)
		}
	}
	if err == org.ErrOrgNotFound {
		r.logger.Info("subscription update for unknown org",
			"subscription_id", ev.SubscriptionID)
		orphanEvents.WithLabelValues(string(ev.Kind())).Inc()
		return nil
	}
	if err != nil {
		return err
	}

	p, ok := r.resolvePlan(ev)
	if !ok {
		r.logger.Warn("subscription update with no resolvable plan",
			"org_id", o.ID, "subscription_id", ev.SubscriptionID)
		return nil
	}
	limit, err := r.catalog.LimitFor(p)
	if err != nil {
		return err
	}

	o.Plan = p
	o.WeeklyLimit = limit
	o.Status = org.StatusActive
	if o.StripeSubscriptionID == "" {
		o.StripeSubscriptionID = ev.SubscriptionID
	}
	o.UpdatedAt = r.now().UTC()
	if _, err := r.store.UpdateOrg(ctx, o, nil); err != nil {
		return fmt.Errorf("billing: persist subscription update for org %s: %w", o.ID, err)
	}

	r.logger.Info("subscription reconciled", "org_id", o.ID, "plan", string(p))
	return nil
}

// resolvePlan prefers the plan key stamped in subscription metadata and
// falls back to the first line item whose price the catalog recognizes.
func (r *Reconciler) resolvePlan(ev SubscriptionUpdated) (plan.Plan, bool) {
	if key := ev.Metadata[MetaPlanKey]; key != "" {
		if p, ok := plan.FromKey(key); ok {
			return p, true
		}
	}
	for _, item := range ev.PriceItems {
		if p, ok := r.catalog.FromPrice(item.PriceID); ok {
			return p, true
		}
	}
	return "", false
}

func (r *Reconciler) applyPaymentFailed(ctx context.Context, ev InvoicePaymentFailed) error {
	o, err := r.store.OrgBySubscription(ctx, ev.SubscriptionID)
	if err == org.ErrOrgNotFound {
		r.logger.Info("payment failure for unknown subscription",
			"subscription_id", ev.SubscriptionID)
		orphanEvents.WithLabelValues(string(ev.Kind())).Inc()
		return nil
	}
	if err != nil {
		return err
	}

	o.Status = org.StatusSuspended
	o.UpdatedAt = r.now().UTC()
	if _, err := r.store.UpdateOrg(ctx, o, nil); err != nil {
		return fmt.Errorf("billing: suspend org %s: %w", o.ID, err)
	}

	r.logger.Warn("org suspended for failed payment",
		"org_id", o.ID, "subscription_id", ev.SubscriptionID)
	return nil
}

func (r *Reconciler) writeBack(ctx context.Context, subscriptionID, orgID, planKey string) {
	if r.writeback == nil || subscriptionID == "" {
		return
	}
	err := r.writeback.WriteSubscriptionMetadata(ctx, subscriptionID, map[string]string{
		MetaOrgID:   orgID,
		MetaPlanKey: planKey,
	})
	if err != nil {
		writebackFailures.Inc()
		r.logger.Warn("subscription metadata write-back failed",
			"subscription_id", subscriptionID, "error", err)
	}
}
