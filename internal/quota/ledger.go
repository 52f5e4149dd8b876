package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/recontent/recontent/internal/traces"
)

// Ledger is the admission-facing quota service.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// NewLedger creates a quota ledger over the given store.
func NewLedger(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// CheckAndIncrement admits one job against the organization's current
// window, opening it if needed. Denials come back as ErrOrgSuspended or
// ErrQuotaExceeded with the window state attached.
func (l *Ledger) CheckAndIncrement(ctx context.Context, orgID string, now time.Time) (*Window, error) {
	ctx, span := traces.StartSpan(ctx, "quota.CheckAndIncrement", traces.OrgID(orgID))
	defer span.End()

	w, err := l.store.Admit(ctx, orgID, now)
	switch {
	case err == nil:
		admissionsTotal.WithLabelValues("admitted").Inc()
	case errors.Is(err, ErrOrgSuspended):
		admissionsTotal.WithLabelValues("suspended").Inc()
	case errors.Is(err, ErrQuotaExceeded):
		admissionsTotal.WithLabelValues("exceeded").Inc()
	default:
		admissionsTotal.WithLabelValues("error").Inc()
	}
	return w, err
}

// Decrement gives back one admission after a failed hand-off, so a
// transient publish failure doesn't permanently burn quota.
func (l *Ledger) Decrement(ctx context.Context, orgID string, now time.Time) error {
	err := l.store.Release(ctx, orgID, now)
	if err != nil {
		l.logger.Warn("quota release failed", "org_id", orgID, "error", err)
		return err
	}
	releasesTotal.Inc()
	return nil
}

// Usage reports the organization's current window, or ErrWindowNotFound
// when no admission has opened one yet.
func (l *Ledger) Usage(ctx context.Context, orgID string, now time.Time) (*Window, error) {
	return l.store.CurrentWindow(ctx, orgID, now)
}
