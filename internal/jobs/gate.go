package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recontent/recontent/internal/assets"
	"github.com/recontent/recontent/internal/idgen"
	"github.com/recontent/recontent/internal/queue"
	"github.com/recontent/recontent/internal/quota"
	"github.com/recontent/recontent/internal/traces"
)

// SubmitRequest describes one composition job submission.
type SubmitRequest struct {
	Type            Type
	HeadshotAssetID string
	RoomAssetID     string
	Brief           string
	VirtuallyStaged bool
}

// Gate admits job submissions against the organization's quota and hands
// admitted jobs to the queue.
//
// Order matters: the quota is charged first, then the job is persisted and
// published. If the hand-off to the queue fails, the admission is released
// so a transient outage doesn't burn quota, and the job is marked failed.
type Gate struct {
	store  Store
	ledger *quota.Ledger
	assets *assets.Service
	queue  queue.Queue
	logger *slog.Logger
	now    func() time.Time
}

// NewGate creates a job admission gate.
func NewGate(store Store, ledger *quota.Ledger, assetSvc *assets.Service, q queue.Queue, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:  store,
		ledger: ledger,
		assets: assetSvc,
		queue:  q,
		logger: logger,
		now:    time.Now,
	}
}

// Submit validates the request, charges the quota, persists the job and
// publishes it. Denials surface as quota.ErrOrgSuspended,
// quota.ErrQuotaExceeded or quota.ErrOrgNotFound; the returned window
// reflects usage after the attempt.
func (g *Gate) Submit(ctx context.Context, orgID string, req SubmitRequest) (*Job, *quota.Window, error) {
	ctx, span := traces.StartSpan(ctx, "jobs.Submit", traces.OrgID(orgID))
	defer span.End()

	if err := g.validate(ctx, orgID, req); err != nil {
		return nil, nil, err
	}

	now := g.now().UTC()
	w, err := g.ledger.CheckAndIncrement(ctx, orgID, now)
	if err != nil {
		return nil, w, err
	}

	j := &Job{
		ID:              idgen.WithPrefix("job_"),
		OrgID:           orgID,
		Type:            req.Type,
		Status:          StatusCreated,
		HeadshotAssetID: req.HeadshotAssetID,
		RoomAssetID:     req.RoomAssetID,
		Brief:           req.Brief,
		VirtuallyStaged: req.VirtuallyStaged,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := g.store.Create(ctx, j); err != nil {
		g.release(ctx, orgID, now)
		return nil, w, fmt.Errorf("jobs: persist job: %w", err)
	}

	msg := queue.Message{
		JobID:      j.ID,
		OrgID:      orgID,
		Kind:       string(req.Type),
		EnqueuedAt: now,
	}
	if err := g.queue.Publish(ctx, msg); err != nil {
		g.release(ctx, orgID, now)
		g.markFailed(ctx, j, "enqueue failed: "+err.Error())
		publishFailures.Inc()
		return nil, w, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	j.Status = StatusQueued
	j.UpdatedAt = g.now().UTC()
	if err := g.store.Update(ctx, j); err != nil {
		// The envelope is already out; the worker will advance the
		// status when it picks the job up.
		g.logger.Warn("failed to mark job queued", "job_id", j.ID, "error", err)
	}

	g.logger.Info("job admitted",
		"job_id", j.ID, "org_id", orgID, "type", string(req.Type),
		"window_used", w.Used, "window_limit", w.Limit)
	return j, w, nil
}

func (g *Gate) validate(ctx context.Context, orgID string, req SubmitRequest) error {
	if !ValidType(req.Type) {
		return ErrInvalidType
	}
	if req.RoomAssetID == "" {
		return fmt.Errorf("%w: room asset is required", ErrInvalidRequest)
	}
	if req.Type == TypeComposite && req.HeadshotAssetID == "" {
		return fmt.Errorf("%w: composite jobs need a headshot asset", ErrInvalidRequest)
	}

	for _, id := range []string{req.HeadshotAssetID, req.RoomAssetID} {
		if id == "" {
			continue
		}
		a, err := g.assets.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: asset %s", ErrAssetNotReady, id)
		}
		if a.OrgID != orgID {
			return ErrAssetWrongOrg
		}
		if a.Status != assets.StatusUploaded {
			return fmt.Errorf("%w: asset %s", ErrAssetNotReady, id)
		}
	}
	return nil
}

func (g *Gate) release(ctx context.Context, orgID string, now time.Time) {
	if err := g.ledger.Decrement(ctx, orgID, now); err != nil {
		g.logger.Error("compensating quota release failed", "org_id", orgID, "error", err)
	}
}

func (g *Gate) markFailed(ctx context.Context, j *Job, msg string) {
	j.Status = StatusFailed
	j.Error = msg
	j.UpdatedAt = g.now().UTC()
	if err := g.store.Update(ctx, j); err != nil {
		g.logger.Error("failed to mark job failed", "job_id", j.ID, "error", err)
	}
}

// Get returns one job record.
func (g *Gate) Get(ctx context.Context, id string) (*Job, error) {
	return g.store.Get(ctx, id)
}

// ListByOrg returns an organization's jobs, newest first.
func (g *Gate) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Job, error) {
	return g.store.ListByOrg(ctx, orgID, limit)
}

// Usage reports the organization's current quota window.
func (g *Gate) Usage(ctx context.Context, orgID string) (*quota.Window, error) {
	return g.ledger.Usage(ctx, orgID, g.now().UTC())
}
