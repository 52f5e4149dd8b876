// Package worker consumes queued composition jobs, renders their output
// variants and records the results.
package worker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/recontent/recontent/internal/assets"
	"github.com/recontent/recontent/internal/circuitbreaker"
	"github.com/recontent/recontent/internal/compose"
	"github.com/recontent/recontent/internal/jobs"
	"github.com/recontent/recontent/internal/queue"
	"github.com/recontent/recontent/internal/retry"
	"github.com/recontent/recontent/internal/storage"
	"github.com/recontent/recontent/internal/traces"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
	outputContentType  = "image/jpeg"

	breakerKey          = "composer"
	breakerThreshold    = 5
	breakerOpenDuration = 30 * time.Second
)

// ErrComposerUnavailable is returned while the circuit to the composition
// provider is open.
var ErrComposerUnavailable = errors.New("worker: composition provider unavailable")

// Worker renders jobs popped from the queue. Delivery is at-least-once;
// completed and failed jobs are skipped on redelivery.
type Worker struct {
	queue    queue.Queue
	jobs     jobs.Store
	assets   *assets.Service
	objects  storage.ObjectStore
	composer compose.Composer
	breaker  *circuitbreaker.Breaker
	logger   *slog.Logger

	maxAttempts int
	baseDelay   time.Duration
	now         func() time.Time
}

// New creates a worker over the given queue and stores.
func New(q queue.Queue, jobStore jobs.Store, assetSvc *assets.Service,
	objects storage.ObjectStore, composer compose.Composer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:       q,
		jobs:        jobStore,
		assets:      assetSvc,
		objects:     objects,
		composer:    composer,
		breaker:     circuitbreaker.New(breakerThreshold, breakerOpenDuration),
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		now:         time.Now,
	}
}

// Run consumes jobs until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, queue.ErrClosed) {
				return err
			}
			w.logger.Error("consume failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if err := w.Process(ctx, msg); err != nil {
			w.logger.Error("job failed", "job_id", msg.JobID, "error", err)
		}
	}
}

// Process renders one queued job end to end.
func (w *Worker) Process(ctx context.Context, msg *queue.Message) error {
	ctx, span := traces.StartSpan(ctx, "worker.process",
		traces.JobID(msg.JobID), traces.OrgID(msg.OrgID))
	defer span.End()

	job, err := w.jobs.Get(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			w.logger.Warn("queued job has no record, dropping", "job_id", msg.JobID)
			jobsTotal.WithLabelValues(msg.Kind, "orphan").Inc()
			return nil
		}
		return fmt.Errorf("worker: load job: %w", err)
	}

	// Redelivery of an already-settled job.
	if job.Status == jobs.StatusComplete || job.Status == jobs.StatusFailed {
		jobsTotal.WithLabelValues(string(job.Type), "skipped").Inc()
		return nil
	}

	job.Status = jobs.StatusRendering
	job.UpdatedAt = w.now().UTC()
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("worker: mark rendering: %w", err)
	}
	w.logger.Info("rendering job", "job_id", job.ID, "org_id", job.OrgID, "type", job.Type)

	started := w.now()
	err = retry.Do(ctx, w.maxAttempts, w.baseDelay, func() error {
		return w.render(ctx, job)
	})
	if err != nil {
		job.Status = jobs.StatusFailed
		job.Error = err.Error()
		job.UpdatedAt = w.now().UTC()
		if uerr := w.jobs.Update(ctx, job); uerr != nil {
			w.logger.Error("failed to mark job failed", "job_id", job.ID, "error", uerr)
		}
		jobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
		return fmt.Errorf("worker: render %s: %w", job.ID, err)
	}

	job.Status = jobs.StatusComplete
	job.Error = ""
	job.UpdatedAt = w.now().UTC()
	if err := w.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("worker: mark complete: %w", err)
	}
	jobsTotal.WithLabelValues(string(job.Type), "complete").Inc()
	renderSeconds.Observe(w.now().Sub(started).Seconds())
	w.logger.Info("job complete",
		"job_id", job.ID, "org_id", job.OrgID, "type", job.Type,
		"outputs", len(job.OutputAssetIDs))
	return nil
}

// render fills in the job's outputs. It is safe to re-run on retry.
func (w *Worker) render(ctx context.Context, job *jobs.Job) error {
	if job.Type == jobs.TypeCaption {
		caption, err := w.caption(ctx, job.Brief, job.VirtuallyStaged)
		if err != nil {
			if errors.Is(err, compose.ErrEmptyCaption) {
				return retry.Permanent(err)
			}
			return err
		}
		job.Caption = caption
		return nil
	}

	room, err := w.inputBytes(ctx, job.RoomAssetID)
	if err != nil {
		return err
	}
	var agent []byte
	if job.Type == jobs.TypeComposite {
		if agent, err = w.inputBytes(ctx, job.HeadshotAssetID); err != nil {
			return err
		}
	}

	variants, err := w.composite(ctx, agent, room, job.Brief)
	if err != nil {
		if errors.Is(err, compose.ErrDecodeImage) {
			return retry.Permanent(err)
		}
		return err
	}
	if len(variants) == 0 {
		return retry.Permanent(compose.ErrNoVariants)
	}

	var ids []string
	for vi, variant := range variants {
		crops, err := compose.SocialCrops(variant)
		if err != nil {
			return retry.Permanent(err)
		}
		for ci, crop := range crops {
			id, err := w.storeOutput(ctx, job, vi, crop, compose.CropSizes[ci])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
	}
	job.OutputAssetIDs = ids
	return nil
}

// composite calls the composition provider behind the circuit breaker.
// Bad-input errors do not count against the circuit.
func (w *Worker) composite(ctx context.Context, agent, room []byte, brief string) ([][]byte, error) {
	if !w.breaker.Allow(breakerKey) {
		return nil, ErrComposerUnavailable
	}
	variants, err := w.composer.Composite(ctx, agent, room, brief)
	w.recordComposerResult(err)
	return variants, err
}

func (w *Worker) caption(ctx context.Context, brief string, staged bool) (string, error) {
	if !w.breaker.Allow(breakerKey) {
		return "", ErrComposerUnavailable
	}
	caption, err := w.composer.Caption(ctx, brief, staged)
	w.recordComposerResult(err)
	return caption, err
}

func (w *Worker) recordComposerResult(err error) {
	switch {
	case err == nil:
		w.breaker.RecordSuccess(breakerKey)
	case errors.Is(err, compose.ErrDecodeImage), errors.Is(err, compose.ErrEmptyCaption):
		// Caller sent a bad request, the provider is healthy.
	default:
		w.breaker.RecordFailure(breakerKey)
	}
}

// storeOutput uploads one crop under a key derived from the job, variant,
// and crop size. A retried render overwrites the same object and refreshes
// the same record instead of orphaning the previous attempt's.
func (w *Worker) storeOutput(ctx context.Context, job *jobs.Job, variant int, crop []byte, size compose.CropSize) (string, error) {
	key := fmt.Sprintf("outputs/%s/%s/v%d_%s.jpg", job.OrgID, job.ID, variant+1, size.Name)
	if err := w.objects.Put(ctx, w.assets.ProcessedBucket(), key,
		bytes.NewReader(crop), outputContentType); err != nil {
		return "", fmt.Errorf("upload output: %w", err)
	}

	sum := sha256.Sum256(crop)
	a, err := w.assets.RecordOutput(ctx, job.OrgID, key, outputContentType,
		int64(len(crop)), size.Width, size.Height, hex.EncodeToString(sum[:]))
	if err != nil {
		return "", fmt.Errorf("record output: %w", err)
	}
	return a.ID, nil
}

// inputBytes downloads an uploaded input asset. Missing or pending assets
// are permanent failures, the gate should have rejected them.
func (w *Worker) inputBytes(ctx context.Context, assetID string) ([]byte, error) {
	a, err := w.assets.Get(ctx, assetID)
	if err != nil {
		if errors.Is(err, assets.ErrAssetNotFound) {
			return nil, retry.Permanent(fmt.Errorf("input asset %s: %w", assetID, err))
		}
		return nil, err
	}
	if a.Status != assets.StatusUploaded {
		return nil, retry.Permanent(fmt.Errorf("input asset %s not uploaded", assetID))
	}

	rc, err := w.objects.Get(ctx, a.Bucket, a.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, retry.Permanent(fmt.Errorf("input object %s/%s: %w", a.Bucket, a.Key, err))
		}
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
