// Package queue moves composition jobs from the API to the worker.
//
// The transport carries only a small envelope; job state lives in the jobs
// store. Delivery is at-least-once: the worker must tolerate seeing an
// envelope twice.
package queue

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrClosed = errors.New("queue: closed")
)

// Message is the envelope published for each admitted job.
type Message struct {
	JobID      string    `json:"jobId"`
	OrgID      string    `json:"orgId"`
	Kind       string    `json:"kind"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is the job transport.
type Queue interface {
	// Publish enqueues one envelope.
	Publish(ctx context.Context, msg Message) error

	// Consume blocks until an envelope is available or ctx is done.
	Consume(ctx context.Context) (*Message, error)

	Close() error
}
