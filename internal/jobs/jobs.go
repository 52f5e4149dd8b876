// Package jobs owns composition job records and the admission gate in
// front of the job queue.
package jobs

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrJobNotFound    = errors.New("jobs: not found")
	ErrInvalidType    = errors.New("jobs: invalid job type")
	ErrAssetNotReady  = errors.New("jobs: input asset not uploaded")
	ErrAssetWrongOrg  = errors.New("jobs: input asset belongs to another org")
	ErrPublishFailed  = errors.New("jobs: failed to enqueue job")
	ErrInvalidRequest = errors.New("jobs: invalid request")
)

// Type classifies what the worker produces.
type Type string

const (
	TypeComposite Type = "composite"
	TypeStaging   Type = "staging"
	TypeCaption   Type = "caption"
)

// ValidType reports whether t is a known job type.
func ValidType(t Type) bool {
	switch t {
	case TypeComposite, TypeStaging, TypeCaption:
		return true
	}
	return false
}

// Status is the job lifecycle state.
type Status string

const (
	StatusCreated   Status = "created"
	StatusQueued    Status = "queued"
	StatusRendering Status = "rendering"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Job is one unit of composition work.
type Job struct {
	ID              string    `json:"id"`
	OrgID           string    `json:"orgId"`
	Type            Type      `json:"type"`
	Status          Status    `json:"status"`
	HeadshotAssetID string    `json:"headshotAssetId,omitempty"`
	RoomAssetID     string    `json:"roomAssetId"`
	Brief           string    `json:"brief"`
	VirtuallyStaged bool      `json:"virtuallyStaged"`
	OutputAssetIDs  []string  `json:"outputAssetIds,omitempty"`
	Caption         string    `json:"caption,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store persists job records.
type Store interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, j *Job) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*Job, error)
}
