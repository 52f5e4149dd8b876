// Package assets tracks uploaded photos and rendered output variants.
//
// Clients never stream image bytes through the API: they request a
// presigned upload URL, PUT the object directly to storage, then confirm
// the upload so the record flips from pending to uploaded.
package assets

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrAssetNotFound      = errors.New("assets: not found")
	ErrInvalidKind        = errors.New("assets: invalid kind")
	ErrInvalidContentType = errors.New("assets: unsupported content type")
	ErrNotUploaded        = errors.New("assets: object not uploaded")
)

// Kind classifies what an asset depicts.
type Kind string

const (
	KindHeadshot Kind = "headshot"
	KindListing  Kind = "listing"
	KindMask     Kind = "mask"
	KindOutput   Kind = "output"
)

// ValidKind reports whether k is a known asset kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindHeadshot, KindListing, KindMask, KindOutput:
		return true
	}
	return false
}

// Status tracks the upload lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusUploaded Status = "uploaded"
)

// Asset is one stored image object.
type Asset struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"orgId"`
	Kind        Kind      `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	Size        int64     `json:"size,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists asset records.
type Store interface {
	Create(ctx context.Context, a *Asset) error
	Get(ctx context.Context, id string) (*Asset, error)
	GetByKey(ctx context.Context, bucket, key string) (*Asset, error)
	Update(ctx context.Context, a *Asset) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*Asset, error)
}
