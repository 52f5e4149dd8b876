// Package storage abstracts the object store holding photo originals and
// rendered variants.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Errors
var (
	ErrObjectNotFound = errors.New("storage: object not found")
)

// DefaultPresignTTL bounds how long a minted upload or download URL stays
// valid.
const DefaultPresignTTL = 10 * time.Minute

// PresignedURL is a time-limited URL for a direct client upload or
// download.
type PresignedURL struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectStore reads and writes image objects. Buckets separate raw uploads
// from processed output variants.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Delete(ctx context.Context, bucket, key string) error

	// PresignPut mints a URL a client can PUT the object to directly.
	PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (*PresignedURL, error)

	// PresignGet mints a URL a client can GET the object from directly.
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (*PresignedURL, error)
}
