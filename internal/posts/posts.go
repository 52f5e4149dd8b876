// Package posts turns rendered variants into social posts with captions.
package posts

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrPostNotFound    = errors.New("posts: not found")
	ErrInvalidPlatform = errors.New("posts: invalid platform")
	ErrNoImages        = errors.New("posts: at least one image is required")
)

// Platform is the social network a post targets.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
)

// ValidPlatform reports whether p is a supported platform.
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformInstagram, PlatformFacebook, PlatformLinkedIn:
		return true
	}
	return false
}

// Status is the post lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Post is one drafted or published social post.
type Post struct {
	ID            string     `json:"id"`
	OrgID         string     `json:"orgId"`
	Platform      Platform   `json:"platform"`
	Caption       string     `json:"caption"`
	ImageAssetIDs []string   `json:"imageAssetIds"`
	ScheduledFor  *time.Time `json:"scheduledFor,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	ExternalID    string     `json:"externalId,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Store persists post records.
type Store interface {
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, id string) (*Post, error)
	Update(ctx context.Context, p *Post) error
	ListByOrg(ctx context.Context, orgID string, limit int) ([]*Post, error)
}
