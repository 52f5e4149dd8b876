package posts

import (
	"context"
	"fmt"
	"time"

	"github.com/recontent/recontent/internal/compose"
	"github.com/recontent/recontent/internal/idgen"
)

// Service drafts posts with provider-written captions.
type Service struct {
	store    Store
	composer compose.Composer
	now      func() time.Time
}

// NewService creates a post service.
func NewService(store Store, composer compose.Composer) *Service {
	return &Service{store: store, composer: composer, now: time.Now}
}

// DraftRequest describes one post draft.
type DraftRequest struct {
	Platform      Platform
	Brief         string
	ImageAssetIDs []string
	Staged        bool
	ScheduledFor  *time.Time
}

// Draft captions the brief and stores a draft post over the given images.
func (s *Service) Draft(ctx context.Context, orgID string, req DraftRequest) (*Post, error) {
	if !ValidPlatform(req.Platform) {
		return nil, ErrInvalidPlatform
	}
	if len(req.ImageAssetIDs) == 0 {
		return nil, ErrNoImages
	}

	caption, err := s.composer.Caption(ctx, req.Brief, req.Staged)
	if err != nil {
		return nil, fmt.Errorf("posts: caption: %w", err)
	}

	now := s.now().UTC()
	status := StatusDraft
	if req.ScheduledFor != nil {
		status = StatusScheduled
	}
	p := &Post{
		ID:            idgen.WithPrefix("post_"),
		OrgID:         orgID,
		Platform:      req.Platform,
		Caption:       caption,
		ImageAssetIDs: req.ImageAssetIDs,
		ScheduledFor:  req.ScheduledFor,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("posts: persist draft: %w", err)
	}
	return p, nil
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, id string) (*Post, error) {
	return s.store.Get(ctx, id)
}

// ListByOrg returns an organization's posts, newest first.
func (s *Service) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Post, error) {
	return s.store.ListByOrg(ctx, orgID, limit)
}
