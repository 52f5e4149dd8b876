package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/recontent/recontent/internal/idgen"
	"github.com/recontent/recontent/internal/storage"
	"github.com/recontent/recontent/internal/validation"
)

// maxFilenameLen caps stored client filenames.
const maxFilenameLen = 255

// Service mints upload URLs and tracks asset lifecycle.
type Service struct {
	store           Store
	objects         storage.ObjectStore
	bucketRaw       string
	bucketProcessed string
	presignTTL      time.Duration
	now             func() time.Time
}

// NewService creates an asset service over the given stores.
func NewService(store Store, objects storage.ObjectStore, bucketRaw, bucketProcessed string) *Service {
	return &Service{
		store:           store,
		objects:         objects,
		bucketRaw:       bucketRaw,
		bucketProcessed: bucketProcessed,
		presignTTL:      storage.DefaultPresignTTL,
		now:             time.Now,
	}
}

// RequestUpload registers a pending asset and mints a presigned PUT URL for
// it. Output assets are produced by the worker, never uploaded.
func (s *Service) RequestUpload(ctx context.Context, orgID string, kind Kind, filename, contentType string) (*Asset, *storage.PresignedURL, error) {
	if !ValidKind(kind) || kind == KindOutput {
		return nil, nil, ErrInvalidKind
	}
	if !validation.IsImageContentType(contentType) {
		return nil, nil, ErrInvalidContentType
	}

	now := s.now().UTC()
	id := idgen.WithPrefix("ast_")
	a := &Asset{
		ID:          id,
		OrgID:       orgID,
		Kind:        kind,
		Filename:    validation.SanitizeString(filename, maxFilenameLen),
		ContentType: contentType,
		Bucket:      s.bucketRaw,
		Key:         uploadKey(orgID, id, filename),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, nil, fmt.Errorf("assets: create record: %w", err)
	}

	url, err := s.objects.PresignPut(ctx, a.Bucket, a.Key, contentType, s.presignTTL)
	if err != nil {
		return nil, nil, err
	}
	uploadURLsMinted.Inc()
	return a, url, nil
}

// ConfirmUpload flips a pending asset to uploaded after verifying the
// object actually landed in storage.
func (s *Service) ConfirmUpload(ctx context.Context, id string) (*Asset, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusUploaded {
		return a, nil
	}

	ok, err := s.objects.Exists(ctx, a.Bucket, a.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotUploaded
	}

	a.Status = StatusUploaded
	a.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DownloadURL mints a presigned GET URL for an uploaded asset.
func (s *Service) DownloadURL(ctx context.Context, id string) (*storage.PresignedURL, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusUploaded {
		return nil, ErrNotUploaded
	}
	return s.objects.PresignGet(ctx, a.Bucket, a.Key, s.presignTTL)
}

// RecordOutput registers a worker-produced variant already sitting in the
// processed bucket. Output keys are deterministic per job, so a retried
// render updates the existing record instead of minting a duplicate.
func (s *Service) RecordOutput(ctx context.Context, orgID, key, contentType string, size int64, width, height int, checksum string) (*Asset, error) {
	now := s.now().UTC()

	existing, err := s.store.GetByKey(ctx, s.bucketProcessed, key)
	if err == nil {
		existing.Size = size
		existing.Width = width
		existing.Height = height
		existing.Checksum = checksum
		existing.Status = StatusUploaded
		existing.UpdatedAt = now
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("assets: refresh output: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrAssetNotFound) {
		return nil, err
	}

	a := &Asset{
		ID:          idgen.WithPrefix("ast_"),
		OrgID:       orgID,
		Kind:        KindOutput,
		Filename:    path.Base(key),
		ContentType: contentType,
		Bucket:      s.bucketProcessed,
		Key:         key,
		Size:        size,
		Width:       width,
		Height:      height,
		Checksum:    checksum,
		Status:      StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("assets: record output: %w", err)
	}
	return a, nil
}

// Get returns one asset record.
func (s *Service) Get(ctx context.Context, id string) (*Asset, error) {
	return s.store.Get(ctx, id)
}

// ListByOrg returns an organization's assets, newest first.
func (s *Service) ListByOrg(ctx context.Context, orgID string, limit int) ([]*Asset, error) {
	return s.store.ListByOrg(ctx, orgID, limit)
}

// ProcessedBucket is where the worker writes output variants.
func (s *Service) ProcessedBucket() string {
	return s.bucketProcessed
}

func uploadKey(orgID, assetID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		ext = ".jpg"
	}
	return fmt.Sprintf("uploads/%s/%s%s", orgID, assetID, ext)
}
