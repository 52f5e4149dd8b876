package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MemoryStore is an in-memory object store for demo/development and tests.
// Presigned URLs are fake but carry the same shape the S3 store returns.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	baseURL string
}

var _ ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		baseURL: "memory://",
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *MemoryStore) Put(_ context.Context, bucket, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("storage: read body: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := objectKey(bucket, key)
	m.objects[k] = data
	m.types[k] = contentType
	return nil
}

func (m *MemoryStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Exists(_ context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[objectKey(bucket, key)]
	return ok, nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := objectKey(bucket, key)
	delete(m.objects, k)
	delete(m.types, k)
	return nil
}

func (m *MemoryStore) PresignPut(_ context.Context, bucket, key, _ string, ttl time.Duration) (*PresignedURL, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &PresignedURL{
		URL:       m.baseURL + objectKey(bucket, key),
		Method:    "PUT",
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func (m *MemoryStore) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (*PresignedURL, error) {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &PresignedURL{
		URL:       m.baseURL + objectKey(bucket, key),
		Method:    "GET",
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

// ContentType reports the stored content type, for tests.
func (m *MemoryStore) ContentType(bucket, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[objectKey(bucket, key)]
}
