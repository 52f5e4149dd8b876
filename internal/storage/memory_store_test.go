package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "raw", "org_1/ast_1.jpg", bytes.NewReader([]byte("jpeg-bytes")), "image/jpeg"))

	ok, err := store.Exists(ctx, "raw", "org_1/ast_1.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", store.ContentType("raw", "org_1/ast_1.jpg"))

	rc, err := store.Get(ctx, "raw", "org_1/ast_1.jpg")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestMemoryStoreBucketsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "raw", "key", bytes.NewReader([]byte("a")), "image/png"))

	_, err := store.Get(ctx, "processed", "key")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "raw", "key", bytes.NewReader([]byte("a")), "image/png"))
	require.NoError(t, store.Delete(ctx, "raw", "key"))

	_, err := store.Get(ctx, "raw", "key")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryStorePresign(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	put, err := store.PresignPut(ctx, "raw", "key", "image/jpeg", 0)
	require.NoError(t, err)
	assert.Equal(t, "PUT", put.Method)
	assert.Equal(t, "memory://raw/key", put.URL)
	assert.WithinDuration(t, time.Now().Add(DefaultPresignTTL), put.ExpiresAt, 5*time.Second)

	get, err := store.PresignGet(ctx, "raw", "key", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "GET", get.Method)
}
