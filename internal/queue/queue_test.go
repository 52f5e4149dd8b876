package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueueRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue("redis://"+mr.Addr(), "jobs:test")
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	sent := Message{JobID: "job_1", OrgID: "org_1", Kind: "composite", EnqueuedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, q.Publish(ctx, sent))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	got, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, sent, *got)
}

func TestRedisQueueFIFO(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue("redis://"+mr.Addr(), "jobs:test")
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	for _, id := range []string{"job_1", "job_2", "job_3"} {
		require.NoError(t, q.Publish(ctx, Message{JobID: id}))
	}
	for _, want := range []string{"job_1", "job_2", "job_3"} {
		got, err := q.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.JobID)
	}
}

func TestRedisQueueConsumeHonorsContext(t *testing.T) {
	mr := miniredis.RunT(t)
	q, err := NewRedisQueue("redis://"+mr.Addr(), "jobs:test")
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = q.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRedisQueueRejectsBadURL(t *testing.T) {
	_, err := NewRedisQueue("not-a-url", "jobs:test")
	assert.Error(t, err)
}

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Message{JobID: "job_1"}))

	got, err := q.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_1", got.JobID)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(4)
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), Message{JobID: "job_1"})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = q.Consume(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
