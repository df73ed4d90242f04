package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)

	require.NoError(t, Enqueue(ctx, r, ImportQueue, ImportJob{URL: "http://a/list.m3u"}))
	require.NoError(t, Enqueue(ctx, r, ImportQueue, ImportJob{URL: "http://b/list.m3u", UseTvgID: true}))
	n, err := QueueLen(ctx, r, ImportQueue)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	job, err := Dequeue(ctx, r, ImportQueue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "http://a/list.m3u", job.URL)

	job, err = Dequeue(ctx, r, ImportQueue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "http://b/list.m3u", job.URL)
	assert.True(t, job.UseTvgID)
}

func TestTryLock_ExclusiveUntilUnlocked(t *testing.T) {
	ctx := context.Background()
	r := newTestRedis(t)
	key := ImportLockKey("http://a/list.m3u")

	unlock, err := TryLock(ctx, r, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, IsLocked(ctx, r, key))

	_, err = TryLock(ctx, r, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	assert.False(t, IsLocked(ctx, r, key))

	unlock2, err := TryLock(ctx, r, key, time.Minute)
	require.NoError(t, err)
	unlock2()
}
