package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.ID] = true
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "b"}))
	require.NoError(t, q.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("retry", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop(context.Background()) //nolint:errcheck

	require.NoError(t, q.Enqueue(Job{ID: "r"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "x"}), ErrQueueClosed)

	q.Start(context.Background())
	require.NoError(t, q.Stop(context.Background()))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "y"}), ErrQueueClosed)
}

func TestQueueReportsFullBuffer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("full", func(context.Context, Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	<-started
	require.NoError(t, q.Enqueue(Job{ID: "2"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "3"}), ErrQueueFull)
	assert.Equal(t, 1, q.Pending())

	close(release)
	require.NoError(t, q.Stop(context.Background()))
}
