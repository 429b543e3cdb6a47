package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	done := make(chan struct{}, 2)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Type: "a"})
	require.NoError(t, err)
	_, err = q.Enqueue(Job{Type: "b"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&processed))
}

func TestQueueCoalescesPendingKeys(t *testing.T) {
	q := NewQueue("coalesce", func(ctx context.Context, job Job) error { return nil }, QueueConfig{Workers: 1})
	// Not started workers: set up state manually so jobs stay pending.
	q.started = true
	q.ctx, q.cancel = context.WithCancel(context.Background())
	defer q.cancel()

	coalesced, err := q.Enqueue(Job{Key: "branch-1"})
	require.NoError(t, err)
	assert.False(t, coalesced)

	coalesced, err = q.Enqueue(Job{Key: "branch-1"})
	require.NoError(t, err)
	assert.True(t, coalesced)
	assert.Len(t, q.jobs, 1)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Key: "k"})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job not retried")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{})
	assert.Error(t, err)
}
