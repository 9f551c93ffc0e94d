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
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "job"}))
	}
	q.Stop(time.Second)

	assert.Equal(t, int32(5), atomic.LoadInt32(&handled))
}

func TestQueueWithoutRetriesDropsOnFirstFailure(t *testing.T) {
	var attempts int32
	dropped := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{MaxRetries: 0, OnDrop: func(j Job, err error) { dropped <- j }})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "mail-1"}))

	select {
	case job := <-dropped:
		assert.Equal(t, "mail-1", job.ID)
	case <-time.After(time.Second):
		t.Fatal("job was not dropped")
	}
	q.Stop(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestQueueRetriesConfiguredTimes(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{ID: "mail-2"}))
	q.Stop(time.Second)

	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "x"})
	assert.ErrorIs(t, err, ErrNotStarted)
}
