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

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("ledger", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Kind: "reconcile"}))
}

func TestQueueRunsJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []Job
	done := make(chan struct{}, 3)
	q := NewQueue("ledger", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{Kind: "reconcile"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	for _, job := range seen {
		assert.NotEmpty(t, job.ID)
		assert.False(t, job.Enqueued.IsZero())
	}
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var attempts int32
	done := make(chan Job, 1)
	q := NewQueue("ledger", func(_ context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("database busy")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Kind: "reconcile"}))
	select {
	case job := <-done:
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("ledger", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("still failing")
	}, QueueConfig{MaxRetries: 1, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{Kind: "reconcile"}))
	time.Sleep(150 * time.Millisecond)
	q.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestQueueEvery(t *testing.T) {
	ticks := make(chan Job, 8)
	q := NewQueue("ledger", func(_ context.Context, job Job) error {
		select {
		case ticks <- job:
		default:
		}
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go q.Every(ctx, 10*time.Millisecond, "reconcile")
	defer cancel()

	for i := 0; i < 2; i++ {
		select {
		case job := <-ticks:
			assert.Equal(t, "reconcile", job.Kind)
		case <-time.After(2 * time.Second):
			t.Fatal("scheduler did not tick")
		}
	}
}
