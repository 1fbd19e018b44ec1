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

func TestQueueRetriesFailedTask(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("render", func(ctx context.Context, task Task) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, Options{Workers: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Task{ID: "1", Kind: "receipt"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not retried")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestQueueRestartsAfterStop(t *testing.T) {
	processed := make(chan string, 2)
	q := NewQueue("render", func(ctx context.Context, task Task) error {
		processed <- task.ID
		return nil
	}, Options{Workers: 1})

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Task{ID: "first"}))
	select {
	case id := <-processed:
		assert.Equal(t, "first", id)
	case <-time.After(2 * time.Second):
		t.Fatal("first task not processed")
	}
	q.Stop()

	require.Error(t, q.Enqueue(Task{ID: "rejected"}))

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Task{ID: "second"}))
	select {
	case id := <-processed:
		assert.Equal(t, "second", id)
	case <-time.After(2 * time.Second):
		t.Fatal("second task not processed after restart")
	}
	q.Stop()
}

func TestQueueStopWaitsOutPendingRetry(t *testing.T) {
	failed := make(chan struct{}, 1)
	q := NewQueue("render", func(ctx context.Context, task Task) error {
		select {
		case failed <- struct{}{}:
		default:
		}
		return errors.New("always fails")
	}, Options{Workers: 1, RetryDelay: time.Hour})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Task{ID: "1"}))
	<-failed

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung on the pending retry")
	}
}
