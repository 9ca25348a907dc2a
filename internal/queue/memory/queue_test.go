package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsroom-edge/internal/site"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan site.PrefetchRequest, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	require.NoError(t, q.Enqueue(context.Background(), site.PrefetchRequest{Key: "election-night"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "election-night", got.Key)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return message")
	}
}

func TestQueueTryEnqueueFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.NoError(t, q.TryEnqueue(site.PrefetchRequest{Key: "a"}))
	require.Equal(t, 1, q.Len())

	start := time.Now()
	err := q.TryEnqueue(site.PrefetchRequest{Key: "b"})
	require.ErrorIs(t, err, site.ErrQueueFull)
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := qDequeue.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	qEnqueue := NewQueue(1)
	require.NoError(t, qEnqueue.Enqueue(context.Background(), site.PrefetchRequest{Key: "primed"}))
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	err = qEnqueue.Enqueue(ctx, site.PrefetchRequest{})
	require.EqualError(t, err, "enqueue canceled: context canceled")
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.TryEnqueue(site.PrefetchRequest{Key: "buffered"}))
	q.Close()

	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "buffered", item.Key)

	_, err = q.Dequeue(context.Background())
	require.True(t, errors.Is(err, ErrClosed))
	require.ErrorIs(t, q.TryEnqueue(site.PrefetchRequest{}), ErrClosed)
	require.ErrorIs(t, q.Enqueue(context.Background(), site.PrefetchRequest{}), ErrClosed)
	// Closing twice should be safe.
	q.Close()
}
