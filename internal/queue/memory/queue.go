// Package memory provides the in-process prefetch message queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = site.ErrQueueClosed

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan site.PrefetchRequest
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch: make(chan site.PrefetchRequest, capacity),
	}
}

// Enqueue pushes a message, waiting for room until the context ends.
func (q *Queue) Enqueue(ctx context.Context, item site.PrefetchRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// TryEnqueue pushes a message only if there is room right now.
func (q *Queue) TryEnqueue(item site.PrefetchRequest) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return site.ErrQueueFull
	}
}

// Dequeue pops the next message, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (site.PrefetchRequest, error) {
	select {
	case <-ctx.Done():
		return site.PrefetchRequest{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return site.PrefetchRequest{}, ErrClosed
		}
		return item, nil
	}
}

// Len reports the number of buffered messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the underlying channel for shutdown. Buffered messages can
// still be dequeued.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
