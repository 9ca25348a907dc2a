// Package dispatcher manages worker fan-out over the prefetch queue.
package dispatcher

import (
	"context"
	"sync"

	"github.com/JakeFAU/newsroom-edge/internal/worker"
)

// Runner is one queue consumer.
type Runner interface {
	Run(ctx context.Context)
}

// Dispatcher runs a fixed pool of workers.
type Dispatcher struct {
	workers []Runner
}

// New creates a Dispatcher.
func New(workers ...Runner) *Dispatcher {
	return &Dispatcher{workers: workers}
}

// NewPool builds n identical workers with build.
func NewPool(n int, build func(i int) *worker.Worker) *Dispatcher {
	if n <= 0 {
		n = 1
	}
	workers := make([]Runner, 0, n)
	for i := range n {
		workers = append(workers, build(i))
	}
	return New(workers...)
}

// Run starts all workers and blocks until every worker has returned. Workers
// return when ctx ends or the queue is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(r Runner) {
			defer wg.Done()
			r.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Size reports the pool size.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}
