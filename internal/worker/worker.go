// Package worker implements the prefetch warm-up loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/metrics"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// Warmer loads an article into the keyed cache.
type Warmer interface {
	Warm(ctx context.Context, slug string) error
}

// Config controls Worker behavior.
type Config struct {
	// WarmTimeout bounds a single warm-up. Zero means no extra bound.
	WarmTimeout time.Duration
}

// Worker consumes prefetch messages and warms the cache. Failures are
// logged and counted, never propagated.
type Worker struct {
	queue  site.Queue
	warmer Warmer
	clock  site.Clock
	events activity.Emitter
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker. events may be nil.
func New(
	queue site.Queue,
	warmer Warmer,
	clock site.Clock,
	events activity.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:  queue,
		warmer: warmer,
		clock:  clock,
		events: events,
		cfg:    cfg,
		logger: logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, site.ErrQueueClosed) {
				w.logger.Debug("queue closed, worker exiting")
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued prefetch", zap.String("id", item.ID), zap.String("slug", item.Key))
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item site.PrefetchRequest) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	warmCtx := ctx
	cancel := func() {}
	if w.cfg.WarmTimeout > 0 {
		warmCtx, cancel = context.WithTimeout(ctx, w.cfg.WarmTimeout)
	}
	defer cancel()

	start := w.clock.Now()
	err := w.warmer.Warm(warmCtx, item.Key)
	elapsed := w.clock.Now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	metrics.ObservePrefetchWarm(err)

	evt := activity.Event{
		Kind:   activity.KindPrefetchWarmed,
		Key:    item.Key,
		Signal: string(item.Signal),
		TS:     w.clock.Now(),
		Dur:    elapsed,
	}
	if err != nil {
		w.logger.Warn("prefetch warm failed",
			zap.String("id", item.ID),
			zap.String("slug", item.Key),
			zap.String("signal", string(item.Signal)),
			zap.Error(err),
		)
		evt.Kind = activity.KindPrefetchFailed
		evt.Note = err.Error()
	} else {
		w.logger.Debug("prefetch warmed", zap.String("slug", item.Key), zap.Duration("dur", elapsed))
	}
	if w.events != nil {
		w.events.Emit(evt)
	}
}
