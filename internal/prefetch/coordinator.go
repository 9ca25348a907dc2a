// Package prefetch turns hover and touch intents on article links into
// background cache warm-up messages.
package prefetch

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/metrics"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// Enqueuer is the non-blocking half of site.Queue.
type Enqueuer interface {
	TryEnqueue(item site.PrefetchRequest) error
}

// Coordinator sends prefetch messages for intent signals. Its methods never
// block and never return errors to the caller.
type Coordinator struct {
	queue  Enqueuer
	ids    site.IDGenerator
	clock  site.Clock
	events activity.Emitter
	logger *zap.Logger
}

// New constructs a Coordinator. events may be nil.
func New(queue Enqueuer, ids site.IDGenerator, clock site.Clock, events activity.Emitter, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		queue:  queue,
		ids:    ids,
		clock:  clock,
		events: events,
		logger: logger.Named("prefetch"),
	}
}

// OnHoverIntent requests a warm-up of slug after a pointer hovers its link.
func (c *Coordinator) OnHoverIntent(slug string) {
	c.Intent(site.SignalHover, slug)
}

// OnTouchIntent requests a warm-up of slug when a touch starts on its link.
func (c *Coordinator) OnTouchIntent(slug string) {
	c.Intent(site.SignalTouch, slug)
}

// Intent sends a prefetch message keyed by slug. It reports whether the
// message was queued; an empty slug or a full queue drops it.
func (c *Coordinator) Intent(signal site.Signal, slug string) bool {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return false
	}
	now := c.clock.Now()
	id, err := c.ids.NewID()
	if err != nil {
		c.logger.Debug("prefetch id generation failed", zap.Error(err))
	}
	req := site.PrefetchRequest{ID: id, Key: slug, Signal: signal, Requested: now}

	if err := c.queue.TryEnqueue(req); err != nil {
		c.logger.Debug("prefetch dropped",
			zap.String("slug", slug),
			zap.String("signal", string(signal)),
			zap.Error(err),
		)
		metrics.ObservePrefetchRequest(string(signal), false)
		c.emit(activity.Event{Kind: activity.KindPrefetchDropped, Key: slug, Signal: string(signal), TS: now, Note: err.Error()})
		return false
	}
	metrics.ObservePrefetchRequest(string(signal), true)
	c.emit(activity.Event{Kind: activity.KindPrefetchQueued, Key: slug, Signal: string(signal), TS: now})
	return true
}

func (c *Coordinator) emit(evt activity.Event) {
	if c.events != nil {
		c.events.Emit(evt)
	}
}

// ParseSignal maps the wire name of a signal. An empty name means hover.
func ParseSignal(name string) (site.Signal, error) {
	switch site.Signal(strings.ToLower(strings.TrimSpace(name))) {
	case "", site.SignalHover:
		return site.SignalHover, nil
	case site.SignalTouch:
		return site.SignalTouch, nil
	default:
		return "", fmt.Errorf("unknown prefetch signal %q", name)
	}
}
