// Package activity batches reader activity events (view increments and
// prefetch outcomes) and fans them out to sinks without blocking emitters.
package activity

import (
	"errors"
	"fmt"
	"time"
)

// Kind names the activity being reported.
type Kind string

// Supported activity kinds.
const (
	KindViewIncrement   Kind = "VIEW_INCREMENT"
	KindPrefetchQueued  Kind = "PREFETCH_QUEUED"
	KindPrefetchDropped Kind = "PREFETCH_DROPPED"
	KindPrefetchWarmed  Kind = "PREFETCH_WARMED"
	KindPrefetchFailed  Kind = "PREFETCH_FAILED"
)

// Event is one reader activity record.
type Event struct {
	// Kind says what happened.
	Kind Kind `json:"kind"`
	// Key is the video ID or article slug the event is about.
	Key string `json:"key"`
	// Value carries the new view count for view increments.
	Value int64 `json:"value,omitempty"`
	// Signal is the prefetch trigger (hover or touch), if any.
	Signal string `json:"signal,omitempty"`
	// TS is the UTC time the emitter observed the event.
	TS time.Time `json:"ts"`
	// Dur is the time spent on the operation, when measured.
	Dur time.Duration `json:"dur,omitempty"`
	// Note carries short diagnostic context such as error text.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Key == "" {
		return errors.New("key is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindViewIncrement:
		if e.Value <= 0 {
			return errors.New("view increment requires a positive value")
		}
	case KindPrefetchQueued, KindPrefetchDropped, KindPrefetchWarmed, KindPrefetchFailed:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Emitter publishes individual events. Hub satisfies it; a nil *Hub is a
// valid no-op emitter.
type Emitter interface {
	Emit(evt Event)
}
