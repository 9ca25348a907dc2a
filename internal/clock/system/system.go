// Package system provides the wall clock and timer scheduling backed by the
// time package.
package system

import (
	"time"

	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// Clock implements site.Clock and site.Scheduler using real time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// AfterFunc runs fn on its own goroutine once d has elapsed.
func (Clock) AfterFunc(d time.Duration, fn func()) site.Timer {
	return time.AfterFunc(d, fn)
}
