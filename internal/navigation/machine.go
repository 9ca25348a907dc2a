// Package navigation tracks an in-flight client navigation so a loading
// indicator can be shown before the router swaps the view.
//
// The navigating flag has no setter. Callers change state only through
// Machine.Request and Machine.Reset, and observe it through Machine.Snapshot.
package navigation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/site"
)

// DefaultDelay is how long a loading navigation waits before pushing.
const DefaultDelay = 100 * time.Millisecond

// Phase is the machine state.
type Phase int

// Machine phases.
const (
	PhaseIdle Phase = iota
	PhasePending
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Router performs the actual view change.
type Router interface {
	Push(path string) error
}

// Options modifies a single Request.
type Options struct {
	// ShowLoading defers the push and flips the machine to Pending.
	ShowLoading bool
	// Label overrides the target label derived from the path.
	Label string
}

// Config controls Machine behavior.
type Config struct {
	// Delay before a loading navigation is pushed. Zero uses DefaultDelay.
	Delay time.Duration
	// SupersedePending cancels scheduled pushes that have not fired yet when
	// a new loading request arrives. When false every scheduled push fires,
	// in call order.
	SupersedePending bool
}

// Snapshot is a read-only copy of the machine state.
type Snapshot struct {
	Phase       Phase
	Navigating  bool
	TargetLabel string
	// Scheduled counts pushes that are waiting for their delay or for an
	// earlier push to finish.
	Scheduled int
}

type scheduledPush struct {
	path  string
	timer site.Timer
}

// Machine is the navigation loading state machine. Request and Reset are its
// only mutators. It is safe for concurrent use; scheduled pushes run on
// timer goroutines.
type Machine struct {
	router    Router
	scheduler site.Scheduler
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	turn    *sync.Cond
	phase   Phase
	label   string
	pending []*scheduledPush
}

// New builds a Machine in the Idle phase.
func New(router Router, scheduler site.Scheduler, cfg Config, logger *zap.Logger) *Machine {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Machine{
		router:    router,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger.Named("navigation"),
	}
	m.turn = sync.NewCond(&m.mu)
	return m
}

// Request navigates to path. With ShowLoading the machine enters Pending
// before returning and the push happens after the configured delay;
// otherwise the push happens now and state is untouched.
func (m *Machine) Request(path string, opts Options) {
	if !opts.ShowLoading {
		m.push(path)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = PhasePending
	m.label = opts.Label
	if m.label == "" {
		m.label = LastSegment(path)
	}
	if m.cfg.SupersedePending {
		m.cancelScheduledLocked()
	}
	sp := &scheduledPush{path: path}
	m.pending = append(m.pending, sp)
	sp.timer = m.scheduler.AfterFunc(m.cfg.Delay, func() { m.fire(sp) })
}

// Reset returns the machine to Idle. Scheduled pushes are not canceled.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.phase = PhaseIdle
	m.label = ""
	m.mu.Unlock()
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Phase:       m.phase,
		Navigating:  m.phase == PhasePending,
		TargetLabel: m.label,
		Scheduled:   len(m.pending),
	}
}

// fire waits until sp is the oldest scheduled push, then pushes it outside
// the lock so the router may call back into the machine.
func (m *Machine) fire(sp *scheduledPush) {
	m.mu.Lock()
	for len(m.pending) > 0 && m.pending[0] != sp {
		m.turn.Wait()
	}
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.push(sp.path)

	m.mu.Lock()
	m.pending = m.pending[1:]
	m.turn.Broadcast()
	m.mu.Unlock()
}

func (m *Machine) cancelScheduledLocked() {
	kept := m.pending[:0]
	for _, sp := range m.pending {
		if sp.timer != nil && sp.timer.Stop() {
			m.logger.Debug("superseded scheduled navigation", zap.String("path", sp.path))
			continue
		}
		kept = append(kept, sp)
	}
	m.pending = kept
	m.turn.Broadcast()
}

func (m *Machine) push(path string) {
	if err := m.router.Push(path); err != nil {
		m.logger.Warn("router push failed", zap.String("path", path), zap.Error(err))
	}
}

// LastSegment returns the final non-query segment of path, or "" when the
// path ends in a slash or is empty.
func LastSegment(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
