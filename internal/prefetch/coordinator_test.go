package prefetch

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsroom-edge/internal/activity"
	"github.com/JakeFAU/newsroom-edge/internal/queue/memory"
	"github.com/JakeFAU/newsroom-edge/internal/site"
)

var fixedNow = time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)

func TestCoordinatorSendsKeyedMessages(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	events := &recordingEmitter{}
	c := New(q, &fakeIDs{}, fakeClock{now: fixedNow}, events, zap.NewNop())

	c.OnHoverIntent("budget-vote")
	c.OnTouchIntent("  storm-warning ")

	require.Equal(t, 2, q.Len())
	first := mustDequeue(t, q)
	require.Equal(t, site.PrefetchRequest{ID: "id-1", Key: "budget-vote", Signal: site.SignalHover, Requested: fixedNow}, first)
	second := mustDequeue(t, q)
	require.Equal(t, "storm-warning", second.Key)
	require.Equal(t, site.SignalTouch, second.Signal)

	kinds := events.kinds()
	require.Equal(t, []activity.Kind{activity.KindPrefetchQueued, activity.KindPrefetchQueued}, kinds)
}

func TestCoordinatorIgnoresEmptySlug(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	c := New(q, &fakeIDs{}, fakeClock{now: fixedNow}, nil, zap.NewNop())
	require.False(t, c.Intent(site.SignalHover, "   "))
	require.Zero(t, q.Len())
}

func TestCoordinatorNeverBlocksOnFullQueue(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	events := &recordingEmitter{}
	c := New(q, &fakeIDs{}, fakeClock{now: fixedNow}, events, zap.NewNop())

	require.True(t, c.Intent(site.SignalHover, "a"))

	done := make(chan bool, 1)
	go func() { done <- c.Intent(site.SignalHover, "b") }()
	select {
	case queued := <-done:
		require.False(t, queued)
	case <-time.After(time.Second):
		t.Fatal("intent blocked on a full queue")
	}
	require.Equal(t, 1, q.Len())
	require.Equal(t, []activity.Kind{activity.KindPrefetchQueued, activity.KindPrefetchDropped}, events.kinds())
}

func TestCoordinatorIDFailureStillQueues(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(1)
	c := New(q, &fakeIDs{err: errors.New("entropy exhausted")}, fakeClock{now: fixedNow}, nil, nil)
	require.True(t, c.Intent(site.SignalTouch, "a"))
	require.Empty(t, mustDequeue(t, q).ID)
}

func TestParseSignal(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in      string
		want    site.Signal
		wantErr bool
	}{
		{"", site.SignalHover, false},
		{"hover", site.SignalHover, false},
		{"TOUCH", site.SignalTouch, false},
		{"click", "", true},
	}
	for _, tc := range testCases {
		got, err := ParseSignal(tc.in)
		if tc.wantErr {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}
}

func mustDequeue(t *testing.T, q *memory.Queue) site.PrefetchRequest {
	t.Helper()
	q.Close()
	item, err := q.Dequeue(t.Context())
	require.NoError(t, err)
	return item
}

type fakeIDs struct {
	mu  sync.Mutex
	n   int
	err error
}

func (f *fakeIDs) NewID() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return "id-" + strconv.Itoa(f.n), nil
}

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

type recordingEmitter struct {
	mu     sync.Mutex
	events []activity.Event
}

func (r *recordingEmitter) Emit(evt activity.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingEmitter) kinds() []activity.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]activity.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
