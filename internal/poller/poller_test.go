package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eufr4sio/minas-discord-bot/internal/metrics"
	"github.com/eufr4sio/minas-discord-bot/internal/presence"
)

// scriptedSource replays one snapshot per call, repeating the last
type scriptedSource struct {
	mu        sync.Mutex
	snapshots [][]presence.Member
	errs      []error
	calls     int
}

func (s *scriptedSource) Members(ctx context.Context) ([]presence.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	return s.snapshots[i], nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingDispatcher struct {
	mu      sync.Mutex
	games   []string
	panicOn string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, ev presence.StartEvent) bool {
	if ev.Game == d.panicOn {
		panic("boom")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.games = append(d.games, ev.Game)
	return true
}

func (d *recordingDispatcher) Games() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.games...)
}

func TestPollDispatchesStartEvents(t *testing.T) {
	source := &scriptedSource{snapshots: [][]presence.Member{
		{{UserID: "1"}},
		{{UserID: "1", Game: "A"}},
		{{UserID: "1", Game: "B"}},
		{{UserID: "1"}},
	}}
	dispatcher := &recordingDispatcher{}
	p := New(source, presence.NewTracker(false), dispatcher, metrics.New(), time.Minute)

	for i := 0; i < 4; i++ {
		p.poll(context.Background())
	}
	assert.Equal(t, []string{"A", "B"}, dispatcher.Games())
}

func TestPollSurvivesSourceError(t *testing.T) {
	source := &scriptedSource{
		snapshots: [][]presence.Member{nil, {{UserID: "1", Game: "A"}}},
		errs:      []error{errors.New("gateway hiccup")},
	}
	dispatcher := &recordingDispatcher{}
	p := New(source, presence.NewTracker(false), dispatcher, nil, time.Minute)

	p.poll(context.Background())
	p.poll(context.Background())
	assert.Equal(t, []string{"A"}, dispatcher.Games())
}

func TestPollIsolatesDispatchPanics(t *testing.T) {
	source := &scriptedSource{snapshots: [][]presence.Member{{
		{UserID: "1", Game: "Bad"},
		{UserID: "2", Game: "Good"},
	}}}
	dispatcher := &recordingDispatcher{panicOn: "Bad"}
	p := New(source, presence.NewTracker(false), dispatcher, nil, time.Minute)

	assert.NotPanics(t, func() { p.poll(context.Background()) })
	assert.Equal(t, []string{"Good"}, dispatcher.Games())
}

type panickingSource struct{}

func (panickingSource) Members(ctx context.Context) ([]presence.Member, error) {
	panic("state corrupted")
}

func TestPollRecoversTickPanic(t *testing.T) {
	p := New(panickingSource{}, presence.NewTracker(false), &recordingDispatcher{}, nil, time.Minute)
	assert.NotPanics(t, func() { p.poll(context.Background()) })
}

func TestStartPollsImmediatelyAndStops(t *testing.T) {
	source := &scriptedSource{snapshots: [][]presence.Member{{{UserID: "1", Game: "A"}}}}
	dispatcher := &recordingDispatcher{}
	p := New(source, presence.NewTracker(false), dispatcher, nil, 10*time.Millisecond)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return source.Calls() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()

	calls := source.Calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, source.Calls(), "no ticks after Stop returns")
	assert.Equal(t, []string{"A"}, dispatcher.Games())
}

func TestStartStopsOnContextCancel(t *testing.T) {
	source := &scriptedSource{snapshots: [][]presence.Member{nil}}
	p := New(source, presence.NewTracker(false), &recordingDispatcher{}, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	p := New(&scriptedSource{}, presence.NewTracker(false), &recordingDispatcher{}, nil, 0)
	assert.Equal(t, 30*time.Second, p.interval)
}
