package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/eufr4sio/minas-discord-bot/internal/metrics"
	"github.com/eufr4sio/minas-discord-bot/internal/presence"
)

// MemberSource reads the current presence of every guild member
type MemberSource interface {
	Members(ctx context.Context) ([]presence.Member, error)
}

// Dispatcher handles a detected game start
type Dispatcher interface {
	Dispatch(ctx context.Context, ev presence.StartEvent) bool
}

// Poller periodically samples member presence and dispatches game starts
type Poller struct {
	source     MemberSource
	tracker    *presence.Tracker
	dispatcher Dispatcher
	metrics    *metrics.Metrics
	interval   time.Duration

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new Poller. A non-positive interval defaults to 30 seconds.
func New(source MemberSource, tracker *presence.Tracker, dispatcher Dispatcher, m *metrics.Metrics, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		source:     source,
		tracker:    tracker,
		dispatcher: dispatcher,
		metrics:    m,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start runs the polling loop in the background
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// run polls once immediately, then on every tick until stopped
func (p *Poller) run(ctx context.Context) {
	slog.Info("Starting poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial poll
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Poller stopped (context cancelled)")
			return
		case <-p.stopChan:
			slog.Info("Poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Stop signals the poller to stop and waits for the loop to exit
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// poll runs one tick. Failures are logged; they never stop the loop.
func (p *Poller) poll(ctx context.Context) {
	p.metrics.Tick()
	if err := p.tick(ctx); err != nil {
		slog.Error("Presence tick failed", "error", err)
		p.metrics.TickFailed()
	}
}

func (p *Poller) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tick: %v\n%s", r, debug.Stack())
		}
	}()

	members, err := p.source.Members(ctx)
	if err != nil {
		return fmt.Errorf("failed to read members: %w", err)
	}

	events := p.tracker.Observe(members)
	p.metrics.TrackedMembers(p.tracker.Len())
	p.metrics.StartEvents(len(events))

	slog.Debug("Polled presence", "members", len(members), "starts", len(events))

	for _, ev := range events {
		select {
		case <-ctx.Done():
			return nil
		default:
			p.dispatch(ctx, ev)
		}
	}
	return nil
}

// dispatch isolates one event so a failure cannot affect the others
func (p *Poller) dispatch(ctx context.Context, ev presence.StartEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Notification dispatch panicked", "game", ev.Game, "player", ev.Member.UserID, "panic", r)
			p.metrics.NotificationDropped(metrics.DropDispatchPanic)
		}
	}()

	slog.Info("Game start detected", "game", ev.Game, "player", ev.Member.DisplayName)
	p.dispatcher.Dispatch(ctx, ev)
}
