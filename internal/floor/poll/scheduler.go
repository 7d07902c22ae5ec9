// Package poll drives the periodic refresh loop.
//
// The source of truth is polled, not pushed. The scheduler runs one refresh
// function on a fixed interval while the hosting view is visible, supports
// an out-of-band tick after local mutations, and never lets two refreshes
// of the same resource overlap: a tick that comes due while one is in
// flight is skipped, not queued.
package poll

import (
	"context"
	"sync"
	"time"

	"mycafe/pkg/logger"
)

// Scheduler runs a refresh function on a fixed interval.
type Scheduler struct {
	interval time.Duration
	fn       func(context.Context)
	log      *logger.Logger

	mu      sync.Mutex
	visible bool
	running bool
	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// New creates a scheduler. fn is invoked from a single goroutine, so
// consecutive refreshes are naturally serialized.
func New(interval time.Duration, fn func(context.Context), log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	return &Scheduler{
		interval: interval,
		fn:       fn,
		log:      log.WithComponent("poll-scheduler"),
		visible:  true,
	}
}

// Start launches the polling loop with one immediate tick. Returns
// immediately; Stop tears the loop down deterministically.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.trigger = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	trigger, stop, done := s.trigger, s.stop, s.done
	s.mu.Unlock()

	go s.loop(ctx, trigger, stop, done)
}

func (s *Scheduler) loop(ctx context.Context, trigger, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Visible() {
				continue
			}
			s.runOnce(ctx)
		case <-trigger:
			s.runOnce(ctx)
		}
		// A tick or trigger that came due while fn was running is
		// dropped: refreshes are skipped, never queued.
		s.drain(ticker, trigger)
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.fn(ctx)
}

func (s *Scheduler) drain(ticker *time.Ticker, trigger chan struct{}) {
	for {
		select {
		case <-ticker.C:
		case <-trigger:
		default:
			return
		}
	}
}

// Stop halts the loop and waits for an in-flight refresh to return.
// Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

// TriggerNow requests an out-of-band refresh, shortening the window in
// which another client could act on state we just changed. Dropped if a
// refresh is already pending.
func (s *Scheduler) TriggerNow() {
	s.mu.Lock()
	running, trigger := s.running, s.trigger
	s.mu.Unlock()
	if !running {
		return
	}
	select {
	case trigger <- struct{}{}:
	default:
	}
}

// SetVisible gates interval ticks. Turning visibility back on performs one
// immediate refresh so the operator never looks at arbitrarily stale data
// after returning to the view.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	was := s.visible
	s.visible = visible
	running := s.running
	s.mu.Unlock()

	if visible && !was && running {
		s.TriggerNow()
	}
}

// Visible reports whether interval ticks are currently enabled.
func (s *Scheduler) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}
