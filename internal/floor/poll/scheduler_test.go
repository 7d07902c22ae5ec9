package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a refresh fn that counts invocations and can block.
type counter struct {
	runs  atomic.Int64
	block chan struct{} // when non-nil, each run waits for a receive
}

func (c *counter) fn(ctx context.Context) {
	c.runs.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
		}
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartRunsImmediately(t *testing.T) {
	c := &counter{}
	s := New(time.Hour, c.fn, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return c.runs.Load() == 1 })
}

func TestIntervalTicks(t *testing.T) {
	c := &counter{}
	s := New(10*time.Millisecond, c.fn, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return c.runs.Load() >= 3 })
}

func TestTriggerNow(t *testing.T) {
	c := &counter{}
	s := New(time.Hour, c.fn, nil)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return c.runs.Load() == 1 })
	s.TriggerNow()
	waitFor(t, time.Second, func() bool { return c.runs.Load() == 2 })
}

func TestTriggerNowBeforeStartIsNoop(t *testing.T) {
	c := &counter{}
	s := New(time.Hour, c.fn, nil)
	s.TriggerNow() // must not panic or leak
	if c.runs.Load() != 0 {
		t.Error("no run expected before Start")
	}
}

func TestOverlappingTicksAreSkippedNotQueued(t *testing.T) {
	c := &counter{block: make(chan struct{})}
	s := New(5*time.Millisecond, c.fn, nil)
	s.Start(context.Background())
	defer s.Stop()

	// First run is in flight; let many intervals and triggers pile up.
	waitFor(t, time.Second, func() bool { return c.runs.Load() == 1 })
	for i := 0; i < 5; i++ {
		s.TriggerNow()
	}
	time.Sleep(50 * time.Millisecond)

	// Release the in-flight run; everything that came due during it is
	// drained, so at most one more run follows before the next interval.
	c.block <- struct{}{}
	waitFor(t, time.Second, func() bool { return c.runs.Load() >= 2 })
	c.block <- struct{}{}

	if got := c.runs.Load(); got > 3 {
		t.Errorf("runs = %d, piled-up ticks were queued instead of skipped", got)
	}
	close(c.block)
}

func TestHiddenSuspendsPolling(t *testing.T) {
	c := &counter{}
	s := New(5*time.Millisecond, c.fn, nil)
	s.SetVisible(false)
	s.Start(context.Background())
	defer s.Stop()

	// The immediate startup tick still runs; interval ticks must not.
	waitFor(t, time.Second, func() bool { return c.runs.Load() == 1 })
	time.Sleep(50 * time.Millisecond)
	if got := c.runs.Load(); got != 1 {
		t.Errorf("runs while hidden = %d, want 1", got)
	}
}

func TestBecomingVisibleRefreshesImmediately(t *testing.T) {
	c := &counter{}
	s := New(time.Hour, c.fn, nil)
	s.SetVisible(false)
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return c.runs.Load() == 1 })

	s.SetVisible(true)
	waitFor(t, time.Second, func() bool { return c.runs.Load() == 2 })
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	block := make(chan struct{})
	var finished atomic.Bool
	s := New(time.Hour, func(ctx context.Context) {
		<-block
		finished.Store(true)
	}, nil)
	s.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()

	s.Stop()
	if !finished.Load() {
		t.Error("Stop returned before the in-flight run finished")
	}
	wg.Wait()

	s.Stop() // idempotent
}

func TestContextCancelStopsLoop(t *testing.T) {
	c := &counter{}
	ctx, cancel := context.WithCancel(context.Background())
	s := New(5*time.Millisecond, c.fn, nil)
	s.Start(ctx)

	waitFor(t, time.Second, func() bool { return c.runs.Load() >= 1 })
	cancel()
	time.Sleep(30 * time.Millisecond)
	before := c.runs.Load()
	time.Sleep(30 * time.Millisecond)
	if c.runs.Load() != before {
		t.Error("loop kept running after context cancellation")
	}
	s.Stop()
}
