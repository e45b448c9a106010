package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"alankar-sync/internal/logging"
)

type stubActivity struct {
	active atomic.Bool
}

func (s *stubActivity) Active() bool { return s.active.Load() }

func waitForCalls(t *testing.T, calls *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("calls = %d, want at least %d", calls.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoller_TimerRunsFetchOnInterval(t *testing.T) {
	logger := logging.New(false)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	p := NewPoller(fetch, 20*time.Millisecond, nil, nil, logger, Options{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	start := time.Now()
	p.Start(ctx)
	defer p.Stop()

	waitForCalls(t, &calls, 3)

	elapsed := time.Since(start)
	if got, max := int64(calls.Load()), int64(elapsed/(20*time.Millisecond))+1; got > max {
		t.Fatalf("calls = %d after %v, want at most %d", got, elapsed, max)
	}

	if p.LastRefreshTime().IsZero() {
		t.Fatalf("LastRefreshTime is zero after fetches completed")
	}
}

func TestPoller_OverlappingTriggerAndTimerBothComplete(t *testing.T) {
	logger := logging.New(false)
	var entered atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) error {
		if entered.Add(1) == 1 {
			<-release
		}
		return nil
	}

	bus := NewBus(logger)
	opts := DefaultOptions()
	opts.Topics = []string{TopicStoreOrders}
	p := NewPoller(fetch, 15*time.Millisecond, bus, nil, logger, opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	waitForCalls(t, &entered, 1)

	// A topic trigger arriving while a timer fetch is in flight still
	// runs; the two refreshes may interleave.
	bus.Trigger(TopicStoreOrders, nil)
	if got := entered.Load(); got != 2 {
		t.Fatalf("entered = %d after trigger during in-flight fetch, want 2", got)
	}
	close(release)
}

func TestPoller_SkipsTicksWhileUserIsTyping(t *testing.T) {
	logger := logging.New(false)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	activity := &stubActivity{}
	activity.active.Store(true)

	p := NewPoller(fetch, 15*time.Millisecond, nil, activity, logger, Options{Enabled: true, PauseOnInput: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("calls while typing = %d, want 0", got)
	}

	activity.active.Store(false)
	waitForCalls(t, &calls, 2)
}

func TestPoller_TriggerRefreshRespectsActivityGuard(t *testing.T) {
	logger := logging.New(false)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	activity := &stubActivity{}
	activity.active.Store(true)

	p := NewPoller(fetch, time.Hour, nil, activity, logger, Options{Enabled: false, PauseOnInput: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.TriggerRefresh()
	if got := calls.Load(); got != 0 {
		t.Fatalf("calls during typing = %d, want 0", got)
	}

	activity.active.Store(false)
	p.TriggerRefresh()
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls after quiet = %d, want 1", got)
	}
}

func TestPoller_TopicTriggerBypassesActivityGuard(t *testing.T) {
	logger := logging.New(false)
	bus := NewBus(logger)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	activity := &stubActivity{}
	activity.active.Store(true)

	p := NewPoller(fetch, time.Hour, bus, activity, logger, Options{
		Enabled:      false,
		PauseOnInput: true,
		Topics:       []string{TopicAdminApprovals},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	// An explicit invalidation outranks the typing guard.
	bus.Trigger(TopicAdminApprovals, nil)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestPoller_StopRemovesTopicSubscriptionsAndHaltsTimer(t *testing.T) {
	logger := logging.New(false)
	bus := NewBus(logger)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	p := NewPoller(fetch, 15*time.Millisecond, bus, nil, logger, Options{
		Enabled: true,
		Topics:  []string{TopicStoreOrders},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	waitForCalls(t, &calls, 1)
	p.Stop()

	if got := bus.ListenerCount(TopicStoreOrders); got != 0 {
		t.Fatalf("ListenerCount after Stop = %d, want 0", got)
	}

	settled := calls.Load()
	time.Sleep(60 * time.Millisecond)
	bus.Trigger(TopicStoreOrders, nil)
	if got := calls.Load(); got != settled {
		t.Fatalf("calls after Stop = %d, want %d", got, settled)
	}
}

func TestPoller_PauseAndResumeControlTimer(t *testing.T) {
	logger := logging.New(false)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return nil
	}

	p := NewPoller(fetch, 15*time.Millisecond, nil, nil, logger, Options{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	waitForCalls(t, &calls, 1)
	p.Pause()
	if !p.IsPaused() {
		t.Fatalf("IsPaused() = false after Pause")
	}

	settled := calls.Load()
	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != settled {
		t.Fatalf("calls while paused = %d, want %d", got, settled)
	}

	p.Resume()
	waitForCalls(t, &calls, settled+1)
}

func TestPoller_FetchErrorStillRecordsAttempt(t *testing.T) {
	logger := logging.New(false)
	var calls atomic.Int32
	fetch := func(context.Context) error {
		calls.Add(1)
		return context.DeadlineExceeded
	}

	p := NewPoller(fetch, time.Hour, nil, nil, logger, Options{Enabled: false})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.TriggerRefresh()
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if p.LastRefreshTime().IsZero() {
		t.Fatalf("LastRefreshTime is zero after failed attempt")
	}
}
