package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"alankar-sync/internal/logging"
)

// DefaultInterval is the poll cadence used when none is configured.
const DefaultInterval = 5 * time.Second

// FetchFunc performs one data refresh. It is supplied by the consuming
// component and must tolerate overlapping invocations: a topic trigger can
// fire while a timer-driven refresh is still in flight. The poller does not
// serialize the two call sites; view state is last-write-wins.
type FetchFunc func(ctx context.Context) error

type Options struct {
	// Enabled starts the interval timer. Topic subscriptions are
	// independent of it.
	Enabled bool
	// PauseOnInput skips timer ticks while the activity signal is set.
	PauseOnInput bool
	// Topics to subscribe on the bus; a trigger on any of them runs the
	// fetch immediately, bypassing both the timer and the activity guard.
	Topics []string
}

func DefaultOptions() Options {
	return Options{Enabled: true, PauseOnInput: true}
}

// Poller re-runs a fetch function on a fixed interval, skipping ticks that
// would disrupt active user input, and accepts out-of-band triggers from the
// refresh bus and from manual callers.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	opts     Options
	bus      *Bus
	activity Activity
	logger   *logging.Logger

	mu          sync.Mutex
	runCtx      context.Context
	stopTimer   context.CancelFunc
	started     bool
	stopped     bool
	paused      bool
	unsubs      []func()
	lastRefresh time.Time

	refreshing atomic.Bool
}

func NewPoller(fetch FetchFunc, interval time.Duration, bus *Bus, activity Activity, logger *logging.Logger, opts Options) *Poller {
	if fetch == nil {
		panic("refresh.NewPoller: fetch must not be nil")
	}
	if logger == nil {
		panic("refresh.NewPoller: logger must not be nil")
	}
	if len(opts.Topics) > 0 && bus == nil {
		panic("refresh.NewPoller: bus required when topics are configured")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if !opts.PauseOnInput || activity == nil {
		activity = idleSignal{}
	}
	return &Poller{
		fetch:    fetch,
		interval: interval,
		opts:     opts,
		bus:      bus,
		activity: activity,
		logger:   logger,
	}
}

// Start subscribes configured topics and, when enabled, begins the timer.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	p.runCtx = ctx

	for _, topic := range p.opts.Topics {
		topic := topic
		p.unsubs = append(p.unsubs, p.bus.Subscribe(topic, func(Payload) {
			p.logger.Debug("topic-triggered refresh", logging.Field("topic", topic))
			p.runFetch(ctx)
		}))
	}

	if p.opts.Enabled && !p.paused {
		p.startTimerLocked()
	}
}

// Stop tears the poller down: the timer stops, topic subscriptions are
// removed, and no further timer-driven fetches occur.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	p.stopTimerLocked()
	for _, unsub := range p.unsubs {
		unsub()
	}
	p.unsubs = nil
}

// Pause clears the active timer. Topic and manual triggers keep working.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.stopTimerLocked()
}

// Resume starts a fresh timer; missed ticks are not replayed.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	if p.started && !p.stopped && p.opts.Enabled {
		p.startTimerLocked()
	}
}

// TriggerRefresh runs the fetch once, outside the timer. It is a no-op while
// the activity signal reports the user typing.
func (p *Poller) TriggerRefresh() {
	p.mu.Lock()
	ctx := p.runCtx
	stopped := p.stopped || !p.started
	p.mu.Unlock()
	if stopped {
		return
	}
	if p.activity.Active() {
		p.logger.Debug("manual refresh skipped: user is typing")
		return
	}
	p.runFetch(ctx)
}

func (p *Poller) IsRefreshing() bool {
	return p.refreshing.Load()
}

func (p *Poller) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// LastRefreshTime is the completion time of the most recent attempt,
// successful or not. Zero until the first attempt completes.
func (p *Poller) LastRefreshTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRefresh
}

func (p *Poller) startTimerLocked() {
	timerCtx, cancel := context.WithCancel(p.runCtx)
	p.stopTimer = cancel
	go p.timerLoop(timerCtx)
}

func (p *Poller) stopTimerLocked() {
	if p.stopTimer != nil {
		p.stopTimer()
		p.stopTimer = nil
	}
}

func (p *Poller) timerLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.activity.Active() {
				// Skipped ticks are dropped, not queued.
				p.logger.Debug("auto-refresh skipped: user is typing")
				continue
			}
			p.runFetch(ctx)
		}
	}
}

// runFetch is shared by the timer, topic triggers, and manual triggers.
// The refreshing flag is advisory UI state, not a mutex.
func (p *Poller) runFetch(ctx context.Context) {
	p.refreshing.Store(true)
	defer func() {
		p.refreshing.Store(false)
		p.mu.Lock()
		p.lastRefresh = time.Now()
		p.mu.Unlock()
	}()
	if err := p.fetch(ctx); err != nil {
		p.logger.Warn("refresh failed", logging.Field("error", err))
	}
}
