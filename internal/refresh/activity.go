package refresh

import (
	"sync"
	"sync/atomic"
	"time"

	"alankar-sync/internal/logging"
)

const (
	// quietWindow is how long after the last input event the tracker keeps
	// reporting activity. Polling stays paused inside this window.
	quietWindow = 2000 * time.Millisecond
	// housekeepInterval is the cadence of the flag-clearing sweep.
	housekeepInterval = time.Second
)

// Activity reports whether the user is currently interacting with a
// text-entry control. The poller consults it before every timer tick.
type Activity interface {
	Active() bool
}

// InputTracker is the concrete activity signal. UI adapters call Touch for
// every qualifying input event (keystroke, input change, focus on an
// input-like element); a background sweep clears the flag once the quiet
// window has elapsed with no further touches.
type InputTracker struct {
	logger    *logging.Logger
	quiet     time.Duration
	sweepTick time.Duration

	active    atomic.Bool
	lastTouch atomic.Int64

	stopOnce sync.Once
	done     chan struct{}
}

func NewInputTracker(logger *logging.Logger) *InputTracker {
	return newInputTracker(logger, quietWindow, housekeepInterval)
}

func newInputTracker(logger *logging.Logger, quiet, sweepTick time.Duration) *InputTracker {
	if logger == nil {
		panic("refresh.NewInputTracker: logger must not be nil")
	}
	t := &InputTracker{
		logger:    logger,
		quiet:     quiet,
		sweepTick: sweepTick,
		done:      make(chan struct{}),
	}
	go t.sweep()
	return t
}

// Touch records an input event happening now.
func (t *InputTracker) Touch() {
	t.lastTouch.Store(time.Now().UnixNano())
	t.active.Store(true)
}

func (t *InputTracker) Active() bool {
	return t.active.Load()
}

// Stop ends the background sweep. The tracker must not be reused after Stop.
func (t *InputTracker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

func (t *InputTracker) sweep() {
	ticker := time.NewTicker(t.sweepTick)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			if !t.active.Load() {
				continue
			}
			last := time.Unix(0, t.lastTouch.Load())
			if time.Since(last) > t.quiet {
				t.active.Store(false)
				t.logger.Debug("input activity window elapsed, polling may resume")
			}
		}
	}
}

// idleSignal always reports inactivity. Used when pause-on-input is off.
type idleSignal struct{}

func (idleSignal) Active() bool { return false }
