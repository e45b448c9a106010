package refresh

import (
	"testing"
	"time"

	"alankar-sync/internal/logging"
)

func TestInputTracker_TouchSetsActiveUntilQuietWindowElapses(t *testing.T) {
	tracker := newInputTracker(logging.New(false), 40*time.Millisecond, 10*time.Millisecond)
	defer tracker.Stop()

	if tracker.Active() {
		t.Fatalf("Active() = true before any touch")
	}

	tracker.Touch()
	if !tracker.Active() {
		t.Fatalf("Active() = false immediately after Touch")
	}

	deadline := time.Now().Add(time.Second)
	for tracker.Active() {
		if time.Now().After(deadline) {
			t.Fatalf("Active() still true after quiet window elapsed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInputTracker_RepeatedTouchesExtendTheWindow(t *testing.T) {
	tracker := newInputTracker(logging.New(false), 60*time.Millisecond, 10*time.Millisecond)
	defer tracker.Stop()

	tracker.Touch()
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		tracker.Touch()
		if !tracker.Active() {
			t.Fatalf("Active() = false while touches keep arriving")
		}
	}
}

func TestInputTracker_StopIsIdempotent(t *testing.T) {
	tracker := newInputTracker(logging.New(false), 40*time.Millisecond, 10*time.Millisecond)
	tracker.Stop()
	tracker.Stop()
}
