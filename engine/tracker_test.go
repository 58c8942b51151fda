package engine

import (
	"testing"
	"time"
)

func TestTrackerKeepsLastKnownPositionWithoutClock(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SetSegmentRange(10.0, 13.0); err != nil {
		t.Fatal(err)
	}
	if err := c.Seek(1.0); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(); err != nil {
		t.Fatal(err)
	}

	// The fake clock never comes up; several ticks must pass without the
	// position collapsing to zero.
	time.Sleep(40 * time.Millisecond)
	if got := c.CurrentPosition(); got != 1.0 {
		t.Errorf("position without clock = %.3f, want last known 1.0", got)
	}
	if got := c.State(); got != StatePlaying {
		t.Errorf("state = %s, want playing", got)
	}
}

func TestTrackerClampsPositionToSegment(t *testing.T) {
	c, pipe := newTestController(t)
	if err := c.SetSegmentRange(10.0, 13.0); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(); err != nil {
		t.Fatal(err)
	}

	// A clock overshoot must never surface a position past the bound.
	pipe.advance(9999)
	waitFor(t, func() bool { return c.CurrentPosition() > 0 }, "clock pickup")
	if got := c.CurrentPosition(); got > 3.0 {
		t.Errorf("position = %.3f, want clamped to 3.0", got)
	}
}

func TestTrackerForcesStopWhenCompletionNeverFires(t *testing.T) {
	c, pipe := newTestController(t)
	if err := c.SetSegmentRange(10.0, 13.0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetLoop(true, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(); err != nil {
		t.Fatal(err)
	}

	// Pin the clock at the segment end and never deliver a completion. The
	// grace window defends against exactly this; the forced stop is
	// non-looping even though looping is enabled.
	pipe.advance(3000)

	waitState(t, c, StateIdle)
	if got := c.CurrentPosition(); got != 0 {
		t.Errorf("position after forced stop = %.3f, want 0", got)
	}
	if got := pipe.scheduleCount(); got != 1 {
		t.Errorf("schedule count = %d, want 1 (forced stop must not loop)", got)
	}
}

func TestTrackerSuspendedAfterPause(t *testing.T) {
	c, pipe := newTestController(t)
	if err := c.SetSegmentRange(10.0, 13.0); err != nil {
		t.Fatal(err)
	}
	if err := c.Play(); err != nil {
		t.Fatal(err)
	}
	pipe.advance(500)
	waitFor(t, func() bool { return c.CurrentPosition() >= 0.5 }, "clock pickup")

	c.Pause()

	// Pinning the clock at the end while paused must not trip the
	// grace-window stop; tracking is suspended.
	pipe.advance(3000)
	time.Sleep(100 * time.Millisecond)
	if got := c.State(); got != StatePaused {
		t.Errorf("state = %s, want paused", got)
	}
}
