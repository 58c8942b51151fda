package engine

import "time"

// Position tracking polls the pipeline frame clock on a fixed interval while
// the state is Playing. It is fully suspended while paused, idle, counting in
// or waiting out a loop delay, so a stale clock is never surfaced.

func (c *Controller) startTrackingLocked(gen uint64) {
	c.stopTrackingLocked()
	stop := make(chan struct{})
	c.trackStop = stop

	go func() {
		tick := time.NewTicker(c.cfg.TrackInterval)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				c.trackTick(gen)
			}
		}
	}()
}

func (c *Controller) stopTrackingLocked() {
	if c.trackStop != nil {
		close(c.trackStop)
		c.trackStop = nil
	}
}

// trackTick recomputes the logical position from the pipeline's frame clock,
// clamped to the segment bound. Before the first render callback the clock is
// unavailable and the last known position is kept, which avoids a visible
// jump to zero right after scheduling.
func (c *Controller) trackTick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StatePlaying || c.delayPending {
		return
	}

	sr := c.session.File.SampleRate
	length := c.active.Length(sr)

	if frames, ok := c.pipe.Position(); ok {
		pos := c.active.Offset(sr) + float64(frames)/float64(sr)
		if pos > length {
			pos = length
		}
		c.position = pos
	}
	c.emitPositionLocked()

	// The completion callback normally fires before the tracked position
	// pins at the segment end. If it never arrives, force a non-looping
	// stop after the grace window instead of spinning forever.
	if c.position >= length {
		if c.overrunAt.IsZero() {
			c.overrunAt = time.Now()
		} else if time.Since(c.overrunAt) >= c.cfg.CompletionGrace {
			c.log.Warn("segment completion never fired, forcing stop",
				"position", c.position, "length", length)
			c.resetLocked()
		}
	} else {
		c.overrunAt = time.Time{}
	}
}
