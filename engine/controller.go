// Package engine implements the segment playback and looping controller: it
// owns the playback session, schedules bounded segments against a render
// pipeline, reconciles the pipeline's frame clock with the logical position
// shown to the user, and drives loop and count-in transitions.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Config holds controller tuning knobs.
type Config struct {
	TrackInterval   time.Duration // position tracking tick, default 100ms
	CompletionGrace time.Duration // wait for a late completion callback before forcing a stop
	CountTick       time.Duration // interval between count-in tones, default 1s
	ToneDuration    time.Duration // length of each count-in tone
	Logger          *slog.Logger
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		TrackInterval:   100 * time.Millisecond,
		CompletionGrace: 500 * time.Millisecond,
		CountTick:       time.Second,
		ToneDuration:    90 * time.Millisecond,
		Logger:          slog.Default(),
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.TrackInterval <= 0 {
		cfg.TrackInterval = def.TrackInterval
	}
	if cfg.CompletionGrace <= 0 {
		cfg.CompletionGrace = def.CompletionGrace
	}
	if cfg.CountTick <= 0 {
		cfg.CountTick = def.CountTick
	}
	if cfg.ToneDuration <= 0 {
		cfg.ToneDuration = def.ToneDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return cfg
}

// Controller is the playback facade. All exported methods are safe to call
// from the control context and return immediately; audible effects happen
// asynchronously on the render side. One controller owns one session.
type Controller struct {
	mu   sync.Mutex
	pipe Pipeline
	cfg  Config
	log  *slog.Logger

	session Session
	state   State

	// gen is bumped on every schedule and stop; completion callbacks and
	// timer bodies capture it and abandon themselves once it moves. This is
	// what makes Stop linearizable against in-flight render callbacks.
	gen uint64

	active       Segment // snapshot of the scheduled segment
	position     float64 // last known logical position, seconds into the segment
	delayPending bool    // inside a pause-between-loops window
	stale        bool    // paused position needs a reschedule (seek or range change)
	overrunAt    time.Time

	countTimer *time.Timer
	loopTimer  *time.Timer
	trackStop  chan struct{}

	cbMu       sync.RWMutex
	onState    func(State)
	onPosition func(float64)

	noteMu     sync.Mutex
	notes      []notice
	noteCh     chan struct{}
	noteClosed bool
	closeOnce  sync.Once
}

type notice struct {
	state    State
	pos      float64
	hasState bool
	hasPos   bool
}

// maxPendingNotices bounds the queued position updates when the consumer
// lags. State notices are never subject to this cap.
const maxPendingNotices = 128

// New creates a controller for the given pipeline and decoded file. The
// initial session spans the whole file at normal speed.
func New(pipe Pipeline, info FileInfo, cfg Config) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		pipe: pipe,
		cfg:  cfg,
		log:  cfg.Logger.With("component", "engine"),
		session: Session{
			File:  info,
			Start: 0,
			End:   info.Duration(),
			Speed: 1.0,
		},
		state:  StateIdle,
		noteCh: make(chan struct{}, 1),
	}
	go c.notifyLoop()
	return c
}

// Close stops playback and releases the notification goroutine. The
// controller must not be used afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		c.noteMu.Lock()
		c.noteClosed = true
		c.noteMu.Unlock()
		close(c.noteCh)
	})
	return nil
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// CurrentPosition returns the logical position in seconds within the current
// segment. Between render callbacks it reports the last known value rather
// than zero, so the UI never sees a backwards jump.
func (c *Controller) CurrentPosition() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// OnStateChange registers a callback for state transitions. Delivery is
// asynchronous, in order, and never dropped.
func (c *Controller) OnStateChange(fn func(State)) {
	c.cbMu.Lock()
	c.onState = fn
	c.cbMu.Unlock()
}

// OnPosition registers a callback for position updates. Updates may be
// dropped when the consumer lags behind the tracking interval.
func (c *Controller) OnPosition(fn func(float64)) {
	c.cbMu.Lock()
	c.onPosition = fn
	c.cbMu.Unlock()
}

// Play starts playback of the configured segment, resumes from a pause, or
// begins the count-in. Calling it while already playing or counting in is a
// no-op, so duplicate UI events cannot double-schedule.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying, StateCountingIn:
		return nil

	case StatePaused:
		if c.stale {
			return c.playFromLocked(c.position)
		}
		if err := c.pipe.Play(); err != nil {
			c.resetLocked()
			return fmt.Errorf("%w: %v", ErrPipelineStart, err)
		}
		c.setStateLocked(StatePlaying)
		c.startTrackingLocked(c.gen)
		return nil

	default: // StateIdle
		if err := c.session.Validate(); err != nil {
			return err
		}
		if c.session.CountIn > 0 && c.position == 0 {
			c.startCountInLocked()
			return nil
		}
		return c.playFromLocked(c.position)
	}
}

// Pause halts playback and retains the logical position. A pause inside a
// loop delay window cancels the armed restart; resuming reschedules from the
// top of the segment.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return
	}
	if c.delayPending {
		c.cancelLoopTimerLocked()
		c.stale = true
	} else {
		c.pipe.Pause()
	}
	c.stopTrackingLocked()
	c.setStateLocked(StatePaused)
}

// Stop cancels all timers, halts the pipeline and resets the logical position
// to zero, from any state. After Stop returns, no stale completion callback
// can restart playback.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Seek moves the logical position to t seconds into the segment, clamped to
// [0, segment length]. While playing it reschedules in place; while paused or
// idle it only updates the stored position. A seek that lands at the segment
// end finishes the current pass and runs the normal completion decision.
func (c *Controller) Seek(t float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	length := c.session.SegmentLength()
	t = clampSeconds(t, length)

	switch c.state {
	case StatePlaying:
		if c.delayPending {
			// The next cycle starts from the top anyway; just move the
			// stored position for display.
			c.position = t
			c.emitPositionLocked()
			return nil
		}
		return c.playFromLocked(t)
	case StatePaused:
		c.position = t
		c.stale = true
		c.emitPositionLocked()
		return nil
	default: // StateIdle, StateCountingIn
		c.position = t
		c.emitPositionLocked()
		return nil
	}
}

// SetSegmentRange updates the segment bounds. While playing, the in-flight
// segment is untouched; the new range applies on the next schedule (loop
// restart, seek or explicit play).
func (c *Controller) SetSegmentRange(start, end float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.session
	next.Start, next.End = start, end
	if err := next.Validate(); err != nil {
		return err
	}
	c.session.Start, c.session.End = start, end

	switch c.state {
	case StateIdle:
		c.position = 0
		c.emitPositionLocked()
	case StatePaused:
		c.position = clampSeconds(c.position, c.session.SegmentLength())
		c.stale = true
	}
	return nil
}

// SetLoop enables or disables looping with the given pause between
// iterations. It takes effect at the next completion decision; an already
// armed loop delay keeps its original duration.
func (c *Controller) SetLoop(enabled bool, pauseSeconds float64) error {
	if pauseSeconds < 0 {
		return fmt.Errorf("loop pause must not be negative: %.3f", pauseSeconds)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Loop = enabled
	c.session.LoopPause = pauseSeconds
	return nil
}

// SetCountIn sets the countdown length before the first playback. Loop
// restarts never re-run the count-in.
func (c *Controller) SetCountIn(seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("count-in must not be negative: %.3f", seconds)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.CountIn = seconds
	return nil
}

// SetSpeed changes the playback speed factor. It applies immediately to the
// current segment since it is a live pipeline parameter.
func (c *Controller) SetSpeed(factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("speed factor must be positive: %.3f", factor)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Speed = factor
	c.pipe.SetSpeed(factor)
	return nil
}

// SetPitch changes the pitch shift in semitones, applied immediately.
func (c *Controller) SetPitch(semitones float64) error {
	if semitones < -24 || semitones > 24 {
		return fmt.Errorf("pitch shift out of range: %.2f semitones", semitones)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Pitch = semitones
	c.pipe.SetPitch(semitones)
	return nil
}

// playFromLocked starts playback from t seconds into the segment. A position
// at (or past) the segment end means the pass is already finished, so the
// normal completion decision runs instead of scheduling an empty frame range.
func (c *Controller) playFromLocked(t float64) error {
	if t < c.session.SegmentLength() {
		return c.scheduleLocked(c.session.Start + t)
	}

	c.gen++
	c.pipe.Stop()
	c.stale = false
	if c.session.Loop {
		c.setStateLocked(StatePlaying)
	}
	c.completeLocked()
	return nil
}

// scheduleLocked plans the segment at the given absolute resume offset,
// rebuilds the pipeline graph and starts it. On a planning or file error the
// previous state is left untouched.
func (c *Controller) scheduleLocked(resume float64) error {
	seg, err := PlanSegment(c.session.File, c.session.Start, c.session.End, resume)
	if err != nil {
		return err
	}

	gen := c.gen + 1
	if err := c.pipe.ScheduleSegment(seg, func() { go c.segmentDone(gen) }); err != nil {
		return err
	}

	c.gen = gen
	c.stopTimersLocked()
	c.delayPending = false
	c.stale = false
	c.overrunAt = time.Time{}

	if err := c.pipe.Play(); err != nil {
		c.resetLocked()
		return fmt.Errorf("%w: %v", ErrPipelineStart, err)
	}

	c.active = seg
	c.position = seg.Offset(c.session.File.SampleRate)
	c.setStateLocked(StatePlaying)
	c.emitPositionLocked()
	c.startTrackingLocked(gen)
	return nil
}

// segmentDone is the completion hand-off. The pipeline fires its callback on
// the render context; we arrive here on a fresh goroutine and re-check the
// generation before touching anything.
func (c *Controller) segmentDone(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StatePlaying || c.delayPending {
		return
	}
	c.completeLocked()
}

// completeLocked decides what happens after a segment finishes rendering:
// stop, restart immediately, or restart after the configured pause.
func (c *Controller) completeLocked() {
	c.stopTrackingLocked()

	if !c.session.Loop {
		c.resetLocked()
		return
	}

	c.position = 0
	c.emitPositionLocked()

	if c.session.LoopPause <= 0 {
		if err := c.scheduleLocked(c.session.Start); err != nil {
			c.log.Error("loop restart failed", "err", err)
			c.resetLocked()
		}
		return
	}

	// Delay window: state stays Playing with tracking suspended.
	c.delayPending = true
	gen := c.gen
	c.loopTimer = time.AfterFunc(seconds(c.session.LoopPause), func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.state != StatePlaying || !c.delayPending {
			return
		}
		c.delayPending = false
		if err := c.scheduleLocked(c.session.Start); err != nil {
			c.log.Error("loop restart failed", "err", err)
			c.resetLocked()
		}
	})
}

// startCountInLocked emits one tone per remaining whole second, the first one
// immediately, then schedules the segment once the countdown hits zero.
func (c *Controller) startCountInLocked() {
	c.setStateLocked(StateCountingIn)
	remaining := int(math.Ceil(c.session.CountIn))
	c.pipe.PlayTone(c.cfg.ToneDuration)
	c.armCountTickLocked(c.gen, remaining-1)
}

func (c *Controller) armCountTickLocked(gen uint64, remaining int) {
	c.countTimer = time.AfterFunc(c.cfg.CountTick, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen || c.state != StateCountingIn {
			return
		}
		if remaining > 0 {
			c.pipe.PlayTone(c.cfg.ToneDuration)
			c.armCountTickLocked(gen, remaining-1)
			return
		}
		if err := c.playFromLocked(c.position); err != nil {
			c.log.Error("scheduling after count-in failed", "err", err)
			c.resetLocked()
		}
	})
}

// resetLocked returns the controller to Idle: bumps the generation so every
// in-flight callback goes stale, cancels all timers and clears the position.
func (c *Controller) resetLocked() {
	c.gen++
	c.stopTimersLocked()
	c.pipe.Stop()
	c.delayPending = false
	c.stale = false
	c.position = 0
	c.overrunAt = time.Time{}
	c.setStateLocked(StateIdle)
	c.emitPositionLocked()
}

func (c *Controller) stopTimersLocked() {
	if c.countTimer != nil {
		c.countTimer.Stop()
		c.countTimer = nil
	}
	c.cancelLoopTimerLocked()
	c.stopTrackingLocked()
}

func (c *Controller) cancelLoopTimerLocked() {
	if c.loopTimer != nil {
		c.loopTimer.Stop()
		c.loopTimer = nil
	}
	c.delayPending = false
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.emit(notice{state: s, hasState: true})
}

func (c *Controller) emitPositionLocked() {
	c.emit(notice{pos: c.position, hasPos: true})
}

// emit never blocks the control context. State notices are always queued so
// consumers see every transition in order; position notices are dropped once
// the queue is full, since a newer one follows on the next tick anyway.
func (c *Controller) emit(n notice) {
	c.noteMu.Lock()
	if c.noteClosed || (n.hasPos && len(c.notes) >= maxPendingNotices) {
		c.noteMu.Unlock()
		return
	}
	c.notes = append(c.notes, n)
	select {
	case c.noteCh <- struct{}{}:
	default:
	}
	c.noteMu.Unlock()
}

func (c *Controller) notifyLoop() {
	for range c.noteCh {
		for {
			c.noteMu.Lock()
			if len(c.notes) == 0 {
				c.noteMu.Unlock()
				break
			}
			n := c.notes[0]
			c.notes = c.notes[1:]
			c.noteMu.Unlock()

			c.cbMu.RLock()
			onState, onPosition := c.onState, c.onPosition
			c.cbMu.RUnlock()
			if n.hasState && onState != nil {
				onState(n.state)
			}
			if n.hasPos && onPosition != nil {
				onPosition(n.pos)
			}
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func clampSeconds(t, max float64) float64 {
	if t < 0 {
		return 0
	}
	if t > max {
		return max
	}
	return t
}
