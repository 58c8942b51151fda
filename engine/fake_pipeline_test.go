package engine

import (
	"sync"
	"testing"
	"time"
)

// fakePipeline is a controllable engine.Pipeline for tests. Completion is
// fired manually, imitating the render goroutine calling the registered
// one-shot callback.
type fakePipeline struct {
	mu         sync.Mutex
	scheduled  []Segment
	onComplete func()
	playing    bool
	paused     bool
	stopped    bool

	frames   int
	hasClock bool

	speed float64
	pitch float64
	tones int

	scheduleErr error
	playErr     error

	playTimes []time.Time // Play() entries for fresh schedules
	fresh     bool
}

var _ Pipeline = (*fakePipeline)(nil)

func (f *fakePipeline) ScheduleSegment(seg Segment, onComplete func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled = append(f.scheduled, seg)
	f.onComplete = onComplete
	f.frames = 0
	f.hasClock = false
	f.fresh = true
	f.stopped = false
	return nil
}

func (f *fakePipeline) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	f.paused = false
	if f.fresh {
		f.playTimes = append(f.playTimes, time.Now())
		f.fresh = false
	}
	return nil
}

func (f *fakePipeline) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.playing = false
}

func (f *fakePipeline) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.playing = false
	f.onComplete = nil
}

func (f *fakePipeline) SetSpeed(factor float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speed = factor
}

func (f *fakePipeline) SetPitch(semitones float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pitch = semitones
}

func (f *fakePipeline) Position() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames, f.hasClock
}

func (f *fakePipeline) PlayTone(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tones++
}

// advance moves the fake frame clock, as if the render thread pulled frames.
func (f *fakePipeline) advance(frames int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = frames
	f.hasClock = true
}

// complete fires the registered completion callback once, like the render
// goroutine does when the scheduled frame range is exhausted.
func (f *fakePipeline) complete() {
	f.mu.Lock()
	fn := f.onComplete
	f.onComplete = nil
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakePipeline) scheduleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

func (f *fakePipeline) lastScheduled() Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scheduled) == 0 {
		return Segment{}
	}
	return f.scheduled[len(f.scheduled)-1]
}

func (f *fakePipeline) toneCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tones
}

func (f *fakePipeline) isPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *fakePipeline) setScheduleErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleErr = err
}

// testInfo is a 30 second file at 1000 Hz so frame math stays readable.
var testInfo = FileInfo{Path: "song.wav", SampleRate: 1000, TotalFrames: 30000}

func testConfig() Config {
	return Config{
		TrackInterval:   5 * time.Millisecond,
		CompletionGrace: 50 * time.Millisecond,
		CountTick:       20 * time.Millisecond,
		ToneDuration:    time.Millisecond,
	}
}

func newTestController(t *testing.T) (*Controller, *fakePipeline) {
	t.Helper()
	pipe := &fakePipeline{}
	c := New(pipe, testInfo, testConfig())
	t.Cleanup(func() { c.Close() })
	return c, pipe
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// inDelayWindow reports whether the controller is waiting out a
// pause-between-loops delay.
func inDelayWindow(c *Controller) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delayPending
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, func() bool { return c.State() == want }, "state "+want.String())
}
