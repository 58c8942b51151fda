package engine

import "time"

// Pipeline is the render pipeline contract the controller schedules against.
// Implementations run rendering on their own real-time context; every method
// here is called from the control context only, and onComplete fires at most
// once per scheduled segment, on the render context. Callbacks must hand off
// before touching controller state.
type Pipeline interface {
	// ScheduleSegment tears down any previous node graph, rebuilds it for
	// seg and registers a one-shot completion callback. It must not leave
	// stale buffered samples from an earlier segment schedulable.
	ScheduleSegment(seg Segment, onComplete func()) error

	// Play starts or resumes rendering of the scheduled segment.
	Play() error

	// Pause halts rendering without discarding the scheduled segment.
	Pause()

	// Stop halts rendering and discards the scheduled segment.
	Stop()

	// SetSpeed and SetPitch adjust live node parameters; they apply
	// immediately to the current segment.
	SetSpeed(factor float64)
	SetPitch(semitones float64)

	// Position reports source frames rendered since the last schedule.
	// ok is false until the first render callback has run.
	Position() (frames int, ok bool)

	// PlayTone emits one short count-in tone, mixed over anything playing.
	PlayTone(d time.Duration)
}
