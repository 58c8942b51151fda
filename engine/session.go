package engine

import "fmt"

// FileInfo describes the decoded audio file a session plays from.
type FileInfo struct {
	Path        string
	SampleRate  int
	TotalFrames int
}

// Duration returns the file length in seconds.
func (f FileInfo) Duration() float64 {
	if f.SampleRate <= 0 {
		return 0
	}
	return float64(f.TotalFrames) / float64(f.SampleRate)
}

// Session holds everything needed to play one bounded segment of a file.
// It is owned exclusively by the controller and mutated only through the
// facade setters.
type Session struct {
	File      FileInfo
	Start     float64 // segment start, seconds into the file
	End       float64 // segment end, seconds into the file
	Speed     float64 // playback speed factor, 1.0 = normal
	Pitch     float64 // pitch shift in semitones
	Loop      bool
	LoopPause float64 // seconds of silence between loop iterations
	CountIn   float64 // seconds of countdown before the first playback
}

// SegmentLength returns the segment length in seconds.
func (s Session) SegmentLength() float64 {
	return s.End - s.Start
}

// Validate checks the segment range invariant 0 <= start < end <= duration.
func (s Session) Validate() error {
	if s.Start < 0 || s.End <= s.Start {
		return fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidRange, s.Start, s.End)
	}
	if d := s.File.Duration(); s.End > d {
		return fmt.Errorf("%w: end=%.3f exceeds file duration %.3f", ErrInvalidRange, s.End, d)
	}
	return nil
}
