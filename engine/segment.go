package engine

import (
	"fmt"
	"math"
)

// Segment is one planned playback range in absolute sample frames. It is a
// snapshot: once scheduled, later changes to the session range do not affect
// it. ResumeFrame equals StartFrame unless playback resumes mid-segment after
// a pause or seek.
type Segment struct {
	StartFrame  int
	EndFrame    int
	ResumeFrame int
}

// Frames returns the number of frames the pipeline will render.
func (s Segment) Frames() int {
	return s.EndFrame - s.ResumeFrame
}

// Length returns the full segment length in seconds at the given sample rate.
func (s Segment) Length(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(s.EndFrame-s.StartFrame) / float64(sampleRate)
}

// Offset returns the resume offset in seconds relative to the segment start.
func (s Segment) Offset(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(s.ResumeFrame-s.StartFrame) / float64(sampleRate)
}

// PlanSegment translates a (start, end, resume) range in seconds into absolute
// frame bounds, rounded to the nearest frame and clipped to the file. A resume
// of zero means "from the segment start"; otherwise it must fall inside
// [start, end).
func PlanSegment(info FileInfo, start, end, resume float64) (Segment, error) {
	if info.SampleRate <= 0 || info.TotalFrames <= 0 {
		return Segment{}, fmt.Errorf("%w: no decoded frames for %s", ErrFileUnavailable, info.Path)
	}
	if start < 0 || end <= start {
		return Segment{}, fmt.Errorf("%w: start=%.3f end=%.3f", ErrInvalidRange, start, end)
	}
	if d := info.Duration(); end > d {
		return Segment{}, fmt.Errorf("%w: end=%.3f exceeds file duration %.3f", ErrInvalidRange, end, d)
	}
	if resume == 0 {
		resume = start
	}
	if resume < start || resume >= end {
		return Segment{}, fmt.Errorf("%w: resume=%.3f outside [%.3f, %.3f)", ErrInvalidRange, resume, start, end)
	}

	sr := float64(info.SampleRate)
	seg := Segment{
		StartFrame:  clampFrame(int(math.Round(start*sr)), info.TotalFrames),
		EndFrame:    clampFrame(int(math.Round(end*sr)), info.TotalFrames),
		ResumeFrame: clampFrame(int(math.Round(resume*sr)), info.TotalFrames),
	}
	if seg.ResumeFrame >= seg.EndFrame {
		return Segment{}, fmt.Errorf("%w: empty frame range", ErrInvalidRange)
	}
	return seg, nil
}

func clampFrame(n, total int) int {
	if n < 0 {
		return 0
	}
	if n > total {
		return total
	}
	return n
}
