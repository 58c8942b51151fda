package engine

import "errors"

var (
	// ErrInvalidRange reports a segment range that violates
	// 0 <= start < end <= duration, or a resume offset outside the segment.
	// It is returned before any pipeline mutation.
	ErrInvalidRange = errors.New("invalid segment range")

	// ErrFileUnavailable reports a source file that is missing or cannot be
	// decoded. Controller state is left untouched so the caller can retry.
	ErrFileUnavailable = errors.New("audio file unavailable")

	// ErrPipelineStart reports that the render pipeline could not start.
	// The controller reverts to StateIdle.
	ErrPipelineStart = errors.New("pipeline start failure")
)
