package engine

// State represents the playback state of a controller.
type State int

const (
	// StateIdle indicates nothing is scheduled and the position is reset.
	StateIdle State = iota
	// StateCountingIn indicates the pre-playback countdown is running.
	StateCountingIn
	// StatePlaying indicates a segment is scheduled and audible (or inside
	// a loop delay window, during which tracking is suspended).
	StatePlaying
	// StatePaused indicates playback is halted but the position is retained.
	StatePaused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountingIn:
		return "counting-in"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// IsActive returns true if a session is in progress (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}
