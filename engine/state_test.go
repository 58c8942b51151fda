package engine

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateCountingIn, "counting-in"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateIsActive(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StateCountingIn, false},
		{StatePlaying, true},
		{StatePaused, true},
	}

	for _, tt := range tests {
		if got := tt.state.IsActive(); got != tt.want {
			t.Errorf("%s.IsActive() = %v, want %v", tt.state, got, tt.want)
		}
	}
}
