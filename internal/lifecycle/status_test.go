package lifecycle

import "testing"

func TestMapStatus(t *testing.T) {
	t.Parallel()
	// Exhaustive over the authoritative mapping table.
	tests := []struct {
		name       string
		status     string
		conclusion string
		want       State
	}{
		{"queued", "queued", "", StateQueued},
		{"in progress", "in_progress", "", StateInProgress},
		{"completed success", "completed", "success", StateCompleted},
		{"completed failure", "completed", "failure", StateFailed},
		{"completed cancelled", "completed", "cancelled", StateCancelled},
		{"completed skipped", "completed", "skipped", StateUnknown},
		{"completed empty conclusion", "completed", "", StateUnknown},
		{"completed unrecognized conclusion", "completed", "neutral", StateUnknown},
		{"unrecognized status", "waiting", "", StateUnknown},
		{"empty status", "", "", StateUnknown},
		{"conclusion without completed", "queued", "success", StateQueued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MapStatus(tt.status, tt.conclusion); got != tt.want {
				t.Errorf("MapStatus(%q, %q) = %s, want %s", tt.status, tt.conclusion, got, tt.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()
	terminal := map[State]bool{
		StateQueued:     false,
		StateInProgress: false,
		StateCompleted:  true,
		StateFailed:     true,
		StateCancelled:  true,
		StateUnknown:    false,
	}

	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}
