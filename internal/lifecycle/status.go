package lifecycle

import "solvergen/internal/remote"

// State is the closed-set lifecycle view the rest of the system reacts to.
// It is always derived from the raw (status, conclusion) pair of the current
// run snapshot, never stored independently of it.
type State string

const (
	StateQueued     State = "queued"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	StateUnknown    State = "unknown"
)

// Terminal reports whether no further automatic transition occurs
// without a new trigger.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// MapStatus maps a raw remote (status, conclusion) pair onto a State.
//
// A completed run with a skipped, empty, or unrecognized conclusion maps to
// StateUnknown: it produced no trustworthy artifact, so downloads stay
// locked. Unrecognized statuses map to StateUnknown as well and are treated
// as transient by the polling loop.
func MapStatus(status, conclusion string) State {
	switch status {
	case remote.StatusQueued:
		return StateQueued
	case remote.StatusInProgress:
		return StateInProgress
	case remote.StatusCompleted:
		switch conclusion {
		case remote.ConclusionSuccess:
			return StateCompleted
		case remote.ConclusionFailure:
			return StateFailed
		case remote.ConclusionCancelled:
			return StateCancelled
		default:
			return StateUnknown
		}
	default:
		return StateUnknown
	}
}
