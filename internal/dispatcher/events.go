package dispatcher

import (
	"log/slog"

	"github.com/google/uuid"

	"solvergen/internal/lifecycle"
	"solvergen/internal/remote"
	"solvergen/pkg/cloudevent"
)

// Event types emitted on generation state transitions.
const (
	EventGenerationStarted   = "solvergen.generation.started"
	EventGenerationProgress  = "solvergen.generation.progress"
	EventGenerationCompleted = "solvergen.generation.completed"
	EventGenerationFailed    = "solvergen.generation.failed"
	EventGenerationCancelled = "solvergen.generation.cancelled"

	eventSource = "solvergen/coordinator"
)

// Notifier translates generation state transitions into CloudEvents and
// queues them on a dispatcher for delivery to a callback URL. A nil or
// empty callback URL makes every method a no-op, so wiring is unconditional.
type Notifier struct {
	dispatcher  Dispatcher
	callbackURL string
	signingKey  string
	logger      *slog.Logger
}

// NewNotifier creates a notifier delivering to callbackURL. Events are
// HMAC-signed with signingKey when it is non-empty.
func NewNotifier(d Dispatcher, callbackURL, signingKey string) *Notifier {
	return &Notifier{
		dispatcher:  d,
		callbackURL: callbackURL,
		signingKey:  signingKey,
		logger:      slog.With("component", "notifier"),
	}
}

// OnStateChange implements lifecycle.Observer.
func (n *Notifier) OnStateChange(prev, next lifecycle.State, run *remote.Run) {
	if n.callbackURL == "" {
		return
	}

	eventType, ok := eventTypeFor(next)
	if !ok {
		return
	}

	subject := ""
	data := map[string]any{
		"previous_state": string(prev),
		"state":          string(next),
	}
	if run != nil {
		subject = run.ID
		data["run_id"] = run.ID
		data["remote_status"] = run.Status
		if run.Conclusion != "" {
			data["remote_conclusion"] = run.Conclusion
		}
	}

	event := &Event{
		Payload:     cloudevent.New(eventType, eventSource, subject, uuid.NewString(), data),
		Destination: n.callbackURL,
		SigningKey:  n.signingKey,
	}

	if err := n.dispatcher.Dispatch(event); err != nil {
		n.logger.Warn("Failed to queue callback event", "type", eventType, "error", err)
	}
}

// eventTypeFor maps a state to the event type announcing entry into it.
// Transitions back to unknown (a fresh trigger or reset) are not announced.
func eventTypeFor(next lifecycle.State) (string, bool) {
	switch next {
	case lifecycle.StateQueued:
		return EventGenerationStarted, true
	case lifecycle.StateInProgress:
		return EventGenerationProgress, true
	case lifecycle.StateCompleted:
		return EventGenerationCompleted, true
	case lifecycle.StateFailed:
		return EventGenerationFailed, true
	case lifecycle.StateCancelled:
		return EventGenerationCancelled, true
	default:
		return "", false
	}
}
