// Package lifecycle owns the trigger-and-poll state machine for one remote
// generation run: it triggers a workflow dispatch, resolves the run id,
// polls for status with bounded backoff until a terminal state or the hard
// timeout, and notifies observers of every mapped state transition.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"solvergen/internal/apperrors"
	"solvergen/internal/config"
	"solvergen/internal/remote"
	"solvergen/pkg/backoff"
)

// clockSkew tolerated when matching a freshly created run against the
// trigger time during run-id resolution.
const clockSkew = 5 * time.Second

// phase is the coordinator's machine phase, distinct from the mapped
// lifecycle State the rest of the system reacts to.
type phase int

const (
	phaseIdle phase = iota
	phaseTriggering
	phasePolling
	phaseTerminal
)

// Observer is notified on every state transition with the previous and new
// mapped state and the current run snapshot (nil until a run is known).
// Observers are invoked in subscription order and must return promptly;
// anything slow belongs behind the dispatcher.
type Observer func(prev, next State, run *remote.Run)

// MetricsRecorder is an optional interface for recording coordinator metrics.
type MetricsRecorder interface {
	RecordTriggered(ctx context.Context, mode string)
	RecordPollTick(ctx context.Context)
	RecordGenerationFinished(ctx context.Context, outcome string, durationSeconds float64)
}

// PollingState is a read-only snapshot of the poll loop.
type PollingState struct {
	IsPolling       bool          `json:"isPolling"`
	PollCount       int           `json:"pollCount"`
	CurrentInterval time.Duration `json:"currentInterval"`
	StartedAt       time.Time     `json:"startedAt,omitzero"`
}

// TriggerResult is returned from Trigger.
type TriggerResult struct {
	Success bool `json:"success"`
	// Deferred is set when Trigger was called from inside an observer
	// callback; the trigger runs after the current notification completes.
	Deferred bool `json:"deferred,omitempty"`
}

// Coordinator drives exactly one generation run at a time.
//
// It is the sole mutator of the run snapshot and polling state. Poll ticks
// are strictly sequential: a tick schedules its successor only after its own
// network call resolved, and every scheduled tick carries the generation it
// belongs to so stale timers can never overwrite newer state.
type Coordinator struct {
	client  remote.Client
	clock   Clock
	cfg     config.PollingConfig
	logger  *slog.Logger
	metrics MetricsRecorder

	mu          sync.Mutex
	phase       phase
	gen         uint64 // bumped on every trigger/stop; stale ticks compare against it
	cancel      context.CancelFunc
	pollCtx     context.Context
	runID       string
	run         *remote.Run
	lastState   State
	mode        string
	triggeredAt time.Time
	timeoutErr  error  // synthetic timeout failure, distinguishable from remote failure
	warning     string // non-fatal run-id resolution warning

	polling PollingState
	timer   Timer

	observers []Observer
	notifying bool
	deferred  []func()
}

// NewCoordinator creates a coordinator. A nil clock selects the real clock;
// metrics may be nil.
func NewCoordinator(client remote.Client, clock Clock, cfg config.PollingConfig, metrics MetricsRecorder) *Coordinator {
	if clock == nil {
		clock = RealClock()
	}
	cfg = cfg.WithDefaults()
	return &Coordinator{
		client:  client,
		clock:   clock,
		cfg:     cfg,
		logger:  slog.With("component", "lifecycle"),
		metrics: metrics,
		polling: PollingState{CurrentInterval: cfg.MinInterval},

		lastState: StateUnknown,
	}
}

// Subscribe registers an observer. Observers registered earlier are notified
// earlier; the download gate must be the first subscriber so it re-locks
// before anything else reacts to a transition.
func (c *Coordinator) Subscribe(obs Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// Trigger starts a new generation run.
//
// It fails with an already-active error while a prior run is still queued or
// in progress, and with a trigger-failed error when the remote rejects the
// dispatch (never retried automatically). Any pending poll timer from a
// superseded run is cancelled before the new run starts.
func (c *Coordinator) Trigger(ctx context.Context, params *Params) (*TriggerResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.notifying {
		// Called from inside an observer callback: defer rather than
		// reenter the state machine mid-transition.
		p := *params
		c.deferred = append(c.deferred, func() {
			if _, err := c.Trigger(context.Background(), &p); err != nil {
				c.logger.Warn("Deferred trigger failed", "error", err)
			}
		})
		c.mu.Unlock()
		return &TriggerResult{Deferred: true}, nil
	}

	if c.active() {
		runID := c.runID
		c.mu.Unlock()
		return nil, apperrors.AlreadyActive(runID)
	}

	// Supersede the previous run's bookkeeping: stale timers are actively
	// cancelled, not merely ignored.
	c.invalidateLocked()

	pollCtx, cancel := context.WithCancel(context.Background())
	gen := c.gen
	c.pollCtx = pollCtx
	c.cancel = cancel

	c.phase = phaseTriggering
	c.run = nil
	c.runID = ""
	c.mode = params.Mode
	c.timeoutErr = nil
	c.warning = ""
	c.triggeredAt = c.clock.Now()
	c.polling = PollingState{CurrentInterval: c.cfg.MinInterval, StartedAt: c.triggeredAt}
	prev := c.lastState
	c.lastState = StateUnknown
	c.mu.Unlock()

	// Re-lock the gate (and inform everyone else) before the dispatch goes
	// out, so no stale unlocked state is ever visible for the new run.
	c.notify(prev, StateUnknown, nil)

	if err := c.client.TriggerDispatch(ctx, params.Inputs()); err != nil {
		c.mu.Lock()
		if gen == c.gen {
			c.phase = phaseIdle
		}
		c.mu.Unlock()
		return nil, apperrors.TriggerFailed(err)
	}

	if c.metrics != nil {
		c.metrics.RecordTriggered(ctx, params.Mode)
	}
	c.logger.Info("Generation triggered", "mode", params.Mode)

	go c.resolveAndPoll(pollCtx, gen)

	return &TriggerResult{Success: true}, nil
}

// active reports whether a run is still queued or in progress. Caller holds mu.
func (c *Coordinator) active() bool {
	switch c.phase {
	case phaseTriggering:
		return true
	case phasePolling:
		return c.lastState == StateQueued || c.lastState == StateInProgress || c.lastState == StateUnknown
	default:
		return false
	}
}

// invalidateLocked bumps the generation and cancels any pending timer and
// in-flight network call. Caller holds mu.
func (c *Coordinator) invalidateLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.polling.IsPolling = false
}

// resolveAndPoll resolves the run id with a bounded number of most-recent-run
// lookups, then enters the polling loop. The dispatch endpoint is
// fire-and-forget, so the id can only be found by listing; if no matching run
// appears the coordinator still polls (the remote job is progressing), it
// just cannot track status until an id shows up.
func (c *Coordinator) resolveAndPoll(ctx context.Context, gen uint64) {
	cutoff := c.triggerCutoff()

	for attempt := 1; attempt <= c.cfg.RunLookupAttempts; attempt++ {
		run, err := c.client.MostRecentRun(ctx)
		if err != nil {
			c.logger.Warn("Run lookup failed", "attempt", attempt, "error", err)
		} else if run != nil && !run.CreatedAt.Before(cutoff) {
			c.adoptRun(gen, run)
			break
		}

		if attempt < c.cfg.RunLookupAttempts {
			if !c.sleep(ctx, c.cfg.RunLookupInterval) {
				return
			}
		}
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.runID == "" {
		c.warning = "run id could not be resolved; status tracking is unavailable until a run appears"
		c.logger.Warn("Run id unresolved after lookup attempts", "attempts", c.cfg.RunLookupAttempts)
	}
	c.phase = phasePolling
	c.polling.IsPolling = true
	c.scheduleTickLocked(gen, c.polling.CurrentInterval)
	c.mu.Unlock()
}

func (c *Coordinator) triggerCutoff() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.triggeredAt.Add(-clockSkew)
}

func (c *Coordinator) adoptRun(gen uint64, run *remote.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.runID = run.ID
	c.logger.Info("Run id resolved", "runId", run.ID)
}

// sleep waits for d or until ctx is cancelled; reports false on cancellation.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) bool {
	done := make(chan struct{})
	t := c.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

// scheduleTickLocked arms the next poll timer. Caller holds mu.
func (c *Coordinator) scheduleTickLocked(gen uint64, d time.Duration) {
	c.timer = c.clock.AfterFunc(d, func() { c.tick(gen) })
}

// tick performs one poll: fetch the run snapshot, recompute the mapped
// state, notify on transition, and either finalize or reschedule with
// backoff. Ticks are strictly sequential; the generation guard drops any
// tick that fired between cancellation request and timer clearance.
func (c *Coordinator) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.polling.IsPolling {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.polling.PollCount++

	// Hard wall-clock budget, enforced independently of backoff growth.
	if c.clock.Now().Sub(c.polling.StartedAt) > c.cfg.Timeout {
		c.finalizeTimeoutLocked()
		return
	}

	ctx := c.pollCtx
	runID := c.runID
	cutoff := c.triggeredAt.Add(-clockSkew)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordPollTick(context.Background())
	}

	var run *remote.Run
	var err error
	if runID == "" {
		// Still unresolved: keep trying to find our run.
		run, err = c.client.MostRecentRun(ctx)
		if err == nil && run != nil && run.CreatedAt.Before(cutoff) {
			run = nil
		}
	} else {
		run, err = c.client.GetRun(ctx, runID)
	}

	c.mu.Lock()
	if gen != c.gen || !c.polling.IsPolling {
		c.mu.Unlock()
		return
	}

	if err != nil || run == nil {
		// Transient failures are absorbed and retried on the next tick;
		// only the timeout budget can surface them.
		if err != nil {
			c.logger.Warn("Poll failed, will retry", "pollCount", c.polling.PollCount, "error", err)
		}
		c.rescheduleLocked(gen)
		c.mu.Unlock()
		return
	}

	if runID == "" {
		c.runID = run.ID
		c.warning = ""
		c.logger.Info("Run id resolved", "runId", run.ID)
	}

	// Replace the whole snapshot; LifecycleState is always recomputed from it.
	c.run = run
	prev := c.lastState
	next := MapStatus(run.Status, run.Conclusion)
	c.lastState = next

	if next.Terminal() {
		c.phase = phaseTerminal
		c.polling.IsPolling = false
		elapsed := c.clock.Now().Sub(c.polling.StartedAt)
		c.mu.Unlock()

		c.notify(prev, next, run)
		if c.metrics != nil {
			c.metrics.RecordGenerationFinished(context.Background(), string(next), elapsed.Seconds())
		}
		c.logger.Info("Generation finished", "runId", run.ID, "state", next, "elapsed", elapsed)
		return
	}

	if next == StateUnknown {
		c.logger.Warn("Unexpected remote status, treating as transient",
			"status", run.Status, "conclusion", run.Conclusion)
	}
	c.mu.Unlock()

	// Observers see the updated snapshot strictly before the next tick is
	// armed; an observer that stops or retriggers wins over rescheduling.
	c.notify(prev, next, run)

	c.mu.Lock()
	if gen == c.gen && c.polling.IsPolling {
		c.rescheduleLocked(gen)
	}
	c.mu.Unlock()
}

// rescheduleLocked grows the interval and arms the next tick. Caller holds mu.
func (c *Coordinator) rescheduleLocked(gen uint64) {
	interval := backoff.Exponential(c.polling.PollCount, &backoff.Config{
		Initial: c.cfg.MinInterval,
		Max:     c.cfg.MaxInterval,
	})
	if interval < c.cfg.MinInterval {
		interval = c.cfg.MinInterval
	}
	c.polling.CurrentInterval = interval
	c.scheduleTickLocked(gen, interval)
}

// finalizeTimeoutLocked reports a synthetic failed state tagged as timeout.
// Caller holds mu; the lock is released before notification.
func (c *Coordinator) finalizeTimeoutLocked() {
	elapsed := c.clock.Now().Sub(c.polling.StartedAt)
	c.phase = phaseTerminal
	c.polling.IsPolling = false
	c.timeoutErr = apperrors.Timeout("generation poll", elapsed.Round(time.Second).String())
	prev := c.lastState
	c.lastState = StateFailed
	run := c.run
	polls := c.polling.PollCount
	c.mu.Unlock()

	c.notify(prev, StateFailed, run)
	if c.metrics != nil {
		c.metrics.RecordGenerationFinished(context.Background(), "timeout", elapsed.Seconds())
	}
	c.logger.Error("Generation timed out", "elapsed", elapsed, "pollCount", polls)
}

// notify invokes observers with a consistent snapshot. No-op when the state
// did not change. The lock is not held across callbacks; re-entrant Trigger
// calls are queued and run after the loop.
func (c *Coordinator) notify(prev, next State, run *remote.Run) {
	if prev == next {
		return
	}

	c.mu.Lock()
	c.notifying = true
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	var snapshot *remote.Run
	if run != nil {
		r := *run
		snapshot = &r
	}
	for _, obs := range observers {
		obs(prev, next, snapshot)
	}

	c.mu.Lock()
	c.notifying = false
	deferred := c.deferred
	c.deferred = nil
	c.mu.Unlock()

	for _, f := range deferred {
		f()
	}
}

// Stop cancels polling deterministically: no further ticks fire afterward,
// even one that was already scheduled. Idempotent; stopping an idle
// coordinator is a no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == phaseIdle {
		return
	}
	c.invalidateLocked()
	c.phase = phaseIdle
}

// Reset stops polling and clears the last run and polling state. Idempotent.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	if c.phase == phaseIdle && c.run == nil && c.lastState == StateUnknown {
		c.mu.Unlock()
		return
	}
	c.invalidateLocked()
	c.phase = phaseIdle
	c.run = nil
	c.runID = ""
	c.warning = ""
	c.timeoutErr = nil
	c.polling = PollingState{CurrentInterval: c.cfg.MinInterval}
	prev := c.lastState
	c.lastState = StateUnknown
	c.mu.Unlock()

	c.notify(prev, StateUnknown, nil)
}

// State returns the last mapped lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastState
}

// Run returns a copy of the current run snapshot, or nil.
func (c *Coordinator) Run() *remote.Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	r := *c.run
	return &r
}

// RunID returns the resolved run id, empty while unresolved.
func (c *Coordinator) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// PollingState returns a snapshot of the poll loop.
func (c *Coordinator) PollingState() PollingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polling
}

// Warning returns the current non-fatal warning, if any.
func (c *Coordinator) Warning() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warning
}

// Err returns the synthetic timeout error when the last terminal state was
// produced by the polling budget rather than the remote system.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeoutErr
}
