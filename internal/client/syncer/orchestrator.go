package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Mode selects how failures surface.
type Mode int

const (
	// ModeBlocking is a user-initiated cycle: failures are reported.
	ModeBlocking Mode = iota
	// ModeBackground is an opportunistic cycle: failures are only logged.
	ModeBackground
)

// StateKind is the coarse state of the orchestrator.
type StateKind int

const (
	StateIdle StateKind = iota
	StateRunning
	StateCompleted
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	}
	return "idle"
}

// State is a snapshot published to observers.
type State struct {
	Kind     StateKind
	Step     Step
	Progress float64
	Err      *Error
}

// TimeoutDecision is the answer to a watchdog prompt.
type TimeoutDecision int

const (
	KeepWaiting TimeoutDecision = iota
	GoOffline
)

// Hooks lets the caller observe a cycle and answer the watchdog.
type Hooks struct {
	OnState func(State)
	// OnTimeout is called each time the watchdog fires. Without it blocking
	// cycles keep waiting and background cycles are abandoned.
	OnTimeout func(elapsed time.Duration) TimeoutDecision
}

// Report summarizes a finished cycle.
type Report struct {
	Results   []Result
	Abandoned bool
	Duration  time.Duration
}

// Totals sums the per-step counters.
func (r *Report) Totals() Result {
	var t Result
	for _, x := range r.Results {
		t.Sent += x.Sent
		t.Received += x.Received
		t.Applied += x.Applied
		t.Conflicts += x.Conflicts
		t.Skipped += x.Skipped
		t.Failed += x.Failed
	}
	return t
}

// Runner executes a single step.
type Runner interface {
	Run(ctx context.Context, step Step) (Result, error)
}

// Orchestrator drives sync cycles. At most one cycle runs at a time.
type Orchestrator struct {
	runner  Runner
	steps   []Step
	timeout time.Duration
	logger  logging.Logger

	running atomic.Bool

	mu    sync.RWMutex
	state State
}

func NewOrchestrator(runner Runner, steps []Step, timeout time.Duration, logger logging.Logger) *Orchestrator {
	return &Orchestrator{runner: runner, steps: steps, timeout: timeout, logger: logging.OrNop(logger)}
}

// State returns the last published state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Running reports whether a cycle is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

func (o *Orchestrator) publish(h Hooks, s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	if h.OnState != nil {
		h.OnState(s)
	}
}

// Run executes one full cycle.
//
// Steps run in order; the first failing step stops the cycle and its error
// is returned as *Error. When the watchdog decision is GoOffline the step in
// flight runs to completion, the cycle stops at the next step boundary and
// the report is marked Abandoned. Run returns only after a pending
// OnTimeout call has returned.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, hooks Hooks) (*Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer o.running.Store(false)

	start := time.Now()
	report := &Report{}

	var abandoned atomic.Bool
	if o.timeout > 0 {
		done := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.watch(mode, hooks, start, &abandoned, done)
		}()
		defer func() {
			close(done)
			wg.Wait()
		}()
	}

	stopped := false
	n := float64(len(o.steps))
	for i, step := range o.steps {
		if abandoned.Load() {
			stopped = true
			break
		}
		o.publish(hooks, State{Kind: StateRunning, Step: step, Progress: float64(i) / n})

		res, err := o.runner.Run(ctx, step)
		if err != nil {
			if abandoned.Load() {
				o.logger.Info(ctx, "step failed after the cycle was abandoned", "step", step.String(), "error", err)
				stopped = true
				break
			}
			serr := wrap(step, err)
			report.Duration = time.Since(start)
			o.publish(hooks, State{Kind: StateError, Step: step, Progress: float64(i) / n, Err: serr})
			if mode == ModeBackground {
				o.logger.Warn(ctx, "background sync failed", "step", step.String(), "kind", serr.Kind.String(), "error", err)
			} else {
				o.logger.Error(ctx, "sync failed", "step", step.String(), "kind", serr.Kind.String(), "error", err)
			}
			o.publish(hooks, State{Kind: StateIdle})
			return report, serr
		}
		report.Results = append(report.Results, res)
		o.publish(hooks, State{Kind: StateRunning, Step: step, Progress: float64(i+1) / n})
	}

	report.Duration = time.Since(start)
	if stopped {
		report.Abandoned = true
		o.logger.Warn(ctx, "sync abandoned", "after", report.Duration)
		o.publish(hooks, State{Kind: StateIdle})
		return report, nil
	}

	t := report.Totals()
	o.logger.Info(ctx, "sync completed", "duration", report.Duration, "pushed", t.Sent,
		"pulled", t.Received, "conflicts", t.Conflicts, "failed", t.Failed)
	o.publish(hooks, State{Kind: StateCompleted, Progress: 1})
	o.publish(hooks, State{Kind: StateIdle})
	return report, nil
}

func (o *Orchestrator) watch(mode Mode, hooks Hooks, start time.Time, abandoned *atomic.Bool, done <-chan struct{}) {
	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case <-timer.C:
		}

		decision := KeepWaiting
		switch {
		case hooks.OnTimeout != nil:
			decision = hooks.OnTimeout(time.Since(start))
		case mode == ModeBackground:
			decision = GoOffline
		}

		if decision == GoOffline {
			abandoned.Store(true)
			return
		}
		timer.Reset(o.timeout)
	}
}
