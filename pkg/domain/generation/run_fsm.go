package generation

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// MaxAttempts is the attempt ceiling for one run.
const MaxAttempts = 3

// State constants for statekit integration.
const (
	StatePending    = "pending"
	StateAttempting = "attempting"
	StateRetrying   = "retrying"
	StateSatisfied  = "satisfied"
	StateExhausted  = "exhausted"
)

// Events accepted by the run machine.
const (
	EventAttempt = "attempt"
	EventSatisfy = "satisfy"
	EventRetry   = "retry"
	EventExhaust = "exhaust"
)

type runContext struct {
	run *Run
}

// Run tracks the attempts of one generation request. It is not safe for
// concurrent use; each request owns its own Run.
type Run struct {
	Requested   int
	MaxAttempts int
	Attempts    int
	LastCount   int

	interpreter *statekit.Interpreter[runContext]
}

// NewRun builds the attempt machine for a request of the given size.
func NewRun(requested, maxAttempts int) (*Run, error) {
	if requested < 1 {
		return nil, fmt.Errorf("requested count must be positive, got %d", requested)
	}
	if maxAttempts < 1 {
		maxAttempts = MaxAttempts
	}
	r := &Run{Requested: requested, MaxAttempts: maxAttempts}

	builder := statekit.NewMachine[runContext]("generation-run").
		WithInitial(statekit.StateID(StatePending)).
		WithContext(runContext{run: r}).
		WithGuard("attemptsRemain", func(ctx runContext, e statekit.Event) bool {
			return ctx.run.Attempts < ctx.run.MaxAttempts
		}).
		WithGuard("countMatched", func(ctx runContext, e statekit.Event) bool {
			return ctx.run.LastCount == ctx.run.Requested
		}).
		WithGuard("ceilingReached", func(ctx runContext, e statekit.Event) bool {
			return ctx.run.LastCount != ctx.run.Requested && ctx.run.Attempts >= ctx.run.MaxAttempts
		})

	builder.State(StatePending).
		On(EventAttempt).Target(StateAttempting).Guard("attemptsRemain").
		Done()

	builder.State(StateAttempting).
		On(EventSatisfy).Target(StateSatisfied).Guard("countMatched").
		On(EventRetry).Target(StateRetrying).Guard("attemptsRemain").
		On(EventExhaust).Target(StateExhausted).Guard("ceilingReached").
		Done()

	builder.State(StateRetrying).
		On(EventAttempt).Target(StateAttempting).Guard("attemptsRemain").
		Done()

	builder.State(StateSatisfied).Done()
	builder.State(StateExhausted).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build run machine: %w", err)
	}

	r.interpreter = statekit.NewInterpreter(machine)
	r.interpreter.Start()
	return r, nil
}

// Begin moves the run into a new attempt and counts it.
func (r *Run) Begin() error {
	if err := r.send(EventAttempt); err != nil {
		return err
	}
	r.Attempts++
	return nil
}

// Record stores the record count of the current attempt and settles the
// next state: satisfied on a match, retrying while attempts remain,
// exhausted otherwise.
func (r *Run) Record(count int) (string, error) {
	if r.Current() != StateAttempting {
		return r.Current(), fmt.Errorf("cannot record a result while the run is %s", r.Current())
	}
	r.LastCount = count

	event := EventExhaust
	switch {
	case count == r.Requested:
		event = EventSatisfy
	case r.Attempts < r.MaxAttempts:
		event = EventRetry
	}
	if err := r.send(event); err != nil {
		return r.Current(), err
	}
	return r.Current(), nil
}

// Current returns the machine state.
func (r *Run) Current() string {
	return string(r.interpreter.State().Value)
}

// Done reports whether the run reached a terminal state.
func (r *Run) Done() bool {
	switch r.Current() {
	case StateSatisfied, StateExhausted:
		return true
	}
	return false
}

func (r *Run) send(event string) error {
	before := r.Current()
	r.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if r.Current() != before {
		return nil
	}
	return fmt.Errorf("event '%s' is not allowed while the run is '%s' (attempt %d of %d)", event, before, r.Attempts, r.MaxAttempts)
}
