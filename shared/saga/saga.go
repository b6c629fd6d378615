package saga

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

// ErrCancelled is reported when the caller cancels the saga between steps.
var ErrCancelled = errors.New("saga cancelled")

// SagaStatus is the terminal status of a saga run
type SagaStatus string

const (
	SagaStatusCompleted   SagaStatus = "completed"
	SagaStatusCompensated SagaStatus = "compensated"
)

// Step is a unit of forward work paired with the action that undoes it.
// Compensate may be nil for steps that leave nothing behind.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// CompensationRecord is the result of undoing one completed step
type CompensationRecord struct {
	Step string
	Err  error
}

// Outcome describes how a saga run ended
type Outcome struct {
	Status        SagaStatus
	Completed     []string
	FailedStep    string
	Err           error
	Cancelled     bool
	Compensations []CompensationRecord
}

// CompensationFailures returns the compensations that did not succeed
func (o *Outcome) CompensationFailures() []CompensationRecord {
	var failed []CompensationRecord
	for _, c := range o.Compensations {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Orchestrator runs steps in order and, on the first failure, compensates the
// completed ones in reverse order.
type Orchestrator struct {
	logger *slog.Logger
}

func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	return &Orchestrator{logger: logger}
}

// Run executes the steps. It never returns without reaching a terminal status.
//
// Cancelling ctx stops the forward phase before the next step starts; a step
// already running and every compensation run on a context detached from
// cancellation.
func (o *Orchestrator) Run(ctx context.Context, steps []Step) *Outcome {
	outcome := &Outcome{}
	detached := context.WithoutCancel(ctx)

	var completed []Step
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			outcome.FailedStep = step.Name
			outcome.Cancelled = true
			outcome.Err = errors.Wrap(ErrCancelled, err.Error())
			break
		}

		o.logger.DebugContext(ctx, "executing saga step", "step", step.Name)

		if err := invoke(detached, step.Name, step.Execute); err != nil {
			o.logger.WarnContext(ctx, "saga step failed", "step", step.Name, "error", err)
			outcome.FailedStep = step.Name
			outcome.Err = err
			break
		}

		completed = append(completed, step)
		outcome.Completed = append(outcome.Completed, step.Name)
	}

	if outcome.Err == nil {
		outcome.Status = SagaStatusCompleted
		return outcome
	}

	outcome.Compensations = o.compensate(detached, completed)
	outcome.Status = SagaStatusCompensated
	return outcome
}

func (o *Orchestrator) compensate(ctx context.Context, completed []Step) []CompensationRecord {
	records := make([]CompensationRecord, 0, len(completed))

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}

		err := invoke(ctx, step.Name, step.Compensate)
		if err != nil {
			o.logger.ErrorContext(ctx, "saga compensation failed", "step", step.Name, "error", err)
		} else {
			o.logger.InfoContext(ctx, "saga step compensated", "step", step.Name)
		}

		records = append(records, CompensationRecord{Step: step.Name, Err: err})
	}

	return records
}

// invoke runs fn turning a panic into an error
func invoke(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("step %s panicked: %v", name, r)
		}
	}()

	return fn(ctx)
}
