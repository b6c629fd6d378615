package saga

import (
	"context"
	"testing"

	"github.com/draftea/booking-system/shared/logging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) step(name string, execErr error, compErr error) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context) error {
			r.calls = append(r.calls, "exec:"+name)
			return execErr
		},
		Compensate: func(ctx context.Context) error {
			r.calls = append(r.calls, "comp:"+name)
			return compErr
		},
	}
}

func TestOrchestrator_Run(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name              string
		build             func(r *recorder) []Step
		wantStatus        SagaStatus
		wantCalls         []string
		wantFailedStep    string
		wantCompensations int
		wantCompFailures  int
	}{
		{
			name: "all steps succeed",
			build: func(r *recorder) []Step {
				return []Step{r.step("a", nil, nil), r.step("b", nil, nil), r.step("c", nil, nil)}
			},
			wantStatus: SagaStatusCompleted,
			wantCalls:  []string{"exec:a", "exec:b", "exec:c"},
		},
		{
			name: "first step fails compensates nothing",
			build: func(r *recorder) []Step {
				return []Step{r.step("a", boom, nil), r.step("b", nil, nil)}
			},
			wantStatus:     SagaStatusCompensated,
			wantCalls:      []string{"exec:a"},
			wantFailedStep: "a",
		},
		{
			name: "last step fails compensates in reverse order",
			build: func(r *recorder) []Step {
				return []Step{r.step("a", nil, nil), r.step("b", nil, nil), r.step("c", boom, nil)}
			},
			wantStatus:        SagaStatusCompensated,
			wantCalls:         []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"},
			wantFailedStep:    "c",
			wantCompensations: 2,
		},
		{
			name: "compensation failure does not stop the remaining compensations",
			build: func(r *recorder) []Step {
				return []Step{r.step("a", nil, nil), r.step("b", nil, boom), r.step("c", boom, nil)}
			},
			wantStatus:        SagaStatusCompensated,
			wantCalls:         []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"},
			wantFailedStep:    "c",
			wantCompensations: 2,
			wantCompFailures:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			outcome := NewOrchestrator(logging.Discard()).Run(context.Background(), tt.build(r))

			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.wantCalls, r.calls)
			assert.Equal(t, tt.wantFailedStep, outcome.FailedStep)
			assert.Len(t, outcome.Compensations, tt.wantCompensations)
			assert.Len(t, outcome.CompensationFailures(), tt.wantCompFailures)
			if tt.wantStatus == SagaStatusCompensated {
				assert.ErrorIs(t, outcome.Err, boom)
			} else {
				assert.NoError(t, outcome.Err)
			}
		})
	}
}

func TestOrchestrator_Run_PanicIsAFailure(t *testing.T) {
	r := &recorder{}
	steps := []Step{
		r.step("a", nil, nil),
		{
			Name:    "b",
			Execute: func(ctx context.Context) error { panic("capability exploded") },
		},
	}

	outcome := NewOrchestrator(logging.Discard()).Run(context.Background(), steps)

	assert.Equal(t, SagaStatusCompensated, outcome.Status)
	assert.Equal(t, "b", outcome.FailedStep)
	assert.Contains(t, outcome.Err.Error(), "capability exploded")
	assert.Equal(t, []string{"exec:a", "comp:a"}, r.calls)
}

func TestOrchestrator_Run_CancelBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recorder{}

	var compensationCtxErr error
	steps := []Step{
		{
			Name: "a",
			Execute: func(stepCtx context.Context) error {
				cancel()
				r.calls = append(r.calls, "exec:a")
				return stepCtx.Err()
			},
			Compensate: func(compCtx context.Context) error {
				compensationCtxErr = compCtx.Err()
				r.calls = append(r.calls, "comp:a")
				return nil
			},
		},
		r.step("b", nil, nil),
	}

	outcome := NewOrchestrator(logging.Discard()).Run(ctx, steps)

	require.Equal(t, SagaStatusCompensated, outcome.Status)
	assert.True(t, outcome.Cancelled)
	assert.Equal(t, "b", outcome.FailedStep)
	assert.ErrorIs(t, outcome.Err, ErrCancelled)
	assert.Equal(t, []string{"exec:a", "comp:a"}, r.calls)
	assert.NoError(t, compensationCtxErr)
}
