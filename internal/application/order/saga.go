package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-saga/internal/apperr"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability"
	"github.com/Zhima-Mochi/minishop-saga/internal/observability/logctx"
)

const defaultCompensationTimeout = 5 * time.Second

// Step is one saga action with its optional compensation.
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// StepResult records how a step (or its compensation) went.
type StepResult struct {
	Name       string
	Status     string // ok, error, compensated, compensation_failed
	DurationMS int64
	Detail     string
}

// StepError is returned when a step fails. Err is the step's error;
// CompensationErr joins any failures while undoing earlier steps.
type StepError struct {
	Step            string
	Err             error
	CompensationErr error
}

func (e *StepError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("saga step %s: %v (compensation: %v)", e.Step, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("saga step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Saga runs steps in order. When a step fails, the compensations of every step
// that already succeeded run in reverse order before the error is returned.
type Saga struct {
	log                 observability.Logger
	compensations       observability.Counter
	compensationTimeout time.Duration
}

func NewSaga(tel observability.Observability) *Saga {
	tel = observability.OrNop(tel)
	return &Saga{
		log:                 tel.Logger().With(observability.F("component", "saga")),
		compensations:       tel.Metrics().Counter(observability.MSagaCompensations),
		compensationTimeout: defaultCompensationTimeout,
	}
}

func (s *Saga) Run(ctx context.Context, steps []Step) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	done := make([]Step, 0, len(steps))

	for _, step := range steps {
		start := time.Now()
		err := ctx.Err()
		if err == nil {
			err = step.Action(ctx)
		}
		res := StepResult{Name: step.Name, Status: "ok", DurationMS: time.Since(start).Milliseconds()}
		if err != nil {
			res.Status, res.Detail = "error", apperr.Kind(err)
			results = append(results, res)

			compResults, compErr := s.compensate(ctx, done)
			results = append(results, compResults...)
			return results, &StepError{Step: step.Name, Err: err, CompensationErr: compErr}
		}
		results = append(results, res)
		done = append(done, step)
	}
	return results, nil
}

func (s *Saga) compensate(ctx context.Context, done []Step) ([]StepResult, error) {
	logger := logctx.FromOr(ctx, s.log)
	// Compensations must run even when the caller has gone away.
	base := context.WithoutCancel(ctx)

	var results []StepResult
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		step := done[i]
		if step.Compensate == nil {
			continue
		}
		start := time.Now()
		cctx, cancel := context.WithTimeout(base, s.compensationTimeout)
		err := step.Compensate(cctx)
		cancel()

		res := StepResult{Name: step.Name, Status: "compensated", DurationMS: time.Since(start).Milliseconds()}
		outcome := "success"
		if err != nil {
			res.Status, res.Detail, outcome = "compensation_failed", apperr.Kind(err), "error"
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
			logger.Error("saga_compensation_failed",
				observability.F("step", step.Name),
				observability.F("error", err.Error()),
			)
		} else {
			logger.Info("saga_compensated", observability.F("step", step.Name))
		}
		s.compensations.Add(1, observability.L("step", step.Name), observability.L("outcome", outcome))
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
