// Package sagas implements multi-step workflows with compensation.
// Each step may register an undo action; when a later step fails, the
// completed steps are compensated in reverse order.
package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is a single unit of work in a saga
type Step struct {
	Name       string
	Execute    func(ctx context.Context, data interface{}) (interface{}, error)
	Compensate func(ctx context.Context, data interface{}) error
	MaxRetries int
	RetryDelay time.Duration
}

// State is the lifecycle state of a saga execution
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
)

// Saga orchestrates a series of steps with compensation logic
type Saga struct {
	id            string
	name          string
	steps         []Step
	compensations []func(ctx context.Context) error
	state         State
	logger        *zap.Logger
}

// New creates a saga
func New(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     uuid.New().String(),
		name:   name,
		state:  StatePending,
		logger: logger,
	}
}

// AddStep appends a step to the saga
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// ID returns the saga's unique identifier
func (s *Saga) ID() string { return s.id }

// State returns the saga's lifecycle state
func (s *Saga) State() State { return s.state }

// Execute runs the steps in order. Data flows from one step to the
// next; the final step's output is the saga's result.
func (s *Saga) Execute(ctx context.Context, initialData interface{}) (interface{}, error) {
	s.state = StateRunning
	s.logger.Info("starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("steps", len(s.steps)))

	data := initialData
	for i, step := range s.steps {
		result, err := s.runStep(ctx, step, data)
		if err != nil {
			s.state = StateFailed
			s.logger.Error("saga step failed",
				zap.String("saga_id", s.id),
				zap.String("step", step.Name),
				zap.Int("step_number", i+1),
				zap.Error(err))

			s.compensate(ctx)
			return nil, fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		data = result
		if step.Compensate != nil {
			stepData := data
			compensate := step.Compensate
			s.compensations = append(s.compensations, func(ctx context.Context) error {
				return compensate(ctx, stepData)
			})
		}
	}

	s.state = StateCompleted
	s.logger.Info("saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name))
	return data, nil
}

func (s *Saga) runStep(ctx context.Context, step Step, data interface{}) (interface{}, error) {
	attempts := step.MaxRetries
	if attempts == 0 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay == 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := step.Execute(ctx, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
		s.logger.Warn("saga step attempt failed",
			zap.String("saga_id", s.id),
			zap.String("step", step.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, fmt.Errorf("step %s failed after %d attempts: %w", step.Name, attempts, lastErr)
}

// compensate runs the registered undo actions in reverse order. A
// failing compensation is logged and the rest still run.
func (s *Saga) compensate(ctx context.Context) {
	s.state = StateCompensating
	for i := len(s.compensations) - 1; i >= 0; i-- {
		if err := s.compensations[i](ctx); err != nil {
			s.logger.Error("saga compensation failed",
				zap.String("saga_id", s.id),
				zap.Int("step_number", i+1),
				zap.Error(err))
		}
	}
	s.state = StateCompensated
}
