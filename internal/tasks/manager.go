// Package tasks supervises task execution: a per-function or global
// timeout and a cooperative cancellation monitor wrap every handler run.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// TaskFetcher is the slice of the backend the cancellation monitor needs.
type TaskFetcher interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

// ExecFunc is one function handler invocation.
type ExecFunc func(ctx context.Context) (map[string]any, error)

// Manager runs handlers under timeout and cancellation supervision.
type Manager struct {
	fetcher       TaskFetcher
	checkInterval time.Duration
	log           *observability.Logger
}

// NewManager builds a manager polling the backend for cancellation every
// checkInterval.
func NewManager(fetcher TaskFetcher, checkInterval time.Duration, log *observability.Logger) *Manager {
	if checkInterval <= 0 {
		checkInterval = 3 * time.Second
	}
	if log == nil {
		log = observability.NewLogger(observability.LogConfig{})
	}
	return &Manager{fetcher: fetcher, checkInterval: checkInterval, log: log}
}

// stop reasons recorded by the supervisors.
type stopReason int

const (
	stopNone stopReason = iota
	stopTimeout
	stopCancelled
)

// Run executes fn under a deadline and the cancellation monitor. It
// returns the handler output on success, or a TaskException naming what
// went wrong. A handler that completes at or before the deadline wins over
// a concurrently firing supervisor.
func (m *Manager) Run(ctx context.Context, task *models.Task, timeout time.Duration, timeoutSource string, fn ExecFunc) (map[string]any, *models.TaskException) {
	ctx = observability.WithTaskID(ctx, task.ID)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type execResult struct {
		output map[string]any
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		output, err := fn(runCtx)
		done <- execResult{output: output, err: err}
	}()

	monitorStopped := make(chan struct{})
	reason := make(chan stopReason, 2)
	go m.monitorCancellation(runCtx, task.ID, reason, monitorStopped, cancel)

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	var stopped stopReason
	var result execResult
	select {
	case result = <-done:
	case <-timer:
		// The handler may have finished right at the deadline; completion
		// wins when its result is already waiting.
		select {
		case result = <-done:
		default:
			stopped = stopTimeout
			cancel()
			result = <-done
		}
	case r := <-reason:
		stopped = r
		result = <-done
	}
	cancel()
	<-monitorStopped

	switch stopped {
	case stopTimeout:
		return nil, &models.TaskException{
			Type:          models.ExceptionTimeout,
			Error:         fmt.Sprintf("task exceeded %s timeout of %s", timeoutSource, timeout),
			Timeout:       timeout.Seconds(),
			TimeoutSource: timeoutSource,
		}
	case stopCancelled:
		return nil, &models.TaskException{
			Type:  models.ExceptionCancelled,
			Error: "task canceled by backend",
		}
	}

	if result.err != nil {
		// The handler may surface the supervising context's cancellation;
		// without a recorded reason it is an ordinary failure.
		if errors.Is(result.err, context.Canceled) && ctx.Err() != nil {
			return nil, &models.TaskException{
				Type:  models.ExceptionCancelled,
				Error: "task canceled",
			}
		}
		return nil, &models.TaskException{
			Type:  exceptionType(result.err),
			Error: result.err.Error(),
		}
	}
	return result.output, nil
}

// monitorCancellation polls the backend until the run context ends,
// signalling when canceled_at appears. Transient fetch errors are
// swallowed; the next tick retries.
func (m *Manager) monitorCancellation(ctx context.Context, taskID string, reason chan<- stopReason, stopped chan<- struct{}, cancel context.CancelFunc) {
	defer close(stopped)
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		task, err := m.fetcher.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn(ctx, "cancellation check failed", "error", err)
			continue
		}
		if task != nil && task.CanceledAt != nil {
			reason <- stopCancelled
			cancel()
			return
		}
	}
}

// exceptionType classifies a handler error for the recorded exception.
func exceptionType(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return models.ExceptionValidation
	}
	return "Error"
}

// ValidationError marks bad input or an unknown function: the task fails
// and is not retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewValidationError builds a validation failure.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
