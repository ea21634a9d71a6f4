package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// fetcherFunc adapts a function to TaskFetcher.
type fetcherFunc func(ctx context.Context, id string) (*models.Task, error)

func (f fetcherFunc) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return f(ctx, id)
}

var neverCanceled = fetcherFunc(func(ctx context.Context, id string) (*models.Task, error) {
	return &models.Task{ID: id}, nil
})

func TestRunSuccess(t *testing.T) {
	m := NewManager(neverCanceled, 10*time.Millisecond, nil)
	out, exc := m.Run(context.Background(), &models.Task{ID: "t1"}, time.Second, models.TimeoutSourceGlobal,
		func(ctx context.Context) (map[string]any, error) {
			return map[string]any{"answer": 42}, nil
		})
	if exc != nil {
		t.Fatalf("exception = %+v", exc)
	}
	if out["answer"] != 42 {
		t.Fatalf("output = %+v", out)
	}
}

func TestRunFunctionTimeout(t *testing.T) {
	m := NewManager(neverCanceled, time.Hour, nil)
	start := time.Now()
	out, exc := m.Run(context.Background(), &models.Task{ID: "t1", Function: "file_reader"},
		30*time.Millisecond, models.TimeoutSourceFunction,
		func(ctx context.Context) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if out != nil {
		t.Errorf("output = %+v, want nil", out)
	}
	if exc == nil || exc.Type != models.ExceptionTimeout {
		t.Fatalf("exception = %+v, want TimeoutError", exc)
	}
	if exc.TimeoutSource != models.TimeoutSourceFunction {
		t.Errorf("timeout_source = %q, want function", exc.TimeoutSource)
	}
	if exc.Timeout != 0.03 {
		t.Errorf("timeout seconds = %v", exc.Timeout)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("run took %v, supervisor did not fire", elapsed)
	}
}

func TestRunGlobalTimeoutSource(t *testing.T) {
	m := NewManager(neverCanceled, time.Hour, nil)
	_, exc := m.Run(context.Background(), &models.Task{ID: "t1"},
		20*time.Millisecond, models.TimeoutSourceGlobal,
		func(ctx context.Context) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if exc == nil || exc.Type != models.ExceptionTimeout || exc.TimeoutSource != models.TimeoutSourceGlobal {
		t.Fatalf("exception = %+v", exc)
	}
}

func TestRunCompletionAtDeadlineWins(t *testing.T) {
	m := NewManager(neverCanceled, time.Hour, nil)
	// The handler finishes immediately; even a zero-ish deadline racing it
	// must not turn success into a timeout.
	for i := 0; i < 20; i++ {
		out, exc := m.Run(context.Background(), &models.Task{ID: "t1"},
			time.Millisecond, models.TimeoutSourceGlobal,
			func(ctx context.Context) (map[string]any, error) {
				return map[string]any{"ok": true}, nil
			})
		if exc != nil {
			t.Fatalf("iteration %d: exception = %+v, want completion to win", i, exc)
		}
		if out["ok"] != true {
			t.Fatalf("iteration %d: output = %+v", i, out)
		}
	}
}

func TestRunCancellationMonitor(t *testing.T) {
	canceledAt := time.Now()
	var polls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, id string) (*models.Task, error) {
		if polls.Add(1) >= 2 {
			return &models.Task{ID: id, CanceledAt: &canceledAt}, nil
		}
		return &models.Task{ID: id}, nil
	})

	m := NewManager(fetcher, 10*time.Millisecond, nil)
	_, exc := m.Run(context.Background(), &models.Task{ID: "t1"}, time.Minute, models.TimeoutSourceGlobal,
		func(ctx context.Context) (map[string]any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	if exc == nil || exc.Type != models.ExceptionCancelled {
		t.Fatalf("exception = %+v, want CancelledError", exc)
	}
}

func TestRunMonitorSwallowsTransientErrors(t *testing.T) {
	var polls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, id string) (*models.Task, error) {
		polls.Add(1)
		return nil, errors.New("connection refused")
	})

	m := NewManager(fetcher, 5*time.Millisecond, nil)
	out, exc := m.Run(context.Background(), &models.Task{ID: "t1"}, time.Second, models.TimeoutSourceGlobal,
		func(ctx context.Context) (map[string]any, error) {
			time.Sleep(30 * time.Millisecond)
			return map[string]any{"done": true}, nil
		})
	if exc != nil {
		t.Fatalf("exception = %+v, transient poll errors must not fail the task", exc)
	}
	if out["done"] != true {
		t.Fatalf("output = %+v", out)
	}
	if polls.Load() == 0 {
		t.Error("monitor never polled")
	}
}

func TestRunHandlerErrorRecorded(t *testing.T) {
	m := NewManager(neverCanceled, time.Hour, nil)
	_, exc := m.Run(context.Background(), &models.Task{ID: "t1"}, time.Second, models.TimeoutSourceGlobal,
		func(ctx context.Context) (map[string]any, error) {
			return nil, errors.New("reranker returned 503")
		})
	if exc == nil || exc.Type != "Error" || exc.Error != "reranker returned 503" {
		t.Fatalf("exception = %+v", exc)
	}
}

func TestRunValidationErrorType(t *testing.T) {
	m := NewManager(neverCanceled, time.Hour, nil)
	_, exc := m.Run(context.Background(), &models.Task{ID: "t1"}, time.Second, models.TimeoutSourceGlobal,
		func(ctx context.Context) (map[string]any, error) {
			return nil, NewValidationError("unknown function %q", "nope")
		})
	if exc == nil || exc.Type != models.ExceptionValidation {
		t.Fatalf("exception = %+v, want ValidationError", exc)
	}
}
