package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/import-ai/omnibox-wizard-sub000/internal/config"
	"github.com/import-ai/omnibox-wizard-sub000/internal/functions"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// scriptedSource hands out the scripted outcomes in order, then blocks
// until the context ends.
type scriptedSource struct {
	mu    sync.Mutex
	steps []func() (*models.Task, error)
	polls int
}

func (s *scriptedSource) FetchTask(ctx context.Context) (*models.Task, error) {
	s.mu.Lock()
	s.polls++
	var step func() (*models.Task, error)
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()
	if step == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return step()
}

type sinkStub struct {
	mu      sync.Mutex
	results []*models.TaskResult
	err     error
	got     chan struct{}
}

func newSinkStub() *sinkStub {
	return &sinkStub{got: make(chan struct{}, 16)}
}

func (s *sinkStub) Deliver(ctx context.Context, result *models.TaskResult) error {
	s.mu.Lock()
	s.results = append(s.results, result)
	s.mu.Unlock()
	s.got <- struct{}{}
	return s.err
}

func (s *sinkStub) delivered() []*models.TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.TaskResult(nil), s.results...)
}

type fetcherStub struct{}

func (fetcherStub) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return &models.Task{ID: id}, nil
}

func newTestWorker(source TaskSource, sink ResultSink, fn functions.HandlerFunc) (*Worker, *Tracker) {
	registry := functions.NewRegistry()
	if fn != nil {
		registry.Register("echo", fn)
	}
	manager := tasks.NewManager(fetcherStub{}, time.Minute, nil)
	tracker := NewTracker(time.Minute)
	cfg := config.WorkerConfig{PollInterval: time.Millisecond, GlobalTimeout: time.Minute}
	w := NewWorker(source, registry, manager, sink, tracker, cfg, nil, nil, nil)
	w.sleep = func(ctx context.Context, d time.Duration) {
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
	}
	return w, tracker
}

// Poll failures must never kill the loop: after two refused polls the
// worker still picks up and runs the next task.
func TestWorkerSurvivesPollFailures(t *testing.T) {
	task := &models.Task{ID: "t1", Function: "echo", Input: json.RawMessage(`{}`)}
	source := &scriptedSource{steps: []func() (*models.Task, error){
		func() (*models.Task, error) { return nil, errors.New("backend down") },
		func() (*models.Task, error) { return nil, errors.New("backend still down") },
		func() (*models.Task, error) { return task, nil },
	}}
	sink := newSinkStub()
	w, _ := newTestWorker(source, sink, func(ctx context.Context, task *models.Task) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-sink.got:
	case <-time.After(5 * time.Second):
		t.Fatal("task never delivered after poll failures")
	}
	cancel()
	<-done

	results := sink.delivered()
	if len(results) != 1 {
		t.Fatalf("delivered = %d results", len(results))
	}
	if results[0].ID != "t1" || results[0].Status != models.TaskStatusSuccess {
		t.Errorf("result = %+v", results[0])
	}
	if results[0].Output["ok"] != true {
		t.Errorf("output = %v", results[0].Output)
	}
}

func TestWorkerReportsHandlerFailure(t *testing.T) {
	task := &models.Task{ID: "t1", Function: "echo", Input: json.RawMessage(`{}`)}
	source := &scriptedSource{steps: []func() (*models.Task, error){
		func() (*models.Task, error) { return task, nil },
	}}
	sink := newSinkStub()
	w, _ := newTestWorker(source, sink, func(ctx context.Context, task *models.Task) (map[string]any, error) {
		return nil, errors.New("handler blew up")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-sink.got:
	case <-time.After(5 * time.Second):
		t.Fatal("failure never delivered")
	}
	cancel()
	<-done

	results := sink.delivered()
	if results[0].Status != models.TaskStatusFailed {
		t.Fatalf("status = %q", results[0].Status)
	}
	if results[0].Exception == nil || results[0].Exception.Error != "handler blew up" {
		t.Errorf("exception = %+v", results[0].Exception)
	}
	if results[0].Exception.Type != "Error" {
		t.Errorf("exception type = %q", results[0].Exception.Type)
	}
}

func TestWorkerUnknownFunctionIsValidationFailure(t *testing.T) {
	task := &models.Task{ID: "t1", Function: "no_such_function"}
	source := &scriptedSource{steps: []func() (*models.Task, error){
		func() (*models.Task, error) { return task, nil },
	}}
	sink := newSinkStub()
	w, _ := newTestWorker(source, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-sink.got:
	case <-time.After(5 * time.Second):
		t.Fatal("result never delivered")
	}
	cancel()
	<-done

	results := sink.delivered()
	if results[0].Exception == nil || results[0].Exception.Type != models.ExceptionValidation {
		t.Fatalf("exception = %+v, want validation", results[0].Exception)
	}
}

func TestWorkerHeartbeatsThroughLifecycle(t *testing.T) {
	task := &models.Task{ID: "t1", Function: "echo", Input: json.RawMessage(`{}`)}
	source := &scriptedSource{steps: []func() (*models.Task, error){
		func() (*models.Task, error) { return task, nil },
	}}
	sink := newSinkStub()
	w, tracker := newTestWorker(source, sink, func(ctx context.Context, task *models.Task) (map[string]any, error) {
		return map[string]any{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-sink.got:
	case <-time.After(5 * time.Second):
		t.Fatal("task never delivered")
	}
	report := tracker.Snapshot()
	if report.Total != 1 || report.Healthy != 1 {
		t.Errorf("report = %d/%d, want 1/1", report.Healthy, report.Total)
	}

	cancel()
	<-done
	// A stopped worker drops out of the report entirely.
	if report := tracker.Snapshot(); report.Total != 0 {
		t.Errorf("total = %d after stop", report.Total)
	}
}

func TestPoolStartStop(t *testing.T) {
	source := &scriptedSource{}
	sink := newSinkStub()
	registry := functions.NewRegistry()
	manager := tasks.NewManager(fetcherStub{}, time.Minute, nil)
	tracker := NewTracker(time.Minute)
	cfg := config.WorkerConfig{PollInterval: time.Millisecond}

	p := NewPool(3, source, registry, manager, sink, tracker, cfg, nil, nil, nil)
	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx) // second start is a no-op

	deadline := time.After(5 * time.Second)
	for tracker.Snapshot().Total < 3 {
		select {
		case <-deadline:
			t.Fatalf("workers registered = %d, want 3", tracker.Snapshot().Total)
		case <-time.After(time.Millisecond):
		}
	}

	p.Stop()
	if got := tracker.Snapshot().Total; got != 0 {
		t.Fatalf("workers registered after stop = %d", got)
	}
	p.Stop() // second stop is a no-op
}
