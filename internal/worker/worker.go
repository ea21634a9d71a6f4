package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/import-ai/omnibox-wizard-sub000/internal/config"
	"github.com/import-ai/omnibox-wizard-sub000/internal/functions"
	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// TaskSource is the slice of the backend client the poll loop uses.
type TaskSource interface {
	FetchTask(ctx context.Context) (*models.Task, error)
}

// ResultSink delivers finished task results.
type ResultSink interface {
	Deliver(ctx context.Context, result *models.TaskResult) error
}

// Worker runs the poll/dispatch/callback loop for one lane.
type Worker struct {
	id        string
	source    TaskSource
	registry  *functions.Registry
	manager   *tasks.Manager
	deliverer ResultSink
	tracker   *Tracker
	timeouts  config.WorkerConfig

	log     *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	sleep func(ctx context.Context, d time.Duration)
}

// NewWorker builds one worker. metrics and tracer may be nil.
func NewWorker(source TaskSource, registry *functions.Registry, manager *tasks.Manager, deliverer ResultSink, tracker *Tracker, timeouts config.WorkerConfig, log *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Worker {
	if log == nil {
		log = observability.NewLogger(observability.LogConfig{})
	}
	return &Worker{
		id:        uuid.NewString(),
		source:    source,
		registry:  registry,
		manager:   manager,
		deliverer: deliverer,
		tracker:   tracker,
		timeouts:  timeouts,
		log:       log,
		metrics:   metrics,
		tracer:    tracer,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string { return w.id }

// Run polls until ctx ends. Poll failures are transient by definition: the
// backend restarting must not kill the worker, so errors log and the loop
// sleeps and retries.
func (w *Worker) Run(ctx context.Context) {
	ctx = observability.WithWorkerID(ctx, w.id)
	w.beat(StateIdle, "")
	if w.metrics != nil {
		w.metrics.RecordWorkerState("", StateIdle)
	}
	defer func() {
		w.tracker.Remove(w.id)
		if w.metrics != nil {
			w.metrics.RecordWorkerState(StateIdle, "")
		}
	}()

	interval := w.timeouts.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := w.source.FetchTask(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn(ctx, "task poll failed", "error", err)
			if w.metrics != nil {
				w.metrics.RecordError("worker", "poll_failed")
			}
			w.beat(StateIdle, "")
			w.sleep(ctx, interval)
			continue
		}
		if task == nil {
			w.beat(StateIdle, "")
			w.sleep(ctx, interval)
			continue
		}

		w.handle(ctx, task)
	}
}

// handle dispatches one task and delivers its result.
func (w *Worker) handle(ctx context.Context, task *models.Task) {
	ctx = observability.WithTaskID(ctx, task.ID)
	if w.tracer != nil {
		// Parent under the producer's span via the task's trace headers.
		var span trace.Span
		ctx, span = w.tracer.TraceTask(ctx, task.Function, task.ID, task.TraceHeaders())
		defer span.End()
	}

	w.beat(StateRunning, task.ID)
	if w.metrics != nil {
		w.metrics.RecordWorkerState(StateIdle, StateRunning)
	}
	w.log.Info(ctx, "task started", "function", task.Function)

	start := time.Now()
	output, exc := w.manager.Run(ctx, task, w.resolveTimeout(task), w.timeoutSource(task), func(runCtx context.Context) (map[string]any, error) {
		return w.registry.Dispatch(runCtx, task)
	})
	ended := time.Now()
	task.EndedAt = &ended

	result := &models.TaskResult{
		ID:        task.ID,
		Output:    output,
		Exception: exc,
		Status:    models.ResultStatus(exc),
	}
	if w.metrics != nil {
		w.metrics.RecordTask(task.Function, result.Status, ended.Sub(start).Seconds())
	}
	switch result.Status {
	case models.TaskStatusSuccess:
		w.log.Info(ctx, "task finished", "function", task.Function, "duration", ended.Sub(start))
	case models.TaskStatusCanceled:
		w.log.Info(ctx, "task canceled", "function", task.Function)
	default:
		w.log.Error(ctx, "task failed", "function", task.Function, "exception", exc.Type, "error", exc.Error)
	}

	// Delivery must survive worker shutdown and task cancellation; the
	// backend needs to hear the terminal state either way.
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	if err := w.deliverer.Deliver(deliverCtx, result); err != nil {
		w.log.Error(ctx, "callback delivery failed", "task_id", task.ID, "error", err)
		if w.metrics != nil {
			w.metrics.RecordError("worker", "callback_failed")
		}
		w.beat(StateError, "")
	} else {
		w.beat(StateIdle, "")
	}
	if w.metrics != nil {
		w.metrics.RecordWorkerState(StateRunning, StateIdle)
	}
}

func (w *Worker) resolveTimeout(task *models.Task) time.Duration {
	d, _ := w.timeouts.FunctionTimeout(task.Function)
	return d
}

func (w *Worker) timeoutSource(task *models.Task) string {
	_, source := w.timeouts.FunctionTimeout(task.Function)
	return source
}

func (w *Worker) beat(state, taskID string) {
	if w.tracker != nil {
		w.tracker.Beat(w.id, state, taskID)
	}
}
