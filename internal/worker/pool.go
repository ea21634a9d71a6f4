package worker

import (
	"context"
	"sync"

	"github.com/import-ai/omnibox-wizard-sub000/internal/config"
	"github.com/import-ai/omnibox-wizard-sub000/internal/functions"
	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
)

// Pool runs N independent workers over the same task source.
type Pool struct {
	workers []*Worker
	tracker *Tracker
	log     *observability.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool builds count workers sharing one source, registry, manager, and
// deliverer.
func NewPool(count int, source TaskSource, registry *functions.Registry, manager *tasks.Manager, deliverer ResultSink, tracker *Tracker, cfg config.WorkerConfig, log *observability.Logger, metrics *observability.Metrics, tracer *observability.Tracer) *Pool {
	if count <= 0 {
		count = 1
	}
	if log == nil {
		log = observability.NewLogger(observability.LogConfig{})
	}
	p := &Pool{tracker: tracker, log: log}
	for i := 0; i < count; i++ {
		p.workers = append(p.workers, NewWorker(source, registry, manager, deliverer, tracker, cfg, log, metrics, tracer))
	}
	return p
}

// Start launches every worker. Calling Start twice is a no-op until Stop.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.log.Info(ctx, "starting worker pool", "workers", len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(runCtx)
		}(w)
	}
}

// Stop cancels the workers and waits for in-flight tasks to wind down.
func (p *Pool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.log.Info(context.Background(), "worker pool stopped")
}

// Tracker exposes the pool's health tracker to the HTTP surface.
func (p *Pool) Tracker() *Tracker {
	return p.tracker
}
