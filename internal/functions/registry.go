// Package functions holds the handlers a worker can dispatch a task to.
package functions

import (
	"context"

	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// Handler executes one task function.
type Handler interface {
	Run(ctx context.Context, task *models.Task) (map[string]any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task *models.Task) (map[string]any, error)

func (f HandlerFunc) Run(ctx context.Context, task *models.Task) (map[string]any, error) {
	return f(ctx, task)
}

// Registry maps function names to handlers. Registration happens at
// startup; dispatch happens per task.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty function registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler under a function name, replacing any prior one.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Get returns the handler for a function name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Dispatch runs the task's function. An unknown function is a validation
// error: the task fails and is not retried.
func (r *Registry) Dispatch(ctx context.Context, task *models.Task) (map[string]any, error) {
	h, ok := r.handlers[task.Function]
	if !ok {
		return nil, tasks.NewValidationError("unknown function %q", task.Function)
	}
	return h.Run(ctx, task)
}
