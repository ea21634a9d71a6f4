package models

import (
	"encoding/json"
	"time"
)

// Task is the unit of work a worker pulls from the backend queue.
type Task struct {
	ID          string `json:"id"`
	Priority    int    `json:"priority,omitempty"`
	NamespaceID string `json:"namespace_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	// Function names the handler that executes this task.
	Function string `json:"function"`
	// Input is the per-function payload; its shape is owned by the handler.
	Input json.RawMessage `json:"input,omitempty"`
	// Payload is pass-through metadata the producer attached, including
	// trace propagation headers under "trace_headers".
	Payload map[string]any `json:"payload,omitempty"`

	Output    map[string]any `json:"output,omitempty"`
	Exception *TaskException `json:"exception,omitempty"`

	CreatedAt  *time.Time `json:"created_at,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`
}

// TraceHeaders extracts the propagation headers embedded in the task
// payload by the producer. Returns nil when absent.
func (t *Task) TraceHeaders() map[string]string {
	if t.Payload == nil {
		return nil
	}
	raw, ok := t.Payload["trace_headers"]
	if !ok {
		return nil
	}
	headers := make(map[string]string)
	switch m := raw.(type) {
	case map[string]string:
		return m
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// Exception type tags recorded on failed tasks.
const (
	ExceptionTimeout    = "TimeoutError"
	ExceptionCancelled  = "CancelledError"
	ExceptionValidation = "ValidationError"
)

// Timeout sources recorded on TimeoutError exceptions.
const (
	TimeoutSourceFunction = "function"
	TimeoutSourceGlobal   = "global"
)

// TaskException records why a task failed.
type TaskException struct {
	Type      string `json:"type"`
	Error     string `json:"error,omitempty"`
	Traceback string `json:"traceback,omitempty"`
	// Timeout is the expired limit in seconds; set on TimeoutError only.
	Timeout float64 `json:"timeout,omitempty"`
	// TimeoutSource says which limit fired: "function" or "global".
	TimeoutSource string `json:"timeout_source,omitempty"`
}

// Task result statuses delivered through the callback.
const (
	TaskStatusSuccess  = "success"
	TaskStatusFailed   = "failed"
	TaskStatusCanceled = "canceled"
)

// TaskResult is the callback payload a worker delivers when a task reaches
// a terminal state.
type TaskResult struct {
	ID        string         `json:"id"`
	Exception *TaskException `json:"exception,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	Status    string         `json:"status"`
}

// ResultStatus derives the callback status from the recorded exception.
func ResultStatus(exc *TaskException) string {
	switch {
	case exc == nil:
		return TaskStatusSuccess
	case exc.Type == ExceptionCancelled:
		return TaskStatusCanceled
	default:
		return TaskStatusFailed
	}
}
