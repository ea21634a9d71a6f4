package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	logger.Info(context.Background(), "llm configured",
		"detail", "api_key=abcdef0123456789abcdef")

	out := buf.String()
	if strings.Contains(out, "abcdef0123456789abcdef") {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Fatalf("expected redaction marker in output: %s", out)
	}
}

func TestLoggerRedactsSensitiveMapKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	logger.Info(context.Background(), "request",
		"headers", map[string]string{"Authorization": "Bearer abc", "Accept": "application/json"})

	out := buf.String()
	if strings.Contains(out, "Bearer abc") {
		t.Fatalf("authorization header leaked: %s", out)
	}
	if !strings.Contains(out, "application/json") {
		t.Fatalf("benign header was dropped: %s", out)
	}
}

func TestLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	ctx := WithTaskID(context.Background(), "task-9")
	ctx = WithWorkerID(ctx, "worker-2")
	logger.Info(ctx, "dispatching")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if record["task_id"] != "task-9" {
		t.Errorf("task_id = %v, want task-9", record["task_id"])
	}
	if record["worker_id"] != "worker-2" {
		t.Errorf("worker_id = %v, want worker-2", record["worker_id"])
	}
}

func TestLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info(context.Background(), "suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted at warn level: %s", buf.String())
	}
	logger.Warn(context.Background(), "kept")
	if buf.Len() == 0 {
		t.Fatal("warn record missing")
	}
}
