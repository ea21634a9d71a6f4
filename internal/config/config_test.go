package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
backend:
  base_url: http://backend:8000
llm:
  base_url: http://llm:8000/v1
  model: qwen-plus
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "wizard.yaml", minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Worker.Count != 1 {
		t.Errorf("worker count = %d, want 1", cfg.Worker.Count)
	}
	if cfg.Worker.PollInterval != time.Second {
		t.Errorf("poll interval = %v, want 1s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.CancelCheckInterval != 3*time.Second {
		t.Errorf("cancel check interval = %v, want 3s", cfg.Worker.CancelCheckInterval)
	}
	if cfg.Callback.InlineLimitBytes != 5<<20 {
		t.Errorf("inline limit = %d, want 5 MiB", cfg.Callback.InlineLimitBytes)
	}
	if cfg.Worker.HeartbeatStale != 30*time.Second {
		t.Errorf("heartbeat stale = %v, want 30s", cfg.Worker.HeartbeatStale)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "from-env")
	body := minimalYAML + "  api_key: ${TEST_LLM_KEY}\n"

	cfg, err := Load(writeConfig(t, "wizard.yaml", body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.APIKey != "from-env" {
		t.Fatalf("api key = %q, want from-env", cfg.LLM.APIKey)
	}
}

func TestLoadEnvOverridesWin(t *testing.T) {
	t.Setenv("WIZARD_LLM_MODEL", "qwen-max")
	t.Setenv("WIZARD_WORKERS", "4")

	cfg, err := Load(writeConfig(t, "wizard.yaml", minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Model != "qwen-max" {
		t.Errorf("model = %q, want env override", cfg.LLM.Model)
	}
	if cfg.Worker.Count != 4 {
		t.Errorf("workers = %d, want 4", cfg.Worker.Count)
	}
}

func TestLoadJSON5(t *testing.T) {
	body := `{
  // comments are fine in json5
  backend: {base_url: "http://backend:8000"},
  llm: {base_url: "http://llm:8000/v1", model: "qwen-plus"},
}`
	cfg, err := Load(writeConfig(t, "wizard.json5", body))
	if err != nil {
		t.Fatalf("load json5: %v", err)
	}
	if cfg.Backend.BaseURL != "http://backend:8000" {
		t.Fatalf("backend url = %q", cfg.Backend.BaseURL)
	}
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	_, err := Load(writeConfig(t, "wizard.yaml", "server:\n  http_port: 9\n"))
	if err == nil {
		t.Fatal("expected validation error for missing backend/llm settings")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Fatalf("err = %v, want a required-field message", err)
	}
}

func TestFunctionTimeoutResolution(t *testing.T) {
	w := WorkerConfig{
		GlobalTimeout:    30 * time.Minute,
		FunctionTimeouts: map[string]time.Duration{"file_reader": 600 * time.Second},
	}

	d, source := w.FunctionTimeout("file_reader")
	if d != 600*time.Second || source != "function" {
		t.Fatalf("file_reader timeout = %v/%s", d, source)
	}
	d, source = w.FunctionTimeout("agent_run")
	if d != 30*time.Minute || source != "global" {
		t.Fatalf("agent_run timeout = %v/%s", d, source)
	}
}

func TestJSONSchemaIncludesSections(t *testing.T) {
	schema, err := JSONSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{"backend", "llm", "worker", "callback", "object_store"} {
		if !strings.Contains(string(schema), want) {
			t.Errorf("schema missing section %q", want)
		}
	}
}
