package config

import (
	"fmt"
	"time"
)

// Config is the main configuration structure for the wizard service.
type Config struct {
	Server      ServerConfig      `yaml:"server" json:"server"`
	Backend     BackendConfig     `yaml:"backend" json:"backend"`
	LLM         LLMConfig         `yaml:"llm" json:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" json:"retrieval"`
	Tools       ToolsConfig       `yaml:"tools" json:"tools"`
	Worker      WorkerConfig      `yaml:"worker" json:"worker"`
	Callback    CallbackConfig    `yaml:"callback" json:"callback"`
	ObjectStore ObjectStoreConfig `yaml:"object_store" json:"object_store"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" json:"rate_limit"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Tracing     TracingConfig     `yaml:"tracing" json:"tracing"`
}

type ServerConfig struct {
	Host     string `yaml:"host" json:"host"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
}

// BackendConfig points at the backend that owns the task queue, the
// resource API, and the vector index.
type BackendConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model" json:"model"`
	// ThinkingModel, when set, is used instead of Model for turns with
	// thinking enabled. When empty the request carries the enable_thinking
	// vendor extension instead.
	ThinkingModel string        `yaml:"thinking_model" json:"thinking_model"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

type RetrievalConfig struct {
	Rerank    RerankConfig    `yaml:"rerank" json:"rerank"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
}

// RerankConfig configures the external rerank endpoint. An empty endpoint
// disables reranking; retrievals then pass through unchanged.
type RerankConfig struct {
	Endpoint  string        `yaml:"endpoint" json:"endpoint"`
	APIKey    string        `yaml:"api_key" json:"api_key"`
	Model     string        `yaml:"model" json:"model"`
	Threshold float64       `yaml:"threshold" json:"threshold"`
	TopK      int           `yaml:"top_k" json:"top_k"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"api_key"`
	Model   string `yaml:"model" json:"model"`
}

type ToolsConfig struct {
	WebSearch WebSearchConfig `yaml:"web_search" json:"web_search"`
	// KnowledgeNamespace scopes the shared knowledge_search tool. Empty
	// disables the tool.
	KnowledgeNamespace string `yaml:"knowledge_namespace" json:"knowledge_namespace"`
	// SearchTopK bounds how many retrievals a single search returns.
	SearchTopK int `yaml:"search_top_k" json:"search_top_k"`
}

type WebSearchConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

type WorkerConfig struct {
	// Count is the number of concurrent workers; the --workers flag
	// overrides it.
	Count        int           `yaml:"count" json:"count"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// GlobalTimeout bounds any task without a function-specific timeout.
	GlobalTimeout time.Duration `yaml:"global_timeout" json:"global_timeout"`
	// FunctionTimeouts overrides the global timeout per function name.
	FunctionTimeouts map[string]time.Duration `yaml:"function_timeouts" json:"function_timeouts"`
	// CancelCheckInterval is how often a running task polls the backend
	// for cooperative cancellation.
	CancelCheckInterval time.Duration `yaml:"cancel_check_interval" json:"cancel_check_interval"`
	// HeartbeatStale marks a worker unhealthy when its last heartbeat is
	// older than this.
	HeartbeatStale time.Duration `yaml:"heartbeat_stale" json:"heartbeat_stale"`
}

type CallbackConfig struct {
	// InlineLimitBytes is the largest payload delivered through the inline
	// callback endpoint; larger payloads take the presigned-upload path.
	InlineLimitBytes int64 `yaml:"inline_limit_bytes" json:"inline_limit_bytes"`
}

// ObjectStoreConfig configures the S3-compatible store holding raw
// uploaded documents.
type ObjectStoreConfig struct {
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	Prefix          string `yaml:"prefix" json:"prefix"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style" json:"use_path_style"`
}

// RateLimitConfig sizes the per-category read semaphores.
type RateLimitConfig struct {
	DocumentReads int `yaml:"document_reads" json:"document_reads"`
	MarkdownReads int `yaml:"markdown_reads" json:"markdown_reads"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address. Empty disables tracing.
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	ServiceName string  `yaml:"service_name" json:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
	Insecure    bool    `yaml:"insecure" json:"insecure"`
}

// FunctionTimeout resolves the timeout for a function name together with
// the source that supplied it ("function" or "global").
func (w *WorkerConfig) FunctionTimeout(function string) (time.Duration, string) {
	if d, ok := w.FunctionTimeouts[function]; ok && d > 0 {
		return d, "function"
	}
	return w.GlobalTimeout, "global"
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 5 * time.Minute
	}
	if cfg.Retrieval.Rerank.TopK == 0 {
		cfg.Retrieval.Rerank.TopK = 10
	}
	if cfg.Retrieval.Rerank.Timeout == 0 {
		cfg.Retrieval.Rerank.Timeout = 30 * time.Second
	}
	if cfg.Tools.SearchTopK == 0 {
		cfg.Tools.SearchTopK = 20
	}
	if cfg.Tools.WebSearch.Timeout == 0 {
		cfg.Tools.WebSearch.Timeout = 30 * time.Second
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 1
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = time.Second
	}
	if cfg.Worker.GlobalTimeout == 0 {
		cfg.Worker.GlobalTimeout = 30 * time.Minute
	}
	if cfg.Worker.CancelCheckInterval == 0 {
		cfg.Worker.CancelCheckInterval = 3 * time.Second
	}
	if cfg.Worker.HeartbeatStale == 0 {
		cfg.Worker.HeartbeatStale = 30 * time.Second
	}
	if cfg.Callback.InlineLimitBytes == 0 {
		cfg.Callback.InlineLimitBytes = 5 << 20
	}
	if cfg.RateLimit.DocumentReads == 0 {
		cfg.RateLimit.DocumentReads = 4
	}
	if cfg.RateLimit.MarkdownReads == 0 {
		cfg.RateLimit.MarkdownReads = 16
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "wizard"
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1.0
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.Worker.Count < 0 {
		return fmt.Errorf("worker.count must not be negative")
	}
	if c.Callback.InlineLimitBytes < 0 {
		return fmt.Errorf("callback.inline_limit_bytes must not be negative")
	}
	return nil
}
