package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// EnvPrefix scopes the environment variables that override file settings.
const EnvPrefix = "WIZARD_"

// Load reads a YAML or JSON5 configuration file, expands ${ENV} references,
// applies WIZARD_-prefixed environment overrides, fills defaults, and
// validates the result. An empty path yields a default configuration built
// from environment alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := parseBytes([]byte(expanded), path, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func parseBytes(data []byte, pathHint string, cfg *Config) error {
	format := strings.ToLower(filepath.Ext(pathHint))
	if format == ".json" || format == ".json5" {
		return json5.Unmarshal(data, cfg)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("expected a single document")
	}
	return nil
}

// applyEnvOverrides maps WIZARD_SECTION_FIELD variables onto the config.
// Only the settings commonly swapped per deployment are covered; anything
// else belongs in the file.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Backend.BaseURL, "BACKEND_BASE_URL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.ThinkingModel, "LLM_THINKING_MODEL")
	setString(&cfg.Retrieval.Rerank.Endpoint, "RERANK_ENDPOINT")
	setString(&cfg.Retrieval.Rerank.APIKey, "RERANK_API_KEY")
	setString(&cfg.Retrieval.Rerank.Model, "RERANK_MODEL")
	setString(&cfg.Retrieval.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	setString(&cfg.Retrieval.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&cfg.Retrieval.Embedding.Model, "EMBEDDING_MODEL")
	setString(&cfg.Tools.WebSearch.Endpoint, "WEB_SEARCH_ENDPOINT")
	setString(&cfg.Tools.WebSearch.APIKey, "WEB_SEARCH_API_KEY")
	setString(&cfg.ObjectStore.Bucket, "S3_BUCKET")
	setString(&cfg.ObjectStore.Region, "S3_REGION")
	setString(&cfg.ObjectStore.Endpoint, "S3_ENDPOINT")
	setString(&cfg.ObjectStore.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.ObjectStore.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Tracing.Endpoint, "OTLP_ENDPOINT")
	setInt(&cfg.Server.HTTPPort, "HTTP_PORT")
	setInt(&cfg.Worker.Count, "WORKERS")
	setDuration(&cfg.Worker.GlobalTimeout, "TASK_TIMEOUT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
