package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/import-ai/omnibox-wizard-sub000/internal/agent"
	"github.com/import-ai/omnibox-wizard-sub000/internal/backend"
	"github.com/import-ai/omnibox-wizard-sub000/internal/config"
	"github.com/import-ai/omnibox-wizard-sub000/internal/functions"
	"github.com/import-ai/omnibox-wizard-sub000/internal/llm"
	"github.com/import-ai/omnibox-wizard-sub000/internal/objectstore"
	"github.com/import-ai/omnibox-wizard-sub000/internal/observability"
	"github.com/import-ai/omnibox-wizard-sub000/internal/ratelimit"
	"github.com/import-ai/omnibox-wizard-sub000/internal/retrieval"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tasks"
	"github.com/import-ai/omnibox-wizard-sub000/internal/tools"
	"github.com/import-ai/omnibox-wizard-sub000/internal/web"
	"github.com/import-ai/omnibox-wizard-sub000/internal/worker"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		workers    int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, workers, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "wizard.yaml", "Path to configuration file")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker count (overrides worker.count)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, workers int, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if workers > 0 {
		cfg.Worker.Count = workers
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	log := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SampleRatio,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn(context.Background(), "tracer shutdown failed", "error", err)
		}
	}()

	log.Info(ctx, "starting wizard",
		"version", version,
		"config", configPath,
		"workers", cfg.Worker.Count,
		"http_port", cfg.Server.HTTPPort,
	)

	backendClient := backend.New(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.Timeout,
	})
	llmClient := llm.New(llm.Config{
		BaseURL:       cfg.LLM.BaseURL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		ThinkingModel: cfg.LLM.ThinkingModel,
		Timeout:       cfg.LLM.Timeout,
	}, metrics)
	reranker := retrieval.NewHTTPReranker(retrieval.RerankerConfig{
		Endpoint:  cfg.Retrieval.Rerank.Endpoint,
		APIKey:    cfg.Retrieval.Rerank.APIKey,
		Model:     cfg.Retrieval.Rerank.Model,
		Threshold: cfg.Retrieval.Rerank.Threshold,
		TopK:      cfg.Retrieval.Rerank.TopK,
		Timeout:   cfg.Retrieval.Rerank.Timeout,
	})

	toolRegistry, err := buildToolRegistry(cfg, backendClient)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}
	loop := agent.NewLoop(llmClient, toolRegistry, reranker, log, metrics, tracer)

	fnRegistry, err := buildFunctionRegistry(ctx, cfg, loop, backendClient, log)
	if err != nil {
		return fmt.Errorf("build function registry: %w", err)
	}

	manager := tasks.NewManager(backendClient, cfg.Worker.CancelCheckInterval, log)
	deliverer := worker.NewDeliverer(backendClient, cfg.Callback.InlineLimitBytes, log, metrics)
	tracker := worker.NewTracker(cfg.Worker.HeartbeatStale)
	pool := worker.NewPool(cfg.Worker.Count, backendClient, fnRegistry, manager, deliverer, tracker, cfg.Worker, log, metrics, tracer)

	server := web.NewServer(cfg.Server, loop, tracker, log, metrics)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Start(runCtx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		pool.Stop()
		return err
	case <-runCtx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn(context.Background(), "http shutdown failed", "error", err)
	}
	pool.Stop()
	return nil
}

// buildToolRegistry registers the search and resource tools the agent may
// be handed. Optional tools register only when configured.
func buildToolRegistry(cfg *config.Config, b *backend.Client) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	list := []tools.Tool{
		tools.NewPrivateSearch(b, cfg.Tools.SearchTopK),
		tools.NewGetResource(b),
		tools.NewListChildren(b),
		tools.NewFilterByTime(b),
		tools.NewFilterByTag(b),
	}
	if cfg.Tools.WebSearch.Endpoint != "" {
		list = append(list, tools.NewWebSearch(tools.WebSearchConfig{
			Endpoint: cfg.Tools.WebSearch.Endpoint,
			APIKey:   cfg.Tools.WebSearch.APIKey,
			Timeout:  cfg.Tools.WebSearch.Timeout,
		}))
	}
	if cfg.Tools.KnowledgeNamespace != "" {
		list = append(list, tools.NewKnowledgeSearch(b, cfg.Tools.KnowledgeNamespace, cfg.Tools.SearchTopK))
	}

	for _, t := range list {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// buildFunctionRegistry registers the task handlers. agent_run is always
// available; file_reader needs the object store and index_update needs the
// embedding endpoint.
func buildFunctionRegistry(ctx context.Context, cfg *config.Config, loop *agent.Loop, b *backend.Client, log *observability.Logger) (*functions.Registry, error) {
	registry := functions.NewRegistry()
	registry.Register("agent_run", functions.NewAgentRun(loop))

	if cfg.ObjectStore.Bucket != "" {
		store, err := objectstore.New(ctx, objectstore.Config{
			Bucket:          cfg.ObjectStore.Bucket,
			Region:          cfg.ObjectStore.Region,
			Endpoint:        cfg.ObjectStore.Endpoint,
			Prefix:          cfg.ObjectStore.Prefix,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			UsePathStyle:    cfg.ObjectStore.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
		limiter := ratelimit.NewLimiter(ratelimit.Config{
			DocumentReads: cfg.RateLimit.DocumentReads,
			MarkdownReads: cfg.RateLimit.MarkdownReads,
		})
		registry.Register("file_reader", functions.NewFileReader(store, limiter))
	} else {
		log.Warn(ctx, "object store not configured, file_reader disabled")
	}

	if cfg.Retrieval.Embedding.BaseURL != "" {
		embedder := retrieval.NewOpenAIEmbedder(
			cfg.Retrieval.Embedding.BaseURL,
			cfg.Retrieval.Embedding.APIKey,
			cfg.Retrieval.Embedding.Model,
		)
		registry.Register("index_update", functions.NewIndexUpdate(embedder, b))
	} else {
		log.Warn(ctx, "embedding endpoint not configured, index_update disabled")
	}

	return registry, nil
}
