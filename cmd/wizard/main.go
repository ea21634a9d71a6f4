// Package main is the CLI entry point for the wizard service.
//
// Wizard is the agent and task-processing core behind the omnibox
// backend: it streams retrieval-augmented chat turns over SSE and runs a
// worker pool that pulls tasks (agent runs, file reads, index updates)
// off the backend queue.
//
// Start the service:
//
//	wizard serve --config wizard.yaml
//
// Dump the configuration schema:
//
//	wizard config schema
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "wizard",
		Short:        "Wizard - retrieval-augmented agent and task worker",
		Long:         "Wizard serves streaming agent chat turns and runs the task worker pool for the omnibox backend.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wizard %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
