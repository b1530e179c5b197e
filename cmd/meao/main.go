// Package main provides meao's CLI entry point.
//
// meao is a personal AI assistant's agent execution core: a turn/tool-loop
// orchestrator, an approval-gated sandboxed tool executor, and a labeling/
// secret-redaction/audit pipeline wrapped around a CLI channel.
//
// # Basic Usage
//
//	meao run --config meao.yaml
//
// # Environment Variables
//
//   - MEAO_CONFIG: path to the configuration file (default: meao.yaml)
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: provider credentials, if not set
//     directly in the config file
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build:
//
//	go build -ldflags "-X main.version=v0.1.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version     = "dev"
	commit      = "none"
	date        = "unknown"
	profileName string
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the command tree. Separated from main so tests can
// exercise it without invoking os.Exit.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "meao",
		Short:        "meao - personal AI assistant agent execution core",
		Long:         "meao drives a turn/tool-loop orchestrator against a sandboxed, approval-gated tool executor, with label-aware flow control and a tamper-evident audit trail.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Named config profile under ~/.meao/profiles/<name>.yaml (or set MEAO_PROFILE)")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildAuditCmd(),
		buildJobsCmd(),
		buildConfigureCmd(),
		buildSessionsCmd(),
	)
	return rootCmd
}
