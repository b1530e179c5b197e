package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

// buildConfigureCmd builds the `configure` subcommand: interactively
// collect provider API keys and write a starter meao.yaml.
func buildConfigureCmd() *cobra.Command {
	var configPath string
	var providerName string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Interactively write a starter config with provider credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, resolveConfigPath(configPath), providerName)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to write meao.yaml (default: $MEAO_CONFIG or meao.yaml)")
	cmd.Flags().StringVar(&providerName, "provider", "anthropic", "Provider to configure (anthropic or openai)")
	return cmd
}

// runConfigure prompts for a provider API key, masking terminal input, and
// writes (or updates) configPath with it.
//
// Grounded on cmd/nexus/handlers_channels.go's promptPassword: prefer
// term.ReadPassword when stdin is a real terminal, falling back to a plain
// line read (e.g. when input is piped) so the command still works
// non-interactively.
func runConfigure(cmd *cobra.Command, configPath, providerName string) error {
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	fmt.Fprintf(out, "%s API key: ", providerName)
	apiKey := promptSecret(reader)
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("no API key entered")
	}

	doc := map[string]any{}
	if raw, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("parse existing config %s: %w", configPath, err)
		}
	}

	providers, _ := doc["providers"].(map[string]any)
	if providers == nil {
		providers = map[string]any{}
	}
	providers[providerName] = map[string]any{"api_key": apiKey}
	doc["providers"] = providers

	encoded, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath, encoded, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}

	fmt.Fprintf(out, "Wrote %s provider credentials to %s\n", providerName, configPath)
	return nil
}

// promptSecret reads one line of input without echoing it when stdin is an
// interactive terminal.
func promptSecret(reader *bufio.Reader) string {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		text, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(text))
		}
	}
	text, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
