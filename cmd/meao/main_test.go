package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestBuildRootCmdRegistersSubcommands(t *testing.T) {
	root := buildRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "audit", "jobs", "configure", "sessions"} {
		if !names[want] {
			t.Errorf("expected subcommand %q to be registered", want)
		}
	}
}

func TestRunConfigureWritesProviderAPIKey(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "meao.yaml")

	cmd := buildConfigureCmd()
	cmd.SetIn(strings.NewReader("sk-test-key\n"))
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runConfigure(cmd, configPath, "anthropic"); err != nil {
		t.Fatalf("runConfigure failed: %v", err)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("invalid yaml written: %v", err)
	}
	providers, _ := doc["providers"].(map[string]any)
	anthropic, _ := providers["anthropic"].(map[string]any)
	if anthropic["api_key"] != "sk-test-key" {
		t.Errorf("expected api_key sk-test-key, got %+v", anthropic)
	}
}

func TestRunConfigurePreservesExistingSections(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "meao.yaml")
	if err := os.WriteFile(configPath, []byte("orchestrator:\n  max_turns: 10\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := buildConfigureCmd()
	cmd.SetIn(strings.NewReader("sk-openai-key\n"))

	if err := runConfigure(cmd, configPath, "openai"); err != nil {
		t.Fatalf("runConfigure failed: %v", err)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	orch, _ := doc["orchestrator"].(map[string]any)
	if orch["max_turns"] != 10 {
		t.Errorf("expected existing orchestrator section preserved, got %+v", doc)
	}
	providers, _ := doc["providers"].(map[string]any)
	if providers["openai"] == nil {
		t.Errorf("expected openai provider section written, got %+v", doc)
	}
}

func TestParseControlDirective(t *testing.T) {
	if _, _, handled := parseControlDirective("hello"); handled {
		t.Error("expected a plain message to not be handled as a control directive")
	}
	directive, payload, handled := parseControlDirective("/elevate full")
	if !handled || directive != controlElevate || payload != "full" {
		t.Errorf("got directive=%v payload=%q handled=%v", directive, payload, handled)
	}
	directive, payload, handled = parseControlDirective("/steer stop and wait")
	if !handled || directive != controlSteer || payload != "stop and wait" {
		t.Errorf("got directive=%v payload=%q handled=%v", directive, payload, handled)
	}
	directive, payload, handled = parseControlDirective("/followup and one more thing")
	if !handled || directive != controlFollowUp || payload != "and one more thing" {
		t.Errorf("got directive=%v payload=%q handled=%v", directive, payload, handled)
	}
}
