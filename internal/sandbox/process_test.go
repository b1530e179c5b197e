package sandbox

import (
	"context"
	"strings"
	"testing"
)

func TestRunProcessCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Tier: TierProcess, WorkDir: dir, EnvPolicy: EnvClean, TimeoutMS: 5000, MaxOutputBytes: 4096}
	res, err := runProcess(context.Background(), cfg, Command{Path: "/bin/echo", Args: []string{"hello"}})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("stdout = %q", res.Stdout)
	}
	if res.TimedOut || res.Truncated {
		t.Errorf("unexpected flags: %+v", res)
	}
}

func TestRunProcessEnforcesTimeout(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Tier: TierProcess, WorkDir: dir, EnvPolicy: EnvClean, TimeoutMS: 50}
	res, err := runProcess(context.Background(), cfg, Command{Path: "/bin/sleep", Args: []string{"5"}})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if !res.TimedOut {
		t.Errorf("expected TimedOut, got %+v", res)
	}
}

func TestRunProcessTruncatesOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Tier: TierProcess, WorkDir: dir, EnvPolicy: EnvClean, TimeoutMS: 5000, MaxOutputBytes: 4}
	res, err := runProcess(context.Background(), cfg, Command{Path: "/bin/echo", Args: []string{"hello world"}})
	if err != nil {
		t.Fatalf("runProcess: %v", err)
	}
	if !res.Truncated {
		t.Errorf("expected Truncated, got %+v", res)
	}
	if len(res.Stdout) > 4 {
		t.Errorf("stdout exceeds limit: %q", res.Stdout)
	}
}

func TestBuildEnvCleanOmitsParentVars(t *testing.T) {
	t.Setenv("MEAO_TEST_SECRET", "leak-me")
	env := buildEnv(Config{EnvPolicy: EnvClean, WorkDir: "/work"})
	for _, kv := range env {
		if strings.Contains(kv, "leak-me") {
			t.Errorf("clean env policy leaked parent var: %v", env)
		}
	}
}

func TestBuildEnvExplicitAllowsOnlyListed(t *testing.T) {
	t.Setenv("MEAO_TEST_ALLOWED", "ok")
	t.Setenv("MEAO_TEST_DENIED", "nope")
	env := buildEnv(Config{EnvPolicy: EnvExplicit, EnvAllowlist: []string{"MEAO_TEST_ALLOWED"}})
	joined := strings.Join(env, " ")
	if !strings.Contains(joined, "MEAO_TEST_ALLOWED=ok") {
		t.Errorf("allowlisted var missing: %v", env)
	}
	if strings.Contains(joined, "MEAO_TEST_DENIED") {
		t.Errorf("non-allowlisted var leaked: %v", env)
	}
}
