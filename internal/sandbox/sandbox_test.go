package sandbox

import (
	"path/filepath"
	"testing"
)

func TestResolveAndCheckEnforcesAllowlist(t *testing.T) {
	dir := t.TempDir()
	x := New()
	cfg := Config{WorkDir: dir, AllowedPaths: []string{filepath.Join(dir, "data", "*")}}

	if _, err := x.ResolveAndCheck(cfg, filepath.Join("data", "file.txt")); err != nil {
		t.Errorf("expected allowed path to pass, got %v", err)
	}
	if _, err := x.ResolveAndCheck(cfg, "other.txt"); err == nil {
		t.Error("expected path outside allowlist to be rejected")
	}
}

func TestResolveAndCheckEnforcesBlocklist(t *testing.T) {
	dir := t.TempDir()
	x := New()
	cfg := Config{WorkDir: dir, BlockedPaths: []string{filepath.Join(dir, "secrets", "*")}}

	if _, err := x.ResolveAndCheck(cfg, filepath.Join("secrets", "key.pem")); err == nil {
		t.Error("expected blocked path to be rejected")
	}
	if _, err := x.ResolveAndCheck(cfg, "public.txt"); err != nil {
		t.Errorf("expected non-blocked path to pass, got %v", err)
	}
}

func TestRunRejectsNoneTier(t *testing.T) {
	x := New()
	if _, err := x.Run(nil, Config{Tier: TierNone}, Command{}); err == nil {
		t.Error("expected error for none tier via Run")
	}
}
