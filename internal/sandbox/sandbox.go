package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
)

// Executor runs a single Command under the isolation tier named by a
// Config. Each call owns its own resources end to end; Executor itself
// holds no cross-call state (spec.md §3: "SandboxExecutor owns
// container/process handles for the lifetime of a single execution").
type Executor struct{}

// New constructs a stateless Executor.
func New() *Executor {
	return &Executor{}
}

// Run dispatches cmd to the isolation tier cfg.Tier selects. The `none` tier
// is handled by callers directly (an in-process function call never goes
// through Executor.Run; spec.md reserves it for "trusted pure functions...
// never for file/network/shell").
func (x *Executor) Run(ctx context.Context, cfg Config, cmd Command) (Result, error) {
	switch cfg.Tier {
	case TierProcess:
		return runProcess(ctx, cfg, cmd)
	case TierContainer:
		return runContainer(ctx, cfg, cmd)
	case TierMicroVM:
		return runMicroVM(ctx, cfg, cmd)
	case TierNone:
		return Result{}, fmt.Errorf("sandbox: tier %q must be called in-process, not via Executor.Run", cfg.Tier)
	default:
		return Result{}, fmt.Errorf("sandbox: unknown tier %q", cfg.Tier)
	}
}

// ResolveAndCheck validates requestedPath against cfg.WorkDir using the
// dual lexical/symlink resolution discipline, and additionally enforces
// cfg.AllowedPaths/BlockedPaths glob lists when non-empty.
func (x *Executor) ResolveAndCheck(cfg Config, requestedPath string) (string, error) {
	resolved, err := ResolvePath(cfg.WorkDir, requestedPath)
	if err != nil {
		return "", err
	}
	if len(cfg.BlockedPaths) > 0 && matchesAny(cfg.BlockedPaths, resolved) {
		return "", ErrPathEscapes
	}
	if len(cfg.AllowedPaths) > 0 && !matchesAny(cfg.AllowedPaths, resolved) {
		return "", ErrPathEscapes
	}
	return resolved, nil
}

func matchesAny(patterns []string, target string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, target); ok {
			return true
		}
	}
	return false
}
