package main

import (
	"context"

	"github.com/haasonsaas/meao/internal/config"
	"github.com/haasonsaas/meao/internal/sandbox"
	"github.com/haasonsaas/meao/internal/tools"
)

// sandboxedRunner adapts a *tools.Executor to orchestrator.ToolRunner,
// filling InvocationEnv.Sandbox with the process-wide default profile
// before every call. The orchestrator itself always calls Execute with a
// zero-value InvocationEnv (tool dispatch is intentionally the only place
// that knows about per-session sandbox state), so this is the one seam
// where a concrete run loop hands each call its work_dir/timeout/output
// limits.
type sandboxedRunner struct {
	exec    *tools.Executor
	profile sandbox.Config
}

func newSandboxedRunner(exec *tools.Executor, cfg config.SandboxConfig, workDir string) *sandboxedRunner {
	tier := sandbox.Tier(cfg.DefaultTier)
	if tier == "" {
		tier = sandbox.TierProcess
	}
	return &sandboxedRunner{
		exec: exec,
		profile: sandbox.Config{
			Tier:            tier,
			WorkDir:         workDir,
			TimeoutMS:       int(cfg.TimeoutMS),
			MaxOutputBytes:  int(cfg.MaxOutputBytes),
			Image:           cfg.Image,
			MemLimitMB:      int(cfg.MemLimitMB),
			CPULimit:        cfg.CPULimit,
			PidsLimit:       int(cfg.PidsLimit),
			AllowedPaths:    cfg.AllowedPaths,
			EgressAllowlist: cfg.EgressAllowlist,
			MicroVM: sandbox.MicroVMProfile{
				KernelPath: cfg.MicroVMKernelPath,
				RootFSPath: cfg.MicroVMRootFSPath,
				VCPUs:      cfg.MicroVMVCPUs,
				MemSizeMB:  cfg.MicroVMMemMB,
			},
		},
	}
}

func (r *sandboxedRunner) Execute(ctx context.Context, call tools.Call, tctx tools.Context, env tools.InvocationEnv) tools.Result {
	if env.Sandbox.Tier == "" {
		env.Sandbox = r.profile
		if tctx.WorkDir != "" {
			env.Sandbox.WorkDir = tctx.WorkDir
		}
	}
	return r.exec.Execute(ctx, call, tctx, env)
}
