// Package builtin provides the small set of concrete ToolPlugins meao ships
// out of the box: a sandboxed shell command, workspace file read/write, and
// an async job status lookup. Every plugin here only ever returns a
// tools.Output -- approval gating, labeling, and redaction stay in
// tools.Executor, per tools.ToolPlugin's contract, while the shell and file
// plugins run their work through sandbox.Executor under the sandbox.Config
// in their InvocationEnv.
//
// Grounded on the teacher's internal/tools/exec and internal/tools/files
// packages, narrowed to the process/container sandbox tiers this core
// implements instead of the teacher's Docker-only executeRunner.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/sandbox"
	"github.com/haasonsaas/meao/internal/tools"
)

// ShellTool runs a single non-interactive command under the sandbox.Config
// in its InvocationEnv; the tier it was built with is only reported by its
// Capability, and Invoke does not apply it. It never invokes a shell directly (no "sh -c");
// callers pass the program and argv explicitly, matching sandbox.Command's
// "non-shell-interpolated" contract.
type ShellTool struct {
	exec    *sandbox.Executor
	cfg     sandbox.Config
	danger  []*regexp.Regexp
	approve policy.Level
}

// ShellConfig parameterizes a ShellTool's default sandbox profile.
// Per-call fields (WorkDir, TimeoutMS, MaxOutputBytes) are not set here:
// Invoke runs under the sandbox.Config passed in its InvocationEnv.
type ShellConfig struct {
	Tier           sandbox.Tier
	Image          string
	Network        sandbox.NetworkMode
	Approve        policy.Level
	DangerPatterns []*regexp.Regexp
}

// NewShellTool constructs a ShellTool bound to exec, defaulting to the
// process tier with ask-level approval when cfg.Approve is unset.
func NewShellTool(exec *sandbox.Executor, cfg ShellConfig) *ShellTool {
	if cfg.Tier == "" {
		cfg.Tier = sandbox.TierProcess
	}
	if cfg.Approve == "" {
		cfg.Approve = policy.LevelAsk
	}
	return &ShellTool{
		exec:    exec,
		approve: cfg.Approve,
		danger:  cfg.DangerPatterns,
		cfg: sandbox.Config{
			Tier:    cfg.Tier,
			Image:   cfg.Image,
			Network: cfg.Network,
		},
	}
}

func (t *ShellTool) Name() string   { return "shell" }
func (t *ShellTool) Action() string { return "run" }

func (t *ShellTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Executable to run."},
			"args": {"type": "array", "items": {"type": "string"}, "description": "Argument list."},
			"stdin": {"type": "string", "description": "Optional stdin to pipe in."}
		},
		"required": ["path"]
	}`)
}

func (t *ShellTool) Capability() tools.Capability {
	return tools.Capability{
		IsDestructive: true,
		Approval: policy.ApprovalConfig{
			Level:          t.approve,
			DangerPatterns: t.danger,
		},
		Execution: tools.ExecutionProfile{
			Sandbox: t.cfg.Tier,
			Network: t.cfg.Network,
			Image:   t.cfg.Image,
		},
		LogArgs: true,
	}
}

type shellArgs struct {
	Path  string   `json:"path"`
	Args  []string `json:"args"`
	Stdin string    `json:"stdin"`
}

func (t *ShellTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	var a shellArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.Output{Success: false, Text: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	result, err := t.exec.Run(ctx, env.Sandbox, sandbox.Command{Path: a.Path, Args: a.Args, Stdin: a.Stdin})
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}

	text := result.Stdout
	if result.Stderr != "" {
		text += "\n[stderr]\n" + result.Stderr
	}
	if result.TimedOut {
		text += "\n[timed out]"
	}
	if result.Truncated {
		text += "\n[output truncated]"
	}
	return tools.Output{Success: result.ExitCode == 0 && !result.TimedOut, Text: text}, nil
}
