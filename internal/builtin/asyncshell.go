package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/haasonsaas/meao/internal/jobs"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/tools"
)

// AsyncShellTool queues a shell command through an internal/jobs.Runner
// instead of blocking the turn loop on it, returning the job_id immediately
// so the caller can poll job_status -- the async-tool-jobs supplement
// SPEC_FULL.md §9 describes. It shares ShellTool's parameter schema and
// approval profile but dispatches by tool name "shell" through the runner
// rather than invoking the sandbox directly, so the same approval/sandbox
// path applies whether a shell command runs sync or async.
type AsyncShellTool struct {
	runner  *jobs.Runner
	approve policy.Level
}

// NewAsyncShellTool constructs an AsyncShellTool that queues "shell" calls
// through runner.
func NewAsyncShellTool(runner *jobs.Runner, approve policy.Level) *AsyncShellTool {
	if approve == "" {
		approve = policy.LevelAsk
	}
	return &AsyncShellTool{runner: runner, approve: approve}
}

func (t *AsyncShellTool) Name() string   { return "async_shell" }
func (t *AsyncShellTool) Action() string { return "queue" }

func (t *AsyncShellTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Executable to run."},
			"args": {"type": "array", "items": {"type": "string"}},
			"stdin": {"type": "string"}
		},
		"required": ["path"]
	}`)
}

func (t *AsyncShellTool) Capability() tools.Capability {
	return tools.Capability{
		IsDestructive: true,
		Approval:      policy.ApprovalConfig{Level: t.approve},
		LogArgs:       true,
	}
}

func (t *AsyncShellTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	job, err := t.runner.Queue(tools.Call{ID: uuid.NewString(), Name: "shell", Action: "run", Args: args}, tools.Context{}, env)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	return tools.Output{Success: true, Text: fmt.Sprintf(`{"job_id":%q,"status":%q}`, job.ID, job.Status)}, nil
}
