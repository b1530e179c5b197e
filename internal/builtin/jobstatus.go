package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/meao/internal/jobs"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/tools"
)

// JobStatusTool exposes internal/jobs.Store lookups as a tool call, the
// supplemented async-tool-jobs feature's polling surface (SPEC_FULL.md §9).
//
// Grounded on the teacher's internal/tools/jobs.StatusTool, adapted from
// agent.ToolResult to this core's tools.Output.
type JobStatusTool struct {
	store jobs.Store
}

// NewJobStatusTool constructs a JobStatusTool over store.
func NewJobStatusTool(store jobs.Store) *JobStatusTool {
	return &JobStatusTool{store: store}
}

func (t *JobStatusTool) Name() string   { return "job_status" }
func (t *JobStatusTool) Action() string { return "get" }

func (t *JobStatusTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"job_id":{"type":"string"}},"required":["job_id"]}`)
}

func (t *JobStatusTool) Capability() tools.Capability {
	return tools.Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAuto}}
}

type jobStatusArgs struct {
	JobID string `json:"job_id"`
}

func (t *JobStatusTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	var a jobStatusArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.Output{Success: false, Text: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	if a.JobID == "" {
		return tools.Output{Success: false, Text: "job_id is required"}, nil
	}

	job, ok, err := t.store.Get(ctx, a.JobID)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	if !ok {
		return tools.Output{Success: false, Text: "job not found"}, nil
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	return tools.Output{Success: true, Text: string(payload)}, nil
}
