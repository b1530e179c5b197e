package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/sandbox"
	"github.com/haasonsaas/meao/internal/tools"
)

// ReadFileTool reads a workspace-relative file, resolved and boundary
// checked through sandbox.Executor.ResolveAndCheck exactly as the shell and
// container tiers do, so a read tool can never escape work_dir any more
// than a sandboxed command can.
//
// Grounded on the teacher's internal/tools/files.ReadTool/Resolver,
// generalized from the teacher's own path-joining resolver to this core's
// shared sandbox.ResolvePath dual lexical/symlink check.
type ReadFileTool struct {
	exec         *sandbox.Executor
	maxReadBytes int
}

// NewReadFileTool constructs a ReadFileTool. maxReadBytes <= 0 defaults to
// 200000, matching the teacher's ReadTool default.
func NewReadFileTool(exec *sandbox.Executor, maxReadBytes int) *ReadFileTool {
	if maxReadBytes <= 0 {
		maxReadBytes = 200_000
	}
	return &ReadFileTool{exec: exec, maxReadBytes: maxReadBytes}
}

func (t *ReadFileTool) Name() string   { return "read_file" }
func (t *ReadFileTool) Action() string { return "read" }

func (t *ReadFileTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string", "description": "Path relative to the session work_dir."}},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Capability() tools.Capability {
	return tools.Capability{
		Approval: policy.ApprovalConfig{Level: policy.LevelAuto},
	}
}

type readFileArgs struct {
	Path string `json:"path"`
}

func (t *ReadFileTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.Output{Success: false, Text: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	resolved, err := t.exec.ResolveAndCheck(env.Sandbox, a.Path)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	if len(data) > t.maxReadBytes {
		data = data[:t.maxReadBytes]
	}
	return tools.Output{Success: true, Text: string(data)}, nil
}

// WriteFileTool writes a workspace-relative file, boundary checked the same
// way as ReadFileTool. It defaults to ask-level approval since it mutates
// the filesystem, grounded on the teacher's files.WriteTool requiring
// confirmation for destructive filesystem operations.
type WriteFileTool struct {
	exec *sandbox.Executor
}

// NewWriteFileTool constructs a WriteFileTool.
func NewWriteFileTool(exec *sandbox.Executor) *WriteFileTool {
	return &WriteFileTool{exec: exec}
}

func (t *WriteFileTool) Name() string   { return "write_file" }
func (t *WriteFileTool) Action() string { return "write" }

func (t *WriteFileTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path relative to the session work_dir."},
			"content": {"type": "string"}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Capability() tools.Capability {
	return tools.Capability{
		IsDestructive: true,
		Approval:      policy.ApprovalConfig{Level: policy.LevelAsk},
		LogArgs:       true,
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteFileTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.Output{Success: false, Text: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	resolved, err := t.exec.ResolveAndCheck(env.Sandbox, a.Path)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}

	if err := os.WriteFile(resolved, []byte(a.Content), 0o644); err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	return tools.Output{Success: true, Text: fmt.Sprintf("wrote %d bytes to %s", len(a.Content), a.Path)}, nil
}
