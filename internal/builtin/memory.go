package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/meao/internal/labels"
	"github.com/haasonsaas/meao/internal/memory"
	"github.com/haasonsaas/meao/internal/policy"
	"github.com/haasonsaas/meao/internal/tools"
)

// RememberTool writes a piece of conversation content into semantic memory,
// gated by policy.FlowController's FC-2 check (internal/gateway's
// maybeIndexVectorMemory indexes unconditionally; this core requires the
// untrusted-content confirmation round trip FC-2 adds). A write whose label
// is untrusted is refused with the confirmation prompt on the first call;
// the caller must resubmit with confirm=true to proceed, at which point the
// label is promoted per policy.PromoteForMemory before the entry is stored.
type RememberTool struct {
	store memory.Store
	flow  *policy.FlowController
}

// NewRememberTool constructs a RememberTool backed by store and flow.
func NewRememberTool(store memory.Store, flow *policy.FlowController) *RememberTool {
	return &RememberTool{store: store, flow: flow}
}

func (t *RememberTool) Name() string   { return "remember" }
func (t *RememberTool) Action() string { return "write" }

func (t *RememberTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "Text to store in semantic memory."},
			"session_id": {"type": "string", "description": "Session this memory belongs to."},
			"confirm": {"type": "boolean", "description": "Set true to proceed after a confirmation prompt was returned."}
		},
		"required": ["content"]
	}`)
}

func (t *RememberTool) Capability() tools.Capability {
	return tools.Capability{
		Approval: policy.ApprovalConfig{Level: policy.LevelAuto},
		LogArgs:  true,
	}
}

type rememberArgs struct {
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
	Confirm   bool   `json:"confirm"`
}

func (t *RememberTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	var a rememberArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.Output{Success: false, Text: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}
	if strings.TrimSpace(a.Content) == "" {
		return tools.Output{Success: false, Text: "content must not be empty"}, nil
	}

	label := labels.Combine("remember", env.InputLabels...)
	decision := t.flow.CanEgress(a.Content, label, policy.DestinationSemanticMemory)
	switch decision.Outcome {
	case policy.FlowDeny:
		return tools.Output{Success: false, Text: decision.Reason}, nil
	case policy.FlowConfirm:
		if !a.Confirm {
			return tools.Output{Success: false, Text: decision.Prompt}, nil
		}
		label = policy.PromoteForMemory(label)
	}

	entry := memory.Entry{ID: uuid.NewString(), SessionID: a.SessionID, Content: a.Content, Label: label}
	if err := t.store.Write(ctx, entry); err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	return tools.Output{Success: true, Text: fmt.Sprintf("remembered entry %s", entry.ID)}, nil
}

// RecallTool searches semantic memory for entries relevant to a query,
// scoped to the calling session.
type RecallTool struct {
	store memory.Store
}

// NewRecallTool constructs a RecallTool backed by store.
func NewRecallTool(store memory.Store) *RecallTool {
	return &RecallTool{store: store}
}

func (t *RecallTool) Name() string   { return "recall" }
func (t *RecallTool) Action() string { return "search" }

func (t *RecallTool) ParameterSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"session_id": {"type": "string"},
			"limit": {"type": "integer"}
		},
		"required": ["query"]
	}`)
}

func (t *RecallTool) Capability() tools.Capability {
	return tools.Capability{Approval: policy.ApprovalConfig{Level: policy.LevelAuto}}
}

type recallArgs struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

func (t *RecallTool) Invoke(ctx context.Context, args json.RawMessage, env tools.InvocationEnv) (tools.Output, error) {
	var a recallArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.Output{Success: false, Text: fmt.Sprintf("invalid arguments: %v", err)}, nil
	}

	entries, err := t.store.SearchRelevant(ctx, a.SessionID, a.Query, a.Limit)
	if err != nil {
		return tools.Output{Success: false, Text: err.Error()}, nil
	}
	if len(entries) == 0 {
		return tools.Output{Success: true, Text: "no matching memory entries"}, nil
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(e.Content)
	}
	return tools.Output{Success: true, Text: b.String()}, nil
}
