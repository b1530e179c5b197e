// Package orchestrator implements the turn/tool-loop state machine that
// drives a single user message to a finalized assistant response:
// idle -> receiving -> processing -> (awaiting_tool | awaiting_approval |
// awaiting_provider) -> processing -> idle.
//
// Grounded on internal/agent/loop.go's AgenticLoop, generalized from its
// channel-of-ResponseChunk streaming shape into the synchronous
// ProcessMessage contract spec.md §4.1 specifies, while keeping the same
// phase-by-phase structure (stream, execute tools, continue).
package orchestrator

import (
	"time"

	"github.com/haasonsaas/meao/internal/labels"
)

// State is a Session's position in the orchestrator state machine.
type State string

const (
	StateIdle             State = "idle"
	StateReceiving         State = "receiving"
	StateProcessing        State = "processing"
	StateAwaitingTool      State = "awaiting_tool"
	StateAwaitingApproval  State = "awaiting_approval"
	StateAwaitingProvider  State = "awaiting_provider"
)

// SessionLifecycle is the session manager's view of a session, separate
// from the orchestrator's own State machine (spec.md §3 distinguishes
// session.state from the orchestrator's transient per-call state).
type SessionLifecycle string

const (
	LifecycleActive    SessionLifecycle = "active"
	LifecyclePaused    SessionLifecycle = "paused"
	LifecycleCompleted SessionLifecycle = "completed"
	LifecycleExpired   SessionLifecycle = "expired"
)

// Usage is a provider response's token accounting. Addition must be
// associative and idempotent per spec.md §4.1.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add returns the componentwise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// BlockKind discriminates the polymorphic content-block variant spec.md §9
// requires ("tagged variant... never an inheritance hierarchy").
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockError      BlockKind = "error"
)

// Block is a single polymorphic message block.
type Block struct {
	Kind BlockKind

	// BlockText
	Text string

	// BlockToolUse
	ToolUseID string
	ToolName  string
	ToolInput []byte

	// BlockToolResult
	ToolResultID string
	Success      bool
	Output       string
	Labels       labels.ContentLabel

	// BlockError
	ErrorCode    string
	ErrorMessage string
}

// Message is a polymorphic block sequence attached to one role.
type Message struct {
	Role   string // "user" | "assistant"
	Blocks []Block
	Labels labels.ContentLabel
}

// Turn is exactly one per user message; tool-loop iterations accumulate
// inside it (spec.md §3).
type Turn struct {
	UserMessage     Message
	AssistantBlocks []Block
	ToolCalls       []Block
	Usage           Usage
	StartedAt       time.Time
	EndedAt         time.Time

	// MessageCountAfter is len(Session.Messages) once this turn finished
	// appending to it. internal/session's branch store uses this to cut
	// Messages at an exact turn boundary when forking or merging, since a
	// turn's tool-loop iterations can append more than one message.
	MessageCountAfter int
}

// Session owns its turns and messages exclusively through one Orchestrator
// instance (spec.md §3 ownership rule).
type Session struct {
	ID         string
	UserID     string
	Lifecycle  SessionLifecycle
	Turns      []Turn
	Messages   []Message
	TotalUsage Usage
	EstimatedCost float64

	MaxTurns             int
	MaxToolCallsPerTurn  int
	InputPricePerMillion  float64
	OutputPricePerMillion float64
}

// Cost implements spec.md §4.1's cost formula.
func (s *Session) Cost() float64 {
	return float64(s.TotalUsage.InputTokens)/1e6*s.InputPricePerMillion +
		float64(s.TotalUsage.OutputTokens)/1e6*s.OutputPricePerMillion
}
