package orchestrator

import "context"

// Provider is the orchestrator's view of an LLM backend. Defined here
// rather than in internal/provider so that concrete bindings (Anthropic,
// OpenAI) depend on internal/orchestrator instead of the reverse,
// avoiding a cycle while keeping the interface next to its one consumer.
//
// Grounded on internal/agent/loop.go's ModelClient dependency, narrowed to
// the single blocking call the state machine actually needs per turn.
type Provider interface {
	// Complete sends the full message history plus available tool
	// definitions and returns one assistant turn: zero or more content
	// blocks (text and/or tool_use) plus usage for that call. It must
	// block until the provider either finishes the turn or requests tool
	// use; streaming, if the concrete binding does it, is internal.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionRequest is everything a Provider needs to produce the next
// assistant turn.
type CompletionRequest struct {
	SessionID string
	Messages  []Message
	Tools     []ToolDefinition
}

// ToolDefinition is the subset of a tool's identity a provider needs to
// offer it to the model: name, description, and JSON Schema parameters.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      []byte
}

// CompletionResponse is one provider turn.
type CompletionResponse struct {
	Blocks     []Block
	Usage      Usage
	StopReason StopReason
}

// StopReason discriminates why the provider stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopError     StopReason = "error"
)
