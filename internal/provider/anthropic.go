// Package provider adapts third-party LLM SDKs to orchestrator.Provider.
// Each binding owns message/tool format conversion, retry/backoff for
// transient failures, and error wrapping — the orchestrator itself never
// sees an SDK type.
//
// Grounded on internal/agent/providers/anthropic.go and
// internal/agent/providers/openai.go, narrowed from their streaming
// chunk-channel contract to the single blocking call
// orchestrator.Provider.Complete specifies, since this core does not
// expose incremental token streaming to the channel layer.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/meao/internal/orchestrator"
)

// AnthropicConfig configures an AnthropicProvider. Only APIKey is required;
// the rest default the same way internal/agent/providers.AnthropicConfig
// does.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
	MaxRetries   int
	RetryDelay   time.Duration
}

// AnthropicProvider implements orchestrator.Provider against Anthropic's
// Messages API.
type AnthropicProvider struct {
	client     anthropic.Client
	model      string
	maxTokens  int64
	maxRetries int
	retryDelay time.Duration
}

// NewAnthropicProvider constructs an AnthropicProvider, applying the same
// defaults (3 retries, 1s base delay, claude-sonnet-4) the teacher's
// Anthropic binding uses.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider: anthropic API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:     anthropic.NewClient(opts...),
		model:      cfg.DefaultModel,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Complete implements orchestrator.Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req orchestrator.CompletionRequest) (orchestrator.CompletionResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		Messages:  convertMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	var resp *anthropic.Message
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err = p.client.Messages.New(ctx, params)
		if err == nil {
			break
		}
		if !isRetryableAnthropicError(err) || attempt == p.maxRetries {
			return orchestrator.CompletionResponse{}, wrapAnthropicError(err, p.model)
		}
		if sleepErr := backoff(ctx, p.retryDelay, attempt); sleepErr != nil {
			return orchestrator.CompletionResponse{}, sleepErr
		}
	}

	return anthropicToCompletionResponse(resp), nil
}

func convertMessages(msgs []orchestrator.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Kind {
			case orchestrator.BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case orchestrator.BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, toAny(b.ToolInput), b.ToolName))
			case orchestrator.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResultID, b.Output, !b.Success))
			case orchestrator.BlockError:
				blocks = append(blocks, anthropic.NewTextBlock(b.ErrorMessage))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func convertTools(defs []orchestrator.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(d.Schema, &schema)
		out = append(out, anthropic.ToolUnionParamOfTool(schema, d.Name))
	}
	return out
}

func anthropicToCompletionResponse(resp *anthropic.Message) orchestrator.CompletionResponse {
	var blocks []orchestrator.Block
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, orchestrator.Block{Kind: orchestrator.BlockText, Text: c.Text})
		case "tool_use":
			blocks = append(blocks, orchestrator.Block{
				Kind:      orchestrator.BlockToolUse,
				ToolUseID: c.ID,
				ToolName:  c.Name,
				ToolInput: []byte(c.Input),
			})
		}
	}
	return orchestrator.CompletionResponse{
		Blocks: blocks,
		Usage: orchestrator.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
		StopReason: anthropicStopReason(string(resp.StopReason)),
	}
}

func anthropicStopReason(r string) orchestrator.StopReason {
	switch r {
	case "tool_use":
		return orchestrator.StopToolUse
	case "max_tokens":
		return orchestrator.StopMaxTokens
	case "end_turn", "stop_sequence":
		return orchestrator.StopEndTurn
	default:
		return orchestrator.StopEndTurn
	}
}

func toAny(raw []byte) any {
	var v any
	if len(raw) == 0 {
		return map[string]any{}
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return map[string]any{}
	}
	return v
}

// isRetryableAnthropicError matches internal/agent/providers.isRetryableError's
// substring classification of rate limits, 5xx, timeouts, and connection
// resets.
func isRetryableAnthropicError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"rate_limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func wrapAnthropicError(err error, model string) error {
	return fmt.Errorf("anthropic provider (%s): %w", model, err)
}

func backoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << attempt
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
