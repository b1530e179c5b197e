package provider

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/meao/internal/orchestrator"
)

func TestConvertOpenAIMessagesRendersToolResultsAsToolRole(t *testing.T) {
	msgs := []orchestrator.Message{
		{Role: "user", Blocks: []orchestrator.Block{{Kind: orchestrator.BlockText, Text: "hi"}}},
		{Role: "assistant", Blocks: []orchestrator.Block{
			{Kind: orchestrator.BlockToolUse, ToolUseID: "1", ToolName: "echo", ToolInput: []byte(`{"x":1}`)},
		}},
		{Role: "user", Blocks: []orchestrator.Block{
			{Kind: orchestrator.BlockToolResult, ToolResultID: "1", Success: true, Output: "done"},
		}},
	}
	out := convertOpenAIMessages(msgs)
	if len(out) != 3 {
		t.Fatalf("expected 3 converted messages, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleUser || out[0].Content != "hi" {
		t.Errorf("unexpected first message: %+v", out[0])
	}
	if len(out[1].ToolCalls) != 1 || out[1].ToolCalls[0].Function.Name != "echo" {
		t.Errorf("expected tool call on assistant message: %+v", out[1])
	}
	if out[2].Role != openai.ChatMessageRoleTool || out[2].ToolCallID != "1" || out[2].Content != "done" {
		t.Errorf("unexpected tool result message: %+v", out[2])
	}
}

func TestConvertOpenAIToolsFallsBackToEmptySchemaOnInvalidJSON(t *testing.T) {
	defs := []orchestrator.ToolDefinition{{Name: "bad", Schema: json.RawMessage(`not json`)}}
	out := convertOpenAITools(defs)
	if len(out) != 1 || out[0].Function.Name != "bad" {
		t.Fatalf("unexpected tools: %+v", out)
	}
	schema, ok := out[0].Function.Parameters.(map[string]any)
	if !ok || schema["type"] != "object" {
		t.Errorf("expected fallback object schema, got %+v", out[0].Function.Parameters)
	}
}

func TestOpenAIToCompletionResponseMapsToolCallsAndFinishReason(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					ID:       "1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "echo", Arguments: `{"x":1}`},
				}},
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 4},
	}
	out := openAIToCompletionResponse(resp)
	if out.StopReason != orchestrator.StopToolUse {
		t.Errorf("expected StopToolUse, got %v", out.StopReason)
	}
	if len(out.Blocks) != 1 || out.Blocks[0].ToolName != "echo" {
		t.Errorf("expected one tool_use block, got %+v", out.Blocks)
	}
	if out.Usage.InputTokens != 12 || out.Usage.OutputTokens != 4 {
		t.Errorf("unexpected usage: %+v", out.Usage)
	}
}

func TestIsRetryableOpenAIError(t *testing.T) {
	cases := map[string]bool{
		"rate limit exceeded":       true,
		"429 too many requests":     true,
		"500 internal server error": true,
		"request timeout":           true,
		"invalid api key":           false,
	}
	for msg, want := range cases {
		if got := isRetryableOpenAIError(errors.New(msg)); got != want {
			t.Errorf("isRetryableOpenAIError(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestIsRetryableAnthropicError(t *testing.T) {
	cases := map[string]bool{
		"rate_limit_error":       true,
		"503 service unavailable": true,
		"connection reset by peer": true,
		"invalid_request_error":   false,
	}
	for msg, want := range cases {
		if got := isRetryableAnthropicError(errors.New(msg)); got != want {
			t.Errorf("isRetryableAnthropicError(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestAnthropicStopReason(t *testing.T) {
	cases := map[string]orchestrator.StopReason{
		"tool_use":      orchestrator.StopToolUse,
		"max_tokens":    orchestrator.StopMaxTokens,
		"end_turn":      orchestrator.StopEndTurn,
		"stop_sequence": orchestrator.StopEndTurn,
	}
	for in, want := range cases {
		if got := anthropicStopReason(in); got != want {
			t.Errorf("anthropicStopReason(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestToAnyDefaultsToEmptyObjectOnInvalidInput(t *testing.T) {
	got := toAny([]byte(`not json`))
	m, ok := got.(map[string]any)
	if !ok || len(m) != 0 {
		t.Errorf("expected empty object fallback, got %+v", got)
	}
}
