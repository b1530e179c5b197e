package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/meao/internal/orchestrator"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	MaxRetries   int
	RetryDelay   time.Duration
}

// OpenAIProvider implements orchestrator.Provider against the Chat
// Completions API, grounded on internal/agent/providers/openai.go's
// retry loop and message/tool conversion, narrowed to a single
// non-streaming call per turn.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	maxTokens  int
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIProvider constructs an OpenAIProvider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("provider: openai API key is required")
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openai.GPT4o
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

	config := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(config),
		model:      cfg.DefaultModel,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Complete implements orchestrator.Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req orchestrator.CompletionRequest) (orchestrator.CompletionResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  convertOpenAIMessages(req.Messages),
		MaxTokens: p.maxTokens,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertOpenAITools(req.Tools)
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := backoff(ctx, p.retryDelay, attempt-1); sleepErr != nil {
				return orchestrator.CompletionResponse{}, sleepErr
			}
		}
		resp, err = p.client.CreateChatCompletion(ctx, chatReq)
		if err == nil {
			break
		}
		if !isRetryableOpenAIError(err) {
			return orchestrator.CompletionResponse{}, fmt.Errorf("openai provider (%s): non-retryable: %w", p.model, err)
		}
	}
	if err != nil {
		return orchestrator.CompletionResponse{}, fmt.Errorf("openai provider (%s): max retries exceeded: %w", p.model, err)
	}
	if len(resp.Choices) == 0 {
		return orchestrator.CompletionResponse{}, fmt.Errorf("openai provider (%s): empty choices", p.model)
	}

	return openAIToCompletionResponse(resp), nil
}

func convertOpenAIMessages(msgs []orchestrator.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, m := range msgs {
		var toolResults []openai.ChatCompletionMessage
		var toolCalls []openai.ToolCall
		var text strings.Builder

		for _, b := range m.Blocks {
			switch b.Kind {
			case orchestrator.BlockText:
				text.WriteString(b.Text)
			case orchestrator.BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUseID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolName,
						Arguments: string(b.ToolInput),
					},
				})
			case orchestrator.BlockToolResult:
				toolResults = append(toolResults, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    b.Output,
					ToolCallID: b.ToolResultID,
				})
			case orchestrator.BlockError:
				text.WriteString(b.ErrorMessage)
			}
		}

		if len(toolResults) > 0 {
			out = append(out, toolResults...)
			continue
		}

		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		oaiMsg := openai.ChatCompletionMessage{Role: role, Content: text.String()}
		if len(toolCalls) > 0 {
			oaiMsg.ToolCalls = toolCalls
		}
		out = append(out, oaiMsg)
	}
	return out
}

func convertOpenAITools(defs []orchestrator.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		if err := json.Unmarshal(d.Schema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schema,
			},
		})
	}
	return out
}

func openAIToCompletionResponse(resp openai.ChatCompletionResponse) orchestrator.CompletionResponse {
	choice := resp.Choices[0]
	var blocks []orchestrator.Block
	if choice.Message.Content != "" {
		blocks = append(blocks, orchestrator.Block{Kind: orchestrator.BlockText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, orchestrator.Block{
			Kind:      orchestrator.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: []byte(tc.Function.Arguments),
		})
	}

	stop := orchestrator.StopEndTurn
	switch choice.FinishReason {
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		stop = orchestrator.StopToolUse
	case openai.FinishReasonLength:
		stop = orchestrator.StopMaxTokens
	}

	return orchestrator.CompletionResponse{
		Blocks: blocks,
		Usage: orchestrator.Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
		StopReason: stop,
	}
}

// isRetryableOpenAIError mirrors internal/agent/providers/openai.go's
// substring-based classification of rate limits, 5xx, and timeouts.
func isRetryableOpenAIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "429", "500", "502", "503", "504", "timeout", "deadline exceeded"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
