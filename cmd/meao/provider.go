package main

import (
	"fmt"

	"github.com/haasonsaas/meao/internal/config"
	"github.com/haasonsaas/meao/internal/orchestrator"
	"github.com/haasonsaas/meao/internal/provider"
)

// buildProvider selects and constructs the configured LLM provider binding.
// name picks the entry in cfg.Providers; an empty name falls back to
// "anthropic" then "openai", whichever is configured, matching the
// teacher's LLMConfig.DefaultProvider fallback idea narrowed to meao's
// two-provider set.
func buildProvider(cfg *config.Config, name string) (orchestrator.Provider, error) {
	if name == "" {
		for _, candidate := range []string{"anthropic", "openai"} {
			if _, ok := cfg.Providers[candidate]; ok {
				name = candidate
				break
			}
		}
	}
	if name == "" {
		return nil, fmt.Errorf("no provider configured under providers:")
	}

	pcfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}

	switch name {
	case "anthropic":
		return provider.NewAnthropicProvider(provider.AnthropicConfig{
			APIKey:       pcfg.APIKey,
			BaseURL:      pcfg.BaseURL,
			DefaultModel: pcfg.DefaultModel,
			MaxRetries:   pcfg.MaxRetries,
		})
	case "openai":
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			APIKey:       pcfg.APIKey,
			BaseURL:      pcfg.BaseURL,
			DefaultModel: pcfg.DefaultModel,
			MaxRetries:   pcfg.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
