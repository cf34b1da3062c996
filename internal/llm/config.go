// Package llm provides centralized LLM configuration and client abstractions.
// Clients take role-tagged message lists and either return the complete text
// or stream it fragment by fragment.
package llm

import "maps"

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	TierLite     ModelTier = "lite"
	TierStandard ModelTier = "standard"
	// TierAdvanced writes reports.
	TierAdvanced ModelTier = "advanced"
)

// fallbackOrder is consulted when a tier has no model of its own.
var fallbackOrder = []ModelTier{TierStandard, TierLite}

// Provider names a generation backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	// ProviderOpenRouter is any OpenAI-compatible chat completions endpoint,
	// OpenRouter by default.
	ProviderOpenRouter Provider = "openrouter"
)

// DefaultOpenRouterBaseURL is the OpenRouter API root.
const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// defaultOpenRouterModel is a free-tier model with a long context window.
const defaultOpenRouterModel = "meta-llama/llama-3.3-70b-instruct:free"

// Config selects a provider and the model used for each tier. The zero
// Temperature gives deterministic reports.
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	BaseURL     string // OpenAI-compatible providers only
	Temperature float32
}

// DefaultConfig returns the OpenRouter configuration.
func DefaultConfig() *Config {
	return DefaultOpenRouterConfig()
}

// DefaultOpenRouterConfig serves every tier from one model.
func DefaultOpenRouterConfig() *Config {
	return &Config{
		Provider: ProviderOpenRouter,
		Models:   uniform(defaultOpenRouterModel),
		BaseURL:  DefaultOpenRouterBaseURL,
	}
}

// DefaultGeminiConfig maps tiers onto the Gemini 2.5 family.
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

func uniform(model string) map[ModelTier]string {
	return map[ModelTier]string{TierLite: model, TierStandard: model, TierAdvanced: model}
}

// GetModel returns the model for tier, falling back through fallbackOrder.
// It returns "" when nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	if m := c.Models[tier]; m != "" {
		return m
	}
	for _, t := range fallbackOrder {
		if m := c.Models[t]; m != "" {
			return m
		}
	}
	return ""
}

// WithModel returns a copy of c that uses model for tier.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	n := *c
	n.Models = maps.Clone(c.Models)
	if n.Models == nil {
		n.Models = make(map[ModelTier]string)
	}
	n.Models[tier] = model
	return &n
}
