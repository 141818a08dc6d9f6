package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

func TestInferProvider(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		expected config.ProviderType
		matched  bool
	}{
		{
			name:     "gpt prefix maps to openai",
			model:    "gpt-4o",
			expected: config.ProviderTypeOpenAI,
			matched:  true,
		},
		{
			name:     "deepseek prefix",
			model:    "deepseek-chat",
			expected: config.ProviderTypeDeepSeek,
			matched:  true,
		},
		{
			name:     "grok prefix",
			model:    "grok-3-mini",
			expected: config.ProviderTypeGrok,
			matched:  true,
		},
		{
			name:     "gemini prefix",
			model:    "gemini-2.0-flash",
			expected: config.ProviderTypeGemini,
			matched:  true,
		},
		{
			name:     "gemma prefix maps to gemini",
			model:    "gemma-3-27b-it",
			expected: config.ProviderTypeGemini,
			matched:  true,
		},
		{
			name:     "mistral prefix",
			model:    "mistral-large-latest",
			expected: config.ProviderTypeMistral,
			matched:  true,
		},
		{
			name:     "open-mixtral prefix maps to mistral",
			model:    "open-mixtral-8x22b",
			expected: config.ProviderTypeMistral,
			matched:  true,
		},
		{
			name:     "codestral prefix maps to mistral",
			model:    "codestral-latest",
			expected: config.ProviderTypeMistral,
			matched:  true,
		},
		{
			name:     "claude prefix maps to anthropic",
			model:    "claude-sonnet-4-20250514",
			expected: config.ProviderTypeAnthropic,
			matched:  true,
		},
		{
			name:     "prefix match is case insensitive",
			model:    "GPT-4o-mini",
			expected: config.ProviderTypeOpenAI,
			matched:  true,
		},
		{
			name:     "unknown model defaults to openai unmatched",
			model:    "llama-70b",
			expected: config.ProviderTypeOpenAI,
			matched:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, ok := InferProvider(tt.model)
			assert.Equal(t, tt.expected, provider)
			assert.Equal(t, tt.matched, ok)
		})
	}
}

func TestSplitCandidate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		provider string
		model    string
	}{
		{name: "qualified", input: "anthropic:claude-3-5-haiku-20241022", provider: "anthropic", model: "claude-3-5-haiku-20241022"},
		{name: "bare model", input: "gpt-4o", provider: "", model: "gpt-4o"},
		{name: "whitespace trimmed", input: "  openai : gpt-4o-mini", provider: "openai", model: "gpt-4o-mini"},
		{name: "provider lowercased", input: "OpenAI:gpt-4o", provider: "openai", model: "gpt-4o"},
		{name: "empty", input: "", provider: "", model: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, model := splitCandidate(tt.input)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.model, model)
		})
	}
}

func TestRegistryModels(t *testing.T) {
	models := RegistryModels(config.ProviderTypeOpenAI)
	assert.NotEmpty(t, models)

	// Returned slice is a copy: mutating it must not touch the catalog.
	models[0] = "mutated"
	assert.NotEqual(t, "mutated", RegistryModels(config.ProviderTypeOpenAI)[0])
}

func TestCredentialEnvKey(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", CredentialEnvKey("openai"))
	assert.Equal(t, "DEEPSEEK_API_KEY", CredentialEnvKey("deepseek"))
}
