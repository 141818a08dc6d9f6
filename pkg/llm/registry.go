package llm

import (
	"strings"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// modelRegistry is the static {provider → models} catalog used for provider
// inference and auto-discovery. Immutable after init; discovered entries are
// appended to the preference list, never inserted here.
var modelRegistry = map[config.ProviderType][]string{
	config.ProviderTypeOpenAI:    {"gpt-4o", "gpt-4o-mini", "gpt-4.1"},
	config.ProviderTypeDeepSeek:  {"deepseek-chat", "deepseek-reasoner"},
	config.ProviderTypeGrok:      {"grok-3", "grok-3-mini"},
	config.ProviderTypeGemini:    {"gemini-2.0-flash", "gemini-1.5-pro", "gemma-3-27b-it"},
	config.ProviderTypeMistral:   {"mistral-large-latest", "open-mixtral-8x22b", "codestral-latest"},
	config.ProviderTypeAnthropic: {"claude-sonnet-4-20250514", "claude-3-5-haiku-20241022"},
}

// registryOrder fixes iteration order for deterministic auto-discovery.
var registryOrder = []config.ProviderType{
	config.ProviderTypeOpenAI,
	config.ProviderTypeDeepSeek,
	config.ProviderTypeGrok,
	config.ProviderTypeGemini,
	config.ProviderTypeMistral,
	config.ProviderTypeAnthropic,
}

// prefixRules maps model-name prefixes to providers.
var prefixRules = []struct {
	prefix   string
	provider config.ProviderType
}{
	{"gpt-", config.ProviderTypeOpenAI},
	{"deepseek-", config.ProviderTypeDeepSeek},
	{"grok-", config.ProviderTypeGrok},
	{"gemini-", config.ProviderTypeGemini},
	{"gemma-", config.ProviderTypeGemini},
	{"mistral-", config.ProviderTypeMistral},
	{"open-mixtral-", config.ProviderTypeMistral},
	{"codestral-", config.ProviderTypeMistral},
	{"claude-", config.ProviderTypeAnthropic},
}

// InferProvider resolves the provider for a bare model name: prefix match
// first, then registry lookup. ok is false when neither matched and the
// caller should default to openai with a warning.
func InferProvider(model string) (config.ProviderType, bool) {
	lower := strings.ToLower(model)
	for _, r := range prefixRules {
		if strings.HasPrefix(lower, r.prefix) {
			return r.provider, true
		}
	}
	for _, provider := range registryOrder {
		for _, m := range modelRegistry[provider] {
			if m == model {
				return provider, true
			}
		}
	}
	return config.ProviderTypeOpenAI, false
}

// RegistryModels returns the static registry models for a provider.
func RegistryModels(provider config.ProviderType) []string {
	models := modelRegistry[provider]
	out := make([]string, len(models))
	copy(out, models)
	return out
}
