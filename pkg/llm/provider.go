package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// GenerateParams are per-call generation parameters.
type GenerateParams struct {
	MaxTokens   int
	Temperature float64
}

// Provider is a single remote text-generation service. Implementations must
// normalize vendor responses to plain text and classify vendor errors into
// the ErrorKind taxonomy via ProviderError.
type Provider interface {
	// Name returns the provider tag (openai, gemini, ...).
	Name() string

	// Call sends one generation request for the given model.
	Call(ctx context.Context, model, prompt string, params GenerateParams) (string, error)
}

// ProviderInstance binds a provider client to one concrete model.
// Lifetime is the process; the underlying HTTP client is shared across calls.
type ProviderInstance struct {
	ProviderTag string
	ModelName   string
	Client      Provider
}

// Key returns the canonical "provider:model" registration key.
func (p *ProviderInstance) Key() string {
	return p.ProviderTag + ":" + p.ModelName
}

// CredentialEnvKey returns the conventional environment variable name
// holding the API key for a provider tag, e.g. OPENAI_API_KEY.
func CredentialEnvKey(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}

// lookupCredential resolves the API key for a provider, preferring an
// explicit api_key_env from configuration over the conventional name.
// Missing credentials disable the provider, they never abort startup.
func lookupCredential(provider string, cfg *config.LLMProviderConfig) (string, error) {
	envKey := CredentialEnvKey(provider)
	if cfg != nil && cfg.APIKeyEnv != "" {
		envKey = cfg.APIKeyEnv
	}
	key := os.Getenv(envKey)
	if key == "" {
		return "", fmt.Errorf("credential %s not set", envKey)
	}
	return key, nil
}
