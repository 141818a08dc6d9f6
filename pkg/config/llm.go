package config

import (
	"fmt"
	"sync"
	"time"
)

// LLMProviderConfig defines LLM provider configuration
type LLMProviderConfig struct {
	// Provider type (required)
	Type ProviderType `yaml:"type"`

	// Model name (required)
	Model string `yaml:"model"`

	// Environment variable name for API key.
	// Defaults to "<PROVIDER>_API_KEY" when omitted.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Optional custom endpoint/base URL
	BaseURL string `yaml:"base_url,omitempty"`

	// Generation defaults; zero values fall back to caller-supplied params.
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

// LLMConfig holds orchestrator-level model preferences.
type LLMConfig struct {
	// PrimaryModel is the first candidate, "provider:model" or bare "model".
	PrimaryModel string `yaml:"primary_model"`

	// FallbackModels are tried in order after the primary.
	FallbackModels []string `yaml:"fallback_models,omitempty"`

	// EnableAutoDiscovery appends registry models after explicit entries.
	EnableAutoDiscovery bool `yaml:"enable_auto_discovery"`

	// EnableFallbackNotifications emits a notification on every fallback transition.
	EnableFallbackNotifications bool `yaml:"enable_fallback_notifications"`

	// RequestTimeout is the per-call deadline for a single provider request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultLLMConfig returns the built-in orchestrator defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		PrimaryModel:                "gpt-4o",
		EnableAutoDiscovery:         false,
		EnableFallbackNotifications: false,
		RequestTimeout:              60 * time.Second,
	}
}

// LLMProviderRegistry stores LLM provider configurations in memory with thread-safe access
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
	mu        sync.RWMutex
}

// NewLLMProviderRegistry creates a new LLM provider registry
func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig) *LLMProviderRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*LLMProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &LLMProviderRegistry{
		providers: copied,
	}
}

// Get retrieves an LLM provider configuration by name (thread-safe)
func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return provider, nil
}

// GetAll returns all LLM provider configurations (thread-safe, returns copy)
func (r *LLMProviderRegistry) GetAll() map[string]*LLMProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*LLMProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if an LLM provider exists in the registry (thread-safe)
func (r *LLMProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[name]
	return exists
}

// Len returns the number of LLM providers in the registry (thread-safe)
func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
