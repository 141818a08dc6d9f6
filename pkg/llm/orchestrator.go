package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// FallbackEvent describes one fallback transition between candidates.
type FallbackEvent struct {
	FailedProvider string
	FailedModel    string
	NextProvider   string
	NextModel      string
	RetriesUsed    int
	ErrorMessage   string
}

// Notifier receives fallback events from the orchestrator (fire-and-forget).
type Notifier interface {
	NotifyProviderFallback(ctx context.Context, event FallbackEvent)
}

// OrchestratorOptions configures orchestrator construction.
type OrchestratorOptions struct {
	// PrimaryModel is required: "provider:model" or bare "model".
	PrimaryModel string

	// FallbackModels are tried in order after the primary.
	FallbackModels []string

	// EnableAutoDiscovery appends static-registry models after explicit entries.
	EnableAutoDiscovery bool

	// EnableFallbackNotifications emits an event on every fallback transition.
	EnableFallbackNotifications bool

	// RequestTimeout is the per-call deadline (default 60s).
	RequestTimeout time.Duration

	// Providers resolves per-provider configuration (api_key_env, base_url).
	// May be nil; conventional credentials and default endpoints are used.
	Providers *config.LLMProviderRegistry

	// Notifier receives fallback events. May be nil.
	Notifier Notifier
}

// Orchestrator routes generation requests across a ranked list of provider
// models with per-provider retry and ordered fallback. Safe for concurrent
// use: all maps are immutable after construction.
type Orchestrator struct {
	modelPreference []*ProviderInstance
	providers       map[string]*ProviderInstance
	requestTimeout  time.Duration
	notifyFallback  bool
	notifier        Notifier
	logger          *slog.Logger
}

// NewOrchestrator builds the model preference list. Candidates whose provider
// is unknown or whose credential is absent are skipped with a warning; if no
// usable candidate remains, construction fails.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.PrimaryModel == "" {
		return nil, fmt.Errorf("primary model is required")
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	o := &Orchestrator{
		providers:      make(map[string]*ProviderInstance),
		requestTimeout: opts.RequestTimeout,
		notifyFallback: opts.EnableFallbackNotifications,
		notifier:       opts.Notifier,
		logger:         slog.Default().With("component", "llm-orchestrator"),
	}

	// Shared clients per provider tag; instances differ only by model.
	clients := make(map[config.ProviderType]Provider)
	initialized := make(map[string]bool)

	candidates := append([]string{opts.PrimaryModel}, opts.FallbackModels...)
	for _, candidate := range candidates {
		o.register(candidate, opts.Providers, clients, initialized)
	}

	if opts.EnableAutoDiscovery {
		for _, provider := range registryOrder {
			for _, model := range modelRegistry[provider] {
				o.register(string(provider)+":"+model, opts.Providers, clients, initialized)
			}
		}
	}

	if len(o.modelPreference) == 0 {
		return nil, fmt.Errorf("no usable provider models in preference list")
	}

	keys := make([]string, len(o.modelPreference))
	for i, inst := range o.modelPreference {
		keys[i] = inst.Key()
	}
	o.logger.Info("Orchestrator initialized", "model_preference", strings.Join(keys, ", "))

	return o, nil
}

// register parses and registers one candidate, skipping with a warning on
// unknown provider, missing client support, or absent credential.
// Registration is idempotent per "provider:model" key.
func (o *Orchestrator) register(candidate string, registry *config.LLMProviderRegistry, clients map[config.ProviderType]Provider, initialized map[string]bool) {
	provider, model := splitCandidate(candidate)
	if model == "" {
		o.logger.Warn("Skipping empty model candidate", "candidate", candidate)
		return
	}

	var providerType config.ProviderType
	if provider != "" {
		providerType = config.ProviderType(provider)
		if !providerType.IsValid() {
			o.logger.Warn("Skipping model with unknown provider", "candidate", candidate, "provider", provider)
			return
		}
	} else {
		inferred, ok := InferProvider(model)
		if !ok {
			o.logger.Warn("Could not infer provider, defaulting to openai", "model", model)
		}
		providerType = inferred
	}

	key := string(providerType) + ":" + model
	if initialized[key] {
		return
	}
	initialized[key] = true

	var providerCfg *config.LLMProviderConfig
	if registry != nil {
		if cfg, err := registry.Get(string(providerType)); err == nil {
			providerCfg = cfg
		}
	}

	client, ok := clients[providerType]
	if !ok {
		apiKey, err := lookupCredential(string(providerType), providerCfg)
		if err != nil {
			o.logger.Warn("Skipping provider without credential", "provider", string(providerType), "error", err)
			return
		}

		var baseURL string
		if providerCfg != nil {
			baseURL = providerCfg.BaseURL
		}

		client, err = newProviderClient(providerType, baseURL, apiKey)
		if err != nil {
			o.logger.Warn("Skipping provider without client support", "provider", string(providerType), "error", err)
			return
		}
		clients[providerType] = client
	}

	inst := &ProviderInstance{
		ProviderTag: string(providerType),
		ModelName:   model,
		Client:      client,
	}
	o.providers[key] = inst
	o.modelPreference = append(o.modelPreference, inst)
}

// newProviderClient constructs the concrete client for a provider tag.
func newProviderClient(provider config.ProviderType, baseURL, apiKey string) (Provider, error) {
	switch provider {
	case config.ProviderTypeOpenAI, config.ProviderTypeDeepSeek, config.ProviderTypeGrok, config.ProviderTypeMistral:
		return NewOpenAICompatProvider(string(provider), baseURL, apiKey), nil
	case config.ProviderTypeGemini:
		return NewGeminiProvider(baseURL, apiKey), nil
	case config.ProviderTypeAnthropic:
		return NewAnthropicProvider(baseURL, apiKey), nil
	default:
		return nil, NewProviderError(string(provider), "", KindLibraryMissing,
			fmt.Errorf("no client implementation for provider %s", provider))
	}
}

// splitCandidate parses "provider:model" or bare "model".
func splitCandidate(candidate string) (provider, model string) {
	candidate = strings.TrimSpace(candidate)
	if idx := strings.IndexByte(candidate, ':'); idx >= 0 {
		return strings.ToLower(strings.TrimSpace(candidate[:idx])), strings.TrimSpace(candidate[idx+1:])
	}
	return "", candidate
}

// ModelPreference returns the ordered "provider:model" keys.
func (o *Orchestrator) ModelPreference() []string {
	keys := make([]string, len(o.modelPreference))
	for i, inst := range o.modelPreference {
		keys[i] = inst.Key()
	}
	return keys
}

// Generate routes one prompt through the model preference list. Each
// candidate gets the full per-provider retry budget; when all candidates
// fail, an *AllProvidersFailed carrying the last error is returned.
func (o *Orchestrator) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	var lastErr error
	for i, inst := range o.modelPreference {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, o.requestTimeout)
		text, attempts, err := callWithRetry(callCtx, inst, prompt, params)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err

		o.logger.Warn("Provider exhausted, falling back",
			"provider", inst.ProviderTag,
			"model", inst.ModelName,
			"kind", string(KindOf(err)),
			"attempts", attempts,
			"error", err)

		if i+1 < len(o.modelPreference) {
			o.emitFallback(ctx, inst, o.modelPreference[i+1], err, attempts)
		}
	}

	return "", &AllProvidersFailed{Attempted: len(o.modelPreference), LastErr: lastErr}
}

// emitFallback publishes one fallback transition event when enabled.
func (o *Orchestrator) emitFallback(ctx context.Context, failed, next *ProviderInstance, err error, attempts int) {
	if !o.notifyFallback || o.notifier == nil {
		return
	}

	o.notifier.NotifyProviderFallback(ctx, FallbackEvent{
		FailedProvider: failed.ProviderTag,
		FailedModel:    failed.ModelName,
		NextProvider:   next.ProviderTag,
		NextModel:      next.ModelName,
		RetriesUsed:    attempts,
		ErrorMessage:   err.Error(),
	})
}

// IsAllProvidersFailed reports whether err is an exhausted-preference error.
func IsAllProvidersFailed(err error) bool {
	var apf *AllProvidersFailed
	return errors.As(err, &apf)
}
