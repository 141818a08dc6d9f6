package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures fallback events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []FallbackEvent
}

func (n *recordingNotifier) NotifyProviderFallback(_ context.Context, event FallbackEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) recorded() []FallbackEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]FallbackEvent, len(n.events))
	copy(out, n.events)
	return out
}

// newStubOrchestrator wires stub providers directly into the preference list,
// bypassing credential resolution.
func newStubOrchestrator(notifier Notifier, notify bool, instances ...*ProviderInstance) *Orchestrator {
	o := &Orchestrator{
		providers:      make(map[string]*ProviderInstance),
		requestTimeout: 30 * time.Second,
		notifyFallback: notify,
		notifier:       notifier,
		logger:         testLogger(),
	}
	for _, inst := range instances {
		o.providers[inst.Key()] = inst
		o.modelPreference = append(o.modelPreference, inst)
	}
	return o
}

func TestOrchestratorGeneratePrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "openai", script: []stubResult{{text: "verse one"}}}
	fallback := &stubProvider{name: "anthropic", script: []stubResult{{text: "never used"}}}
	notifier := &recordingNotifier{}

	o := newStubOrchestrator(notifier, true,
		&ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: primary},
		&ProviderInstance{ProviderTag: "anthropic", ModelName: "claude-3-5-haiku-20241022", Client: fallback},
	)

	text, err := o.Generate(context.Background(), "write a verse", GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "verse one", text)

	// The fallback must stay cold and no event may be emitted.
	assert.Equal(t, 0, fallback.callCount())
	assert.Empty(t, notifier.recorded())
}

func TestOrchestratorGenerateFallsBackAfterRetryBudget(t *testing.T) {
	primary := &stubProvider{name: "openai", script: []stubResult{{err: rateLimited("openai", "gpt-4o")}}}
	fallback := &stubProvider{name: "anthropic", script: []stubResult{{text: "chorus"}}}
	notifier := &recordingNotifier{}

	o := newStubOrchestrator(notifier, true,
		&ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: primary},
		&ProviderInstance{ProviderTag: "anthropic", ModelName: "claude-3-5-haiku-20241022", Client: fallback},
	)

	text, err := o.Generate(context.Background(), "write a chorus", GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "chorus", text)

	// The primary burned its full retry budget before the handoff.
	assert.Equal(t, MaxAttempts, primary.callCount())
	assert.Equal(t, 1, fallback.callCount())

	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "openai", events[0].FailedProvider)
	assert.Equal(t, "gpt-4o", events[0].FailedModel)
	assert.Equal(t, "anthropic", events[0].NextProvider)
	assert.Equal(t, "claude-3-5-haiku-20241022", events[0].NextModel)
	assert.Equal(t, MaxAttempts, events[0].RetriesUsed)
	assert.Contains(t, events[0].ErrorMessage, "rate_limited")
}

func TestOrchestratorFallbackEventReportsActualAttempts(t *testing.T) {
	// Unexpected is retried once; the second attempt hits a content block and
	// breaks. The event must report the two attempts actually made.
	primary := &stubProvider{name: "openai", script: []stubResult{
		{err: NewProviderError("openai", "gpt-4o", KindUnexpected, errors.New("boom"))},
		{err: NewProviderError("openai", "gpt-4o", KindContentBlocked, errors.New("filtered"))},
	}}
	fallback := &stubProvider{name: "anthropic", script: []stubResult{{text: "ok"}}}
	notifier := &recordingNotifier{}

	o := newStubOrchestrator(notifier, true,
		&ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: primary},
		&ProviderInstance{ProviderTag: "anthropic", ModelName: "claude-3-5-haiku-20241022", Client: fallback},
	)

	text, err := o.Generate(context.Background(), "prompt", GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, primary.callCount())

	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].RetriesUsed)
}

func TestOrchestratorGenerateContentBlockedFallsBackWithoutRetry(t *testing.T) {
	primary := &stubProvider{name: "openai", script: []stubResult{
		{err: NewProviderError("openai", "gpt-4o", KindContentBlocked, errors.New("content filtered"))},
	}}
	fallback := &stubProvider{name: "mistral", script: []stubResult{{text: "bridge"}}}

	o := newStubOrchestrator(nil, false,
		&ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: primary},
		&ProviderInstance{ProviderTag: "mistral", ModelName: "mistral-large-latest", Client: fallback},
	)

	text, err := o.Generate(context.Background(), "write a bridge", GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "bridge", text)
	assert.Equal(t, 1, primary.callCount())
}

func TestOrchestratorGenerateAllProvidersFailed(t *testing.T) {
	first := &stubProvider{name: "openai", script: []stubResult{
		{err: NewProviderError("openai", "gpt-4o", KindAuthFailed, errors.New("HTTP 401"))},
	}}
	second := &stubProvider{name: "deepseek", script: []stubResult{
		{err: NewProviderError("deepseek", "deepseek-chat", KindContentBlocked, errors.New("refused"))},
	}}
	notifier := &recordingNotifier{}

	o := newStubOrchestrator(notifier, true,
		&ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: first},
		&ProviderInstance{ProviderTag: "deepseek", ModelName: "deepseek-chat", Client: second},
	)

	_, err := o.Generate(context.Background(), "prompt", GenerateParams{})
	require.Error(t, err)
	assert.True(t, IsAllProvidersFailed(err))

	var apf *AllProvidersFailed
	require.ErrorAs(t, err, &apf)
	assert.Equal(t, 2, apf.Attempted)
	assert.Equal(t, KindContentBlocked, KindOf(apf.LastErr))

	// One transition event between the two candidates; the final exhaustion
	// is reported through the error, not a notification.
	assert.Len(t, notifier.recorded(), 1)
}

func TestOrchestratorGenerateNotificationsDisabled(t *testing.T) {
	primary := &stubProvider{name: "openai", script: []stubResult{
		{err: NewProviderError("openai", "gpt-4o", KindAuthFailed, errors.New("HTTP 403"))},
	}}
	fallback := &stubProvider{name: "anthropic", script: []stubResult{{text: "ok"}}}
	notifier := &recordingNotifier{}

	o := newStubOrchestrator(notifier, false,
		&ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: primary},
		&ProviderInstance{ProviderTag: "anthropic", ModelName: "claude-3-5-haiku-20241022", Client: fallback},
	)

	_, err := o.Generate(context.Background(), "prompt", GenerateParams{})
	require.NoError(t, err)
	assert.Empty(t, notifier.recorded())
}

func TestNewOrchestrator(t *testing.T) {
	t.Run("requires a primary model", func(t *testing.T) {
		_, err := NewOrchestrator(OrchestratorOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "primary model")
	})

	t.Run("fails when no candidate is usable", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		_, err := NewOrchestrator(OrchestratorOptions{PrimaryModel: "gpt-4o"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no usable provider models")
	})

	t.Run("builds the preference in declared order", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key")
		t.Setenv("ANTHROPIC_API_KEY", "test-key")

		o, err := NewOrchestrator(OrchestratorOptions{
			PrimaryModel:   "gpt-4o",
			FallbackModels: []string{"anthropic:claude-3-5-haiku-20241022", "gpt-4o-mini"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"openai:gpt-4o",
			"anthropic:claude-3-5-haiku-20241022",
			"openai:gpt-4o-mini",
		}, o.ModelPreference())
	})

	t.Run("skips unknown providers and missing credentials", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key")
		t.Setenv("GEMINI_API_KEY", "")

		o, err := NewOrchestrator(OrchestratorOptions{
			PrimaryModel: "gpt-4o",
			// Unknown provider tag, absent credential, and a duplicate of
			// the primary: all must be dropped without failing construction.
			FallbackModels: []string{
				"acme:wonder-model",
				"gemini-2.0-flash",
				"openai:gpt-4o",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"openai:gpt-4o"}, o.ModelPreference())
	})

	t.Run("unmatched bare model defaults to openai", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key")

		o, err := NewOrchestrator(OrchestratorOptions{PrimaryModel: "llama-70b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"openai:llama-70b"}, o.ModelPreference())
	})

	t.Run("auto-discovery appends registry models after explicit entries", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "test-key")
		t.Setenv("DEEPSEEK_API_KEY", "")
		t.Setenv("GROK_API_KEY", "")
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("MISTRAL_API_KEY", "")
		t.Setenv("ANTHROPIC_API_KEY", "")

		o, err := NewOrchestrator(OrchestratorOptions{
			PrimaryModel:        "gpt-4o",
			EnableAutoDiscovery: true,
		})
		require.NoError(t, err)

		preference := o.ModelPreference()
		require.NotEmpty(t, preference)
		assert.Equal(t, "openai:gpt-4o", preference[0])
		// Remaining openai registry models follow, each exactly once.
		assert.Equal(t, []string{
			"openai:gpt-4o",
			"openai:gpt-4o-mini",
			"openai:gpt-4.1",
		}, preference)
	})
}
