package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider scripts a sequence of responses; once the script is exhausted
// the last entry repeats.
type stubProvider struct {
	name string

	mu      sync.Mutex
	script  []stubResult
	calls   int
	prompts []string
}

type stubResult struct {
	text string
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Call(_ context.Context, _ string, prompt string, _ GenerateParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	s.prompts = append(s.prompts, prompt)
	r := s.script[idx]
	return r.text, r.err
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func rateLimited(provider, model string) error {
	return NewProviderError(provider, model, KindRateLimited, errors.New("HTTP 429"))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name     string
		kind     ErrorKind
		attempt  int
		expected bool
	}{
		{name: "rate limited first attempt", kind: KindRateLimited, attempt: 1, expected: true},
		{name: "rate limited second attempt", kind: KindRateLimited, attempt: 2, expected: true},
		{name: "transient API", kind: KindTransientAPI, attempt: 2, expected: true},
		{name: "unexpected first attempt", kind: KindUnexpected, attempt: 1, expected: true},
		{name: "unexpected second attempt", kind: KindUnexpected, attempt: 2, expected: false},
		{name: "content blocked", kind: KindContentBlocked, attempt: 1, expected: false},
		{name: "auth failed", kind: KindAuthFailed, attempt: 1, expected: false},
		{name: "library missing", kind: KindLibraryMissing, attempt: 1, expected: false},
		{name: "malformed response", kind: KindResponseMalformed, attempt: 1, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, retryable(tt.kind, tt.attempt))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRateLimited, KindOf(rateLimited("openai", "gpt-4o")))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("plain error")))

	wrapped := errors.Join(errors.New("outer"), NewProviderError("gemini", "gemini-2.0-flash", KindContentBlocked, errors.New("blocked")))
	assert.Equal(t, KindContentBlocked, KindOf(wrapped))
}

func TestCallWithRetry(t *testing.T) {
	tests := []struct {
		name          string
		script        []stubResult
		expectedText  string
		expectedCalls int
		expectedKind  ErrorKind
	}{
		{
			name:          "success on first attempt",
			script:        []stubResult{{text: "ok"}},
			expectedText:  "ok",
			expectedCalls: 1,
		},
		{
			name: "transient failures then success",
			script: []stubResult{
				{err: NewProviderError("openai", "gpt-4o", KindTransientAPI, errors.New("HTTP 503"))},
				{text: "recovered"},
			},
			expectedText:  "recovered",
			expectedCalls: 2,
		},
		{
			name:          "rate limited exhausts the full budget",
			script:        []stubResult{{err: rateLimited("openai", "gpt-4o")}},
			expectedCalls: MaxAttempts,
			expectedKind:  KindRateLimited,
		},
		{
			name: "unexpected retried exactly once",
			script: []stubResult{
				{err: NewProviderError("openai", "gpt-4o", KindUnexpected, errors.New("boom"))},
			},
			expectedCalls: 2,
			expectedKind:  KindUnexpected,
		},
		{
			name: "content blocked breaks immediately",
			script: []stubResult{
				{err: NewProviderError("openai", "gpt-4o", KindContentBlocked, errors.New("filtered"))},
			},
			expectedCalls: 1,
			expectedKind:  KindContentBlocked,
		},
		{
			name: "auth failure breaks immediately",
			script: []stubResult{
				{err: NewProviderError("openai", "gpt-4o", KindAuthFailed, errors.New("HTTP 401"))},
			},
			expectedCalls: 1,
			expectedKind:  KindAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubProvider{name: "openai", script: tt.script}
			inst := &ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: stub}

			text, attempts, err := callWithRetry(context.Background(), inst, "write a hook", GenerateParams{})

			assert.Equal(t, tt.expectedCalls, stub.callCount())
			assert.Equal(t, tt.expectedCalls, attempts, "reported attempts must match calls made")
			if tt.expectedKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.expectedKind, KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedText, text)
			}
		})
	}
}

func TestCallWithRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubProvider{name: "openai", script: []stubResult{{err: rateLimited("openai", "gpt-4o")}}}
	inst := &ProviderInstance{ProviderTag: "openai", ModelName: "gpt-4o", Client: stub}

	_, attempts, err := callWithRetry(ctx, inst, "prompt", GenerateParams{})
	require.Error(t, err)
	// The first call runs, then the backoff sleep observes cancellation.
	assert.Equal(t, 1, stub.callCount())
	assert.Equal(t, 1, attempts)
}
