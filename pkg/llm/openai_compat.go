package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default chat-completions endpoints for OpenAI-compatible providers.
var openAICompatBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"grok":     "https://api.x.ai/v1",
	"mistral":  "https://api.mistral.ai/v1",
}

// OpenAICompatProvider talks to any provider exposing the OpenAI
// chat-completions wire format (OpenAI, DeepSeek, Grok, Mistral).
type OpenAICompatProvider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompatProvider creates a chat-completions provider client.
// baseURL falls back to the provider's default endpoint when empty.
func NewOpenAICompatProvider(name, baseURL, apiKey string) *OpenAICompatProvider {
	if baseURL == "" {
		baseURL = openAICompatBaseURLs[name]
	}
	return &OpenAICompatProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider tag.
func (p *OpenAICompatProvider) Name() string { return p.name }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Call sends one chat-completion request and normalizes the response to text.
func (p *OpenAICompatProvider) Call(ctx context.Context, model, prompt string, params GenerateParams) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	if err != nil {
		return "", NewProviderError(p.name, model, KindUnexpected, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", NewProviderError(p.name, model, KindUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", NewProviderError(p.name, model, classifyTransportError(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", NewProviderError(p.name, model, KindTransientAPI, fmt.Errorf("read response: %w", err))
	}

	if kind, ok := classifyHTTPStatus(resp.StatusCode); ok {
		return "", NewProviderError(p.name, model, kind,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(data)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewProviderError(p.name, model, KindResponseMalformed, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return "", NewProviderError(p.name, model, KindUnexpected,
			fmt.Errorf("provider error %v: %s", parsed.Error.Code, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", NewProviderError(p.name, model, KindResponseMalformed, fmt.Errorf("response has no choices"))
	}

	choice := parsed.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", NewProviderError(p.name, model, KindContentBlocked, fmt.Errorf("content filtered"))
	}
	if choice.Message.Content == "" {
		return "", NewProviderError(p.name, model, KindResponseMalformed, fmt.Errorf("empty completion text"))
	}

	return choice.Message.Content, nil
}

// classifyHTTPStatus maps non-2xx statuses onto the error taxonomy.
func classifyHTTPStatus(status int) (ErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthFailed, true
	case status >= 500:
		return KindTransientAPI, true
	default:
		return KindUnexpected, true
	}
}

func truncateBody(data []byte) string {
	const max = 300
	s := string(data)
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
