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

const anthropicDefaultBaseURL = "https://api.anthropic.com/v1"

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAnthropicProvider creates an Anthropic provider client.
func NewAnthropicProvider(baseURL, apiKey string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider tag.
func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Call sends one Messages request and normalizes the response to text.
func (p *AnthropicProvider) Call(ctx context.Context, model, prompt string, params GenerateParams) (string, error) {
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		// max_tokens is required by the Messages API.
		maxTokens = 1024
	}
	body, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", NewProviderError("anthropic", model, KindUnexpected, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", NewProviderError("anthropic", model, KindUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", NewProviderError("anthropic", model, classifyTransportError(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", NewProviderError("anthropic", model, KindTransientAPI, fmt.Errorf("read response: %w", err))
	}

	if kind, ok := classifyHTTPStatus(resp.StatusCode); ok {
		return "", NewProviderError("anthropic", model, kind,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(data)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewProviderError("anthropic", model, KindResponseMalformed, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return "", NewProviderError("anthropic", model, KindUnexpected,
			fmt.Errorf("provider error %s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	if parsed.StopReason == "refusal" {
		return "", NewProviderError("anthropic", model, KindContentBlocked, fmt.Errorf("model refused the request"))
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", NewProviderError("anthropic", model, KindResponseMalformed, fmt.Errorf("empty message content"))
	}
	return text, nil
}
