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

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider talks to the Google Gemini generateContent API.
type GeminiProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGeminiProvider creates a Gemini provider client.
func NewGeminiProvider(baseURL, apiKey string) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &GeminiProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider tag.
func (p *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   *geminiGenCfg   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenCfg struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Call sends one generateContent request and normalizes the response to text.
// Safety-blocked prompts and candidates classify as content_blocked, not success.
func (p *GeminiProvider) Call(ctx context.Context, model, prompt string, params GenerateParams) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if params.MaxTokens > 0 || params.Temperature > 0 {
		reqBody.Config = &geminiGenCfg{
			MaxOutputTokens: params.MaxTokens,
			Temperature:     params.Temperature,
		}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", NewProviderError("gemini", model, KindUnexpected, fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", NewProviderError("gemini", model, KindUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", NewProviderError("gemini", model, classifyTransportError(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", NewProviderError("gemini", model, KindTransientAPI, fmt.Errorf("read response: %w", err))
	}

	if kind, ok := classifyHTTPStatus(resp.StatusCode); ok {
		return "", NewProviderError("gemini", model, kind,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncateBody(data)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewProviderError("gemini", model, KindResponseMalformed, fmt.Errorf("decode response: %w", err))
	}

	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return "", NewProviderError("gemini", model, KindContentBlocked,
			fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason))
	}
	if len(parsed.Candidates) == 0 {
		return "", NewProviderError("gemini", model, KindResponseMalformed, fmt.Errorf("response has no candidates"))
	}

	cand := parsed.Candidates[0]
	if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" {
		return "", NewProviderError("gemini", model, KindContentBlocked,
			fmt.Errorf("candidate blocked: %s", cand.FinishReason))
	}

	var text string
	for _, part := range cand.Content.Parts {
		text += part.Text
	}
	if text == "" {
		return "", NewProviderError("gemini", model, KindResponseMalformed, fmt.Errorf("empty candidate text"))
	}
	return text, nil
}
