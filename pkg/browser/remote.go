package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteDriver drives a browser-automation sidecar over HTTP. The sidecar
// owns the actual browser session (one session per driver); this process only
// issues actions and reads results, which keeps the single-writer rule per
// session trivially true.
type RemoteDriver struct {
	baseURL string
	client  *http.Client
}

// NewRemoteDriver creates a driver against a sidecar action endpoint.
func NewRemoteDriver(baseURL string, timeout time.Duration) *RemoteDriver {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteDriver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// remoteRequest is the sidecar's JSON action envelope.
type remoteRequest struct {
	Op         string `json:"op"`
	URL        string `json:"url,omitempty"`
	Selector   string `json:"selector,omitempty"`
	Text       string `json:"text,omitempty"`
	Value      string `json:"value,omitempty"`
	ClearFirst bool   `json:"clear_first,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// Navigate implements Driver.
func (d *RemoteDriver) Navigate(ctx context.Context, url string) (*ActionResult, error) {
	return d.do(ctx, remoteRequest{Op: "navigate", URL: url})
}

// Click implements Driver.
func (d *RemoteDriver) Click(ctx context.Context, selector string) (*ActionResult, error) {
	return d.do(ctx, remoteRequest{Op: "click", Selector: selector})
}

// InputText implements Driver.
func (d *RemoteDriver) InputText(ctx context.Context, selector, text string, clearFirst bool) (*ActionResult, error) {
	return d.do(ctx, remoteRequest{Op: "input_text", Selector: selector, Text: text, ClearFirst: clearFirst})
}

// SelectOption implements Driver.
func (d *RemoteDriver) SelectOption(ctx context.Context, selector, value string) (*ActionResult, error) {
	return d.do(ctx, remoteRequest{Op: "select_option", Selector: selector, Value: value})
}

// GetElementText implements Driver.
func (d *RemoteDriver) GetElementText(ctx context.Context, selector string) (*ActionResult, error) {
	return d.do(ctx, remoteRequest{Op: "get_element_text", Selector: selector})
}

// TakeScreenshot implements Driver.
func (d *RemoteDriver) TakeScreenshot(ctx context.Context, filename string) (*ActionResult, error) {
	return d.do(ctx, remoteRequest{Op: "take_screenshot", Filename: filename})
}

// do posts one action and decodes the result. Transport and protocol errors
// are returned as Go errors (the session is unusable); an action the sidecar
// executed but that failed in the page comes back as a failed ActionResult.
func (d *RemoteDriver) do(ctx context.Context, action remoteRequest) (*ActionResult, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to encode browser action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/actions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build browser request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser sidecar unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read browser response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browser sidecar returned %d for %s", resp.StatusCode, action.Op)
	}

	var result ActionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("malformed browser response for %s: %w", action.Op, err)
	}
	return &result, nil
}
