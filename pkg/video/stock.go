package video

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultPexelsBaseURL  = "https://api.pexels.com/videos"
	defaultPixabayBaseURL = "https://pixabay.com/api/videos/"
)

// PexelsSource searches the Pexels stock-video API.
type PexelsSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPexelsSource creates a Pexels source. baseURL falls back to the public
// API endpoint when empty.
func NewPexelsSource(baseURL, apiKey string) *PexelsSource {
	if baseURL == "" {
		baseURL = defaultPexelsBaseURL
	}
	return &PexelsSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Source.
func (s *PexelsSource) Name() string { return "pexels" }

type pexelsSearchResponse struct {
	Videos []struct {
		ID         int    `json:"id"`
		Duration   int    `json:"duration"`
		PageURL    string `json:"url"`
		VideoFiles []struct {
			Link string `json:"link"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search implements Source.
func (s *PexelsSource) Search(ctx context.Context, query string, limit int) ([]Clip, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s&per_page=%d", s.baseURL, url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pexels request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)

	var parsed pexelsSearchResponse
	if err := fetchJSON(s.client, req, "pexels", &parsed); err != nil {
		return nil, err
	}

	clips := make([]Clip, 0, len(parsed.Videos))
	for _, v := range parsed.Videos {
		clipURL := v.PageURL
		if len(v.VideoFiles) > 0 {
			clipURL = v.VideoFiles[0].Link
		}
		if clipURL == "" {
			continue
		}
		clips = append(clips, Clip{
			ID:         strconv.Itoa(v.ID),
			SourceName: s.Name(),
			URL:        clipURL,
			DurationS:  v.Duration,
			Query:      query,
		})
	}
	return clips, nil
}

// PixabaySource searches the Pixabay stock-video API.
type PixabaySource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPixabaySource creates a Pixabay source. baseURL falls back to the public
// API endpoint when empty.
func NewPixabaySource(baseURL, apiKey string) *PixabaySource {
	if baseURL == "" {
		baseURL = defaultPixabayBaseURL
	}
	return &PixabaySource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Name implements Source.
func (s *PixabaySource) Name() string { return "pixabay" }

type pixabaySearchResponse struct {
	Hits []struct {
		ID       int    `json:"id"`
		Duration int    `json:"duration"`
		PageURL  string `json:"pageURL"`
		Videos   struct {
			Medium struct {
				URL string `json:"url"`
			} `json:"medium"`
		} `json:"videos"`
	} `json:"hits"`
}

// Search implements Source.
func (s *PixabaySource) Search(ctx context.Context, query string, limit int) ([]Clip, error) {
	endpoint := fmt.Sprintf("%s?key=%s&q=%s&per_page=%d",
		s.baseURL, url.QueryEscape(s.apiKey), url.QueryEscape(query), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build pixabay request: %w", err)
	}

	var parsed pixabaySearchResponse
	if err := fetchJSON(s.client, req, "pixabay", &parsed); err != nil {
		return nil, err
	}

	clips := make([]Clip, 0, len(parsed.Hits))
	for _, h := range parsed.Hits {
		clipURL := h.Videos.Medium.URL
		if clipURL == "" {
			clipURL = h.PageURL
		}
		if clipURL == "" {
			continue
		}
		clips = append(clips, Clip{
			ID:         strconv.Itoa(h.ID),
			SourceName: s.Name(),
			URL:        clipURL,
			DurationS:  h.Duration,
			Query:      query,
		})
	}
	return clips, nil
}

// fetchJSON executes one search request and decodes the body. Non-2xx
// statuses and malformed bodies are errors; the selector tolerates per-source
// errors, so a broken source only removes itself from the candidate pool.
func fetchJSON(client *http.Client, req *http.Request, source string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s search failed: %w", source, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d: %s", source, resp.StatusCode, truncateSnippet(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed %s response: %w", source, err)
	}
	return nil
}

func truncateSnippet(data []byte) string {
	const max = 200
	s := string(data)
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
