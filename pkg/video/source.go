// Package video selects stock video clips for releases, ranking clip sources
// by the measured performance of past selections.
package video

import "context"

// Clip is one candidate stock clip.
type Clip struct {
	ID         string `json:"id"`
	SourceName string `json:"source_name"`
	URL        string `json:"url"`
	DurationS  int    `json:"duration_s,omitempty"`
	Query      string `json:"query,omitempty"`
}

// Source is one searchable stock-clip provider.
type Source interface {
	// Name returns the stable source identifier used for ranking.
	Name() string

	// Search returns up to limit clips for a query.
	Search(ctx context.Context, query string, limit int) ([]Clip, error)
}
