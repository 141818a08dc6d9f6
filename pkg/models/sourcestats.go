package models

import "time"

// ClipMetricRecord is one performance observation for a stock clip.
type ClipMetricRecord struct {
	ReleaseID    string    `json:"release_id"`
	Likes        int       `json:"likes"`
	RetentionPct float64   `json:"retention_pct"`
	WatchTimeSec float64   `json:"watch_time_sec"`
	Timestamp    time.Time `json:"timestamp"`
}

// ClipStats accumulates usage and performance for one stock clip.
// Invariant: UsageCount ≥ len(ReleaseIDs).
type ClipStats struct {
	UsageCount int                `json:"usage_count"`
	ReleaseIDs []string           `json:"release_ids"`
	Metrics    []ClipMetricRecord `json:"metrics"`
}

// SourceEntry holds per-clip stats and the derived score for one source.
type SourceEntry struct {
	Clips           map[string]*ClipStats `json:"clips"`
	AggregatedScore float64               `json:"aggregated_score"`
}

// SourceStats is the global stock-video ranking state, keyed by source name.
// Persisted as a single document, rewritten atomically on each update.
type SourceStats struct {
	Sources   map[string]*SourceEntry `json:"sources"`
	UpdatedAt time.Time               `json:"updated_at"`
}
