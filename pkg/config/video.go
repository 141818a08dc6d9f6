package config

import "time"

// VideoConfig contains stock-video selection configuration.
type VideoConfig struct {
	// ClipCount is the number of clips selected per release.
	ClipCount int `yaml:"clip_count"`

	// RecencyWindow bounds which performance records rank sources.
	RecencyWindow time.Duration `yaml:"recency_window"`

	// FallbackQueries are tried in order when no source returns candidates.
	FallbackQueries []string `yaml:"fallback_queries"`

	// SourceStatsPath is the single source-stats snapshot document.
	SourceStatsPath string `yaml:"source_stats_path"`

	// SearchTimeout is the per-source search deadline.
	SearchTimeout time.Duration `yaml:"search_timeout"`
}

// DefaultVideoConfig returns the built-in video selection defaults.
func DefaultVideoConfig() *VideoConfig {
	return &VideoConfig{
		ClipCount:       3,
		RecencyWindow:   30 * 24 * time.Hour,
		FallbackQueries: []string{"abstract background", "nature landscape", "city night", "ocean waves"},
		SourceStatsPath: "./data/source_stats.json",
		SearchTimeout:   15 * time.Second,
	}
}
