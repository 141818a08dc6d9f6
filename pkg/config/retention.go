package config

import "time"

// RetentionConfig controls cleanup of terminal run documents and stale
// step screenshots.
type RetentionConfig struct {
	// RunRetention is how long terminal run-status documents are kept.
	RunRetention time.Duration `yaml:"run_retention"`

	// ScreenshotTTL is how long step screenshots are kept.
	ScreenshotTTL time.Duration `yaml:"screenshot_ttl"`

	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		RunRetention:    30 * 24 * time.Hour,
		ScreenshotTTL:   7 * 24 * time.Hour,
		CleanupInterval: 6 * time.Hour,
	}
}
