package models

import (
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// PerformanceMetric is one immutable per-release measurement.
type PerformanceMetric struct {
	ID          string            `json:"id" db:"id"`
	ReleaseID   string            `json:"release_id" db:"release_id"`
	Platform    string            `json:"platform" db:"platform"`
	MetricType  config.MetricType `json:"metric_type" db:"metric_type"`
	MetricValue int               `json:"metric_value" db:"metric_value"`
	RecordedAt  time.Time         `json:"recorded_at" db:"recorded_at"`
	SourceURL   string            `json:"source_url,omitempty" db:"source_url"`
	Notes       string            `json:"notes,omitempty" db:"notes"`
}

// RecordMetricRequest contains fields for recording a metric.
type RecordMetricRequest struct {
	ReleaseID   string            `json:"release_id"`
	Platform    string            `json:"platform"`
	MetricType  config.MetricType `json:"metric_type"`
	MetricValue int               `json:"metric_value"`
	RecordedAt  time.Time         `json:"recorded_at,omitempty"`
	SourceURL   string            `json:"source_url,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}
