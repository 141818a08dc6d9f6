package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/database"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// MetricService stores immutable per-release performance measurements.
// Records are never updated or deleted; corrections are recorded as new
// measurements with a later recorded_at.
type MetricService struct {
	client *database.Client
}

// NewMetricService creates a new MetricService
func NewMetricService(client *database.Client) *MetricService {
	return &MetricService{client: client}
}

// RecordMetric validates and appends one measurement. Unknown metric types
// are stored as-is; the scoring pass decides what to do with them.
func (s *MetricService) RecordMetric(ctx context.Context, req models.RecordMetricRequest) (*models.PerformanceMetric, error) {
	if strings.TrimSpace(req.ReleaseID) == "" {
		return nil, NewValidationError("release_id", "must not be empty")
	}
	if strings.TrimSpace(req.Platform) == "" {
		return nil, NewValidationError("platform", "must not be empty")
	}
	if req.MetricType == "" {
		return nil, NewValidationError("metric_type", "must not be empty")
	}
	if req.MetricValue < 0 {
		return nil, NewValidationError("metric_value", "must not be negative")
	}

	recordedAt := req.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	metric := &models.PerformanceMetric{
		ID:          strings.ToLower(ulid.Make().String()),
		ReleaseID:   req.ReleaseID,
		Platform:    req.Platform,
		MetricType:  req.MetricType,
		MetricValue: req.MetricValue,
		RecordedAt:  recordedAt,
		SourceURL:   req.SourceURL,
		Notes:       req.Notes,
	}

	_, err := s.client.NamedExecContext(ctx, `
		INSERT INTO performance_metrics (
			id, release_id, platform, metric_type, metric_value,
			recorded_at, source_url, notes
		) VALUES (
			:id, :release_id, :platform, :metric_type, :metric_value,
			:recorded_at, :source_url, :notes
		)`, metric)
	if err != nil {
		return nil, fmt.Errorf("failed to record metric: %w", err)
	}

	return metric, nil
}

// ListByRelease returns all measurements for a release in recording order
func (s *MetricService) ListByRelease(ctx context.Context, releaseID string) ([]*models.PerformanceMetric, error) {
	var metrics []*models.PerformanceMetric
	err := s.client.SelectContext(ctx, &metrics, `
		SELECT * FROM performance_metrics
		WHERE release_id = $1
		ORDER BY recorded_at`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return metrics, nil
}

// ListByReleaseSince returns measurements for a release recorded at or after
// the cutoff, oldest first. The evolution engine uses this for its recency
// window.
func (s *MetricService) ListByReleaseSince(ctx context.Context, releaseID string, since time.Time) ([]*models.PerformanceMetric, error) {
	var metrics []*models.PerformanceMetric
	err := s.client.SelectContext(ctx, &metrics, `
		SELECT * FROM performance_metrics
		WHERE release_id = $1 AND recorded_at >= $2
		ORDER BY recorded_at`, releaseID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	return metrics, nil
}
