package evolution

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

func metric(metricType config.MetricType, value int, age time.Duration, now time.Time) *models.PerformanceMetric {
	return &models.PerformanceMetric{
		ReleaseID:   "rel-1",
		Platform:    "tiktok",
		MetricType:  metricType,
		MetricValue: value,
		RecordedAt:  now.Add(-age),
	}
}

func TestScoreRelease(t *testing.T) {
	now := time.Now().UTC()
	lambda := 0.05

	t.Run("fresh metrics carry full weight", func(t *testing.T) {
		score := ScoreRelease("rel-1", []*models.PerformanceMetric{
			metric(config.MetricTypeViews, 100, 0, now),
		}, now, lambda)
		assert.InDelta(t, 70.0, score.Score, 1e-9)
		assert.Equal(t, 1, score.Included)
	})

	t.Run("engagement metrics weigh less than reach", func(t *testing.T) {
		score := ScoreRelease("rel-1", []*models.PerformanceMetric{
			metric(config.MetricTypeLikes, 100, 0, now),
		}, now, lambda)
		assert.InDelta(t, 30.0, score.Score, 1e-9)
	})

	t.Run("older metrics decay", func(t *testing.T) {
		ageDays := 20.0
		score := ScoreRelease("rel-1", []*models.PerformanceMetric{
			metric(config.MetricTypeViews, 100, 0, now),
			metric(config.MetricTypeViews, 0, time.Duration(ageDays*24)*time.Hour, now),
		}, now, lambda)

		w := math.Exp(-lambda * ageDays)
		want := (70.0 + 0.0*w) / (1.0 + w)
		assert.InDelta(t, want, score.Score, 1e-6)
		assert.Equal(t, 2, score.Included)
	})

	t.Run("unknown metric types are skipped", func(t *testing.T) {
		score := ScoreRelease("rel-1", []*models.PerformanceMetric{
			metric(config.MetricType("comments"), 9999, 0, now),
			metric(config.MetricTypeViews, 100, 0, now),
		}, now, lambda)
		assert.InDelta(t, 70.0, score.Score, 1e-9)
		assert.Equal(t, 1, score.Included)
		assert.Equal(t, []config.MetricType{"comments"}, score.Skipped)
	})

	t.Run("no contributing metrics scores zero", func(t *testing.T) {
		score := ScoreRelease("rel-1", []*models.PerformanceMetric{
			metric(config.MetricType("comments"), 50, 0, now),
		}, now, lambda)
		assert.Zero(t, score.Score)
		assert.Zero(t, score.Included)
		assert.Equal(t, "rel-1: no scorable metrics", score.Summary())
	})

	t.Run("future timestamps clamp to zero age", func(t *testing.T) {
		score := ScoreRelease("rel-1", []*models.PerformanceMetric{
			metric(config.MetricTypeViews, 100, -time.Hour, now),
		}, now, lambda)
		assert.InDelta(t, 70.0, score.Score, 1e-9)
	})
}
