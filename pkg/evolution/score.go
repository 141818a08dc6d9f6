// Package evolution converts per-release performance metrics into bounded,
// logged mutations of a persona's stylistic parameters.
package evolution

import (
	"fmt"
	"math"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// Per-metric-type contribution weights.
const (
	engagementWeight = 0.3 // likes, saves
	reachWeight      = 0.7 // views, streams
)

// ReleaseScore is the time-decayed performance score of one release.
type ReleaseScore struct {
	ReleaseID string
	Score     float64
	// Included counts metrics that contributed to the score.
	Included int
	// Skipped lists metric types that carry no scoring rule.
	Skipped []config.MetricType
}

// Summary is the concise one-line form used in progression entries.
func (r ReleaseScore) Summary() string {
	if r.Included == 0 {
		return fmt.Sprintf("%s: no scorable metrics", r.ReleaseID)
	}
	return fmt.Sprintf("%s: %.1f (%d metrics)", r.ReleaseID, r.Score, r.Included)
}

// ScoreRelease computes the weighted mean score of one release's metrics.
// Each metric's weight decays exponentially with its age in days; metric
// types without a scoring rule are skipped and reported. A release with no
// contributing metrics scores zero.
func ScoreRelease(releaseID string, metrics []*models.PerformanceMetric, now time.Time, decayLambda float64) ReleaseScore {
	result := ReleaseScore{ReleaseID: releaseID}

	var weightedSum, weightSum float64
	for _, m := range metrics {
		var factor float64
		switch m.MetricType {
		case config.MetricTypeLikes, config.MetricTypeSaves:
			factor = engagementWeight
		case config.MetricTypeViews, config.MetricTypeStreams:
			factor = reachWeight
		default:
			result.Skipped = append(result.Skipped, m.MetricType)
			continue
		}

		ageDays := now.Sub(m.RecordedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		w := math.Exp(-decayLambda * ageDays)

		weightedSum += float64(m.MetricValue) * factor * w
		weightSum += w
		result.Included++
	}

	if weightSum > 0 {
		result.Score = weightedSum / weightSum
	}
	return result
}
