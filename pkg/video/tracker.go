package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// Per-metric weights of the clip score.
const (
	clipLikesWeight     = 0.2
	clipRetentionWeight = 0.5
	clipWatchTimeWeight = 0.3
)

// SuccessTracker accumulates per-clip usage and performance and derives a
// ranking over sources. State lives in one JSON snapshot document, rewritten
// atomically on every mutation, so a crash never loses more than the last
// write.
type SuccessTracker struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	stats *models.SourceStats
}

// NewSuccessTracker loads the snapshot at path, starting empty when the file
// does not exist yet.
func NewSuccessTracker(path string) (*SuccessTracker, error) {
	t := &SuccessTracker{
		path:   path,
		logger: slog.Default().With("component", "video-tracker"),
		stats: &models.SourceStats{
			Sources: make(map[string]*models.SourceEntry),
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read source stats: %w", err)
	}
	if err := json.Unmarshal(data, t.stats); err != nil {
		return nil, fmt.Errorf("failed to decode source stats: %w", err)
	}
	if t.stats.Sources == nil {
		t.stats.Sources = make(map[string]*models.SourceEntry)
	}
	return t, nil
}

// LogClipUsage records that a clip was selected for a release. Duplicate
// release IDs are deduplicated; the usage count still grows, preserving
// usage_count >= len(release_ids).
func (t *SuccessTracker) LogClipUsage(sourceName, clipID, releaseID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	clip := t.clipStats(sourceName, clipID)
	clip.UsageCount++
	if !contains(clip.ReleaseIDs, releaseID) {
		clip.ReleaseIDs = append(clip.ReleaseIDs, releaseID)
	}

	return t.persist()
}

// LogPerformance appends one performance observation and recalculates the
// source's aggregated score. An observation with the same release ID and
// timestamp as an existing one is dropped, so replayed logs do not skew the
// ranking.
func (t *SuccessTracker) LogPerformance(sourceName, clipID string, record models.ClipMetricRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	clip := t.clipStats(sourceName, clipID)
	for _, existing := range clip.Metrics {
		if existing.ReleaseID == record.ReleaseID && existing.Timestamp.Equal(record.Timestamp) {
			return nil
		}
	}
	clip.Metrics = append(clip.Metrics, record)

	entry := t.stats.Sources[sourceName]
	entry.AggregatedScore = sourceScore(entry, time.Time{})

	return t.persist()
}

// SourceRanking is one ranked source.
type SourceRanking struct {
	Name  string
	Score float64
}

// TopSources returns sources ranked by aggregated clip score over the given
// window, best first. Sources scoring zero are excluded.
func (t *SuccessTracker) TopSources(window time.Duration) []SourceRanking {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}

	var ranked []SourceRanking
	for name, entry := range t.stats.Sources {
		score := sourceScore(entry, cutoff)
		if score > 0 {
			ranked = append(ranked, SourceRanking{Name: name, Score: score})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// clipStats returns the stats bucket for a clip, creating missing levels.
// Callers hold t.mu.
func (t *SuccessTracker) clipStats(sourceName, clipID string) *models.ClipStats {
	entry, ok := t.stats.Sources[sourceName]
	if !ok {
		entry = &models.SourceEntry{Clips: make(map[string]*models.ClipStats)}
		t.stats.Sources[sourceName] = entry
	}
	clip, ok := entry.Clips[clipID]
	if !ok {
		clip = &models.ClipStats{}
		entry.Clips[clipID] = clip
	}
	return clip
}

// clipScore is the mean weighted score over a clip's observations, optionally
// restricted to those at or after cutoff.
func clipScore(clip *models.ClipStats, cutoff time.Time) float64 {
	var sum float64
	var n int
	for _, m := range clip.Metrics {
		if !cutoff.IsZero() && m.Timestamp.Before(cutoff) {
			continue
		}
		sum += clipLikesWeight*float64(m.Likes) +
			clipRetentionWeight*m.RetentionPct +
			clipWatchTimeWeight*m.WatchTimeSec
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// sourceScore is the mean of the source's non-zero clip scores.
func sourceScore(entry *models.SourceEntry, cutoff time.Time) float64 {
	var sum float64
	var n int
	for _, clip := range entry.Clips {
		score := clipScore(clip, cutoff)
		if score > 0 {
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// persist rewrites the snapshot atomically. Callers hold t.mu.
func (t *SuccessTracker) persist() error {
	t.stats.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(t.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode source stats: %w", err)
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create source stats directory: %w", err)
		}
	}
	if err := renameio.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write source stats: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
