package video

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// fakeSource returns a fixed number of clips per query and records the
// queries it was asked.
type fakeSource struct {
	name    string
	clips   int
	err     error
	queries []string
	// answerOnly restricts responses to one query; others return empty.
	answerOnly string
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Search(_ context.Context, query string, limit int) ([]Clip, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if s.answerOnly != "" && query != s.answerOnly {
		return nil, nil
	}
	n := s.clips
	if n > limit {
		n = limit
	}
	clips := make([]Clip, 0, n)
	for i := 0; i < n; i++ {
		clips = append(clips, Clip{
			ID:  fmt.Sprintf("%s-%s-%d", s.name, query, i),
			URL: fmt.Sprintf("https://%s.example/%d", s.name, i),
		})
	}
	return clips, nil
}

func testVideoConfig(t *testing.T) *config.VideoConfig {
	t.Helper()
	cfg := config.DefaultVideoConfig()
	cfg.SourceStatsPath = filepath.Join(t.TempDir(), "source_stats.json")
	cfg.SearchTimeout = time.Second
	return cfg
}

func testPersona() *models.Persona {
	return &models.Persona{
		ID:            "persona-1",
		DisplayName:   "Nova Drift",
		PrimaryGenre:  "synthwave",
		StyleKeywords: []string{"retro", "neon"},
	}
}

func TestSynthesizeQuery(t *testing.T) {
	tests := []struct {
		name string
		req  SelectionRequest
		want string
	}{
		{
			name: "adaptation keywords lead, audio style picks the descriptor",
			req: SelectionRequest{
				Persona:  &models.Persona{PrimaryGenre: "synthwave", StyleKeywords: []string{"retro"}},
				Keywords: []string{"neon city", "rain"},
				Audio:    AudioFeatures{Style: "dark techno"},
			},
			want: "neon city rain fast intense",
		},
		{
			name: "keywords capped at two",
			req: SelectionRequest{
				Keywords: []string{"ocean", "dawn", "mist"},
			},
			want: "ocean dawn",
		},
		{
			name: "persona keyword plus descriptor when no adaptation keywords",
			req: SelectionRequest{
				Persona: &models.Persona{PrimaryGenre: "synthwave", StyleKeywords: []string{"retro"}},
			},
			want: "retro neon driving",
		},
		{
			name: "genre only",
			req: SelectionRequest{
				Persona: &models.Persona{PrimaryGenre: "ambient"},
			},
			want: "ambient calm gentle",
		},
		{
			name: "no descriptor match",
			req: SelectionRequest{
				Persona: &models.Persona{PrimaryGenre: "polka", StyleKeywords: []string{"accordion"}},
			},
			want: "accordion",
		},
		{
			name: "empty request falls back",
			req:  SelectionRequest{},
			want: "abstract",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SynthesizeQuery(tt.req))
		})
	}
}

func TestSelectClips_PrefersTopRankedSource(t *testing.T) {
	cfg := testVideoConfig(t)
	tracker, err := NewSuccessTracker(cfg.SourceStatsPath)
	require.NoError(t, err)

	// pexels has strong recent performance, pixabay has none.
	require.NoError(t, tracker.LogPerformance("pexels", "old-clip", models.ClipMetricRecord{
		ReleaseID: "rel-0", Likes: 100, RetentionPct: 80, WatchTimeSec: 60,
		Timestamp: time.Now().UTC().Add(-time.Hour),
	}))

	pexels := &fakeSource{name: "pexels", clips: 3}
	pixabay := &fakeSource{name: "pixabay", clips: 3}
	selector := NewSelector([]Source{pixabay, pexels}, tracker, cfg)

	selected, err := selector.SelectClips(context.Background(), SelectionRequest{Persona: testPersona(), ReleaseID: "rel-1"})
	require.NoError(t, err)
	require.Len(t, selected, cfg.ClipCount)

	for _, clip := range selected {
		assert.Equal(t, "pexels", clip.SourceName, "clips from the ranked source must win")
	}
}

func TestSelectClips_FallsBackThroughQueries(t *testing.T) {
	cfg := testVideoConfig(t)
	tracker, err := NewSuccessTracker(cfg.SourceStatsPath)
	require.NoError(t, err)

	src := &fakeSource{name: "pexels", clips: 2, answerOnly: "abstract background"}
	selector := NewSelector([]Source{src}, tracker, cfg)

	selected, err := selector.SelectClips(context.Background(), SelectionRequest{Persona: testPersona(), ReleaseID: "rel-1"})
	require.NoError(t, err)
	require.Len(t, selected, 2)

	assert.Equal(t, []string{"retro neon driving", "abstract background"}, src.queries)
	for _, clip := range selected {
		assert.Equal(t, "abstract background", clip.Query)
	}
}

func TestSelectClips_QueriesWithAdaptationKeywords(t *testing.T) {
	cfg := testVideoConfig(t)
	tracker, err := NewSuccessTracker(cfg.SourceStatsPath)
	require.NoError(t, err)

	src := &fakeSource{name: "pexels", clips: 3}
	selector := NewSelector([]Source{src}, tracker, cfg)

	_, err = selector.SelectClips(context.Background(), SelectionRequest{
		Persona:   testPersona(),
		ReleaseID: "rel-1",
		Keywords:  []string{"neon city"},
		Audio:     AudioFeatures{Style: "dark techno"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"neon city fast intense"}, src.queries,
		"adaptation keywords and audio descriptors must reach the sources")
}

func TestSelectClips_NoResultsAnywhere(t *testing.T) {
	cfg := testVideoConfig(t)
	tracker, err := NewSuccessTracker(cfg.SourceStatsPath)
	require.NoError(t, err)

	selector := NewSelector([]Source{&fakeSource{name: "pexels"}}, tracker, cfg)

	_, err = selector.SelectClips(context.Background(), SelectionRequest{Persona: testPersona(), ReleaseID: "rel-1"})
	assert.ErrorIs(t, err, ErrNoClips)
}

func TestSelectClips_ToleratesSourceErrors(t *testing.T) {
	cfg := testVideoConfig(t)
	tracker, err := NewSuccessTracker(cfg.SourceStatsPath)
	require.NoError(t, err)

	broken := &fakeSource{name: "coverr", err: errors.New("401 unauthorized")}
	healthy := &fakeSource{name: "pexels", clips: 3}
	selector := NewSelector([]Source{broken, healthy}, tracker, cfg)

	selected, err := selector.SelectClips(context.Background(), SelectionRequest{Persona: testPersona(), ReleaseID: "rel-1"})
	require.NoError(t, err)
	require.Len(t, selected, cfg.ClipCount)
	for _, clip := range selected {
		assert.Equal(t, "pexels", clip.SourceName)
	}
}

func TestSelectClips_LogsUsageForSelection(t *testing.T) {
	cfg := testVideoConfig(t)
	cfg.ClipCount = 2
	tracker, err := NewSuccessTracker(cfg.SourceStatsPath)
	require.NoError(t, err)

	src := &fakeSource{name: "pexels", clips: 2}
	selector := NewSelector([]Source{src}, tracker, cfg)

	selected, err := selector.SelectClips(context.Background(), SelectionRequest{Persona: testPersona(), ReleaseID: "rel-1"})
	require.NoError(t, err)
	require.Len(t, selected, 2)

	for _, clip := range selected {
		stats := tracker.stats.Sources["pexels"].Clips[clip.ID]
		require.NotNil(t, stats)
		assert.Equal(t, 1, stats.UsageCount)
		assert.Equal(t, []string{"rel-1"}, stats.ReleaseIDs)
	}
}
