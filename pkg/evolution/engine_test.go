package evolution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

type stubPersonas struct {
	persona *models.Persona
	applied int
}

func (s *stubPersonas) ApplyEvolution(_ context.Context, id string, mutate func(*models.Persona) error) (*models.Persona, error) {
	s.applied++
	if err := mutate(s.persona); err != nil {
		return nil, err
	}
	return s.persona, nil
}

type stubMetrics map[string][]*models.PerformanceMetric

func (m stubMetrics) ListByRelease(_ context.Context, releaseID string) ([]*models.PerformanceMetric, error) {
	return m[releaseID], nil
}

type stubReleases []*models.Release

func (r stubReleases) ListIDs() ([]string, error) {
	ids := make([]string, 0, len(r))
	for _, rel := range r {
		ids = append(ids, rel.ReleaseID)
	}
	return ids, nil
}

func (r stubReleases) Get(releaseID string) (*models.Release, error) {
	for _, rel := range r {
		if rel.ReleaseID == releaseID {
			return rel, nil
		}
	}
	return nil, fmt.Errorf("release %s not found", releaseID)
}

type stubProgression struct {
	entries []*models.ProgressionEntry
}

func (p *stubProgression) Append(_ context.Context, entry *models.ProgressionEntry) (*models.ProgressionEntry, error) {
	p.entries = append(p.entries, entry)
	return entry, nil
}

func viewsMetric(releaseID string, value int, now time.Time) *models.PerformanceMetric {
	return &models.PerformanceMetric{
		ReleaseID:   releaseID,
		Platform:    "tiktok",
		MetricType:  config.MetricTypeViews,
		MetricValue: value,
		RecordedAt:  now,
	}
}

func personaRelease(releaseID, personaID string) *models.Release {
	return &models.Release{ReleaseID: releaseID, PersonaID: personaID}
}

type engineFixture struct {
	engine      *Engine
	personas    *stubPersonas
	progression *stubProgression
}

func newEngineFixture(persona *models.Persona, releases stubReleases, metrics stubMetrics) *engineFixture {
	personas := &stubPersonas{persona: persona}
	progression := &stubProgression{}
	return &engineFixture{
		engine:      NewEngine(personas, metrics, progression, releases, config.DefaultEvolutionConfig()),
		personas:    personas,
		progression: progression,
	}
}

func TestEvolvePersona_Reinforce(t *testing.T) {
	now := time.Now().UTC()
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a", "b"}}
	// Fresh views score value*0.7: 700, 70, 56. Average 275.3; best 700
	// clears the 1.2x reinforcement bar.
	fx := newEngineFixture(persona,
		stubReleases{
			personaRelease("rel-1", "persona-1"),
			personaRelease("rel-2", "persona-1"),
			personaRelease("rel-3", "persona-1"),
		},
		stubMetrics{
			"rel-1": {viewsMetric("rel-1", 1000, now)},
			"rel-2": {viewsMetric("rel-2", 100, now)},
			"rel-3": {viewsMetric("rel-3", 80, now)},
		})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Equal(t, ActionReinforce, report.Action)

	require.Len(t, persona.StyleKeywords, 3, "one success keyword appended")
	added := persona.StyleKeywords[2]
	assert.Contains(t, config.DefaultEvolutionConfig().SuccessKeywords, added)

	require.Len(t, persona.PromptHistory, 1)
	hist := persona.PromptHistory[0]
	assert.Equal(t, ActionReinforce, hist.Action)
	assert.Equal(t, "rel-1", hist.ReleaseID)
	assert.InDelta(t, 700.0, hist.Score, 1e-6)
	assert.Equal(t, []string{added}, hist.KeywordsAdded)

	require.Len(t, persona.EvolutionLog, 1)
	require.Len(t, fx.progression.entries, 1)
	entry := fx.progression.entries[0]
	assert.Equal(t, "persona-1", entry.PersonaID)
	assert.Contains(t, entry.PerformanceSummary, "rel-1: 700.0")
	require.NotNil(t, entry.PersonaSnapshot)
	assert.Equal(t, persona.StyleKeywords, entry.PersonaSnapshot.StyleKeywords)
}

func TestEvolvePersona_Diversify(t *testing.T) {
	now := time.Now().UTC()
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a", "b"}}
	// Scores 700, 700, 700, 280. Average 595: best stays inside the 1.2x
	// band while the worst falls below 0.8x.
	fx := newEngineFixture(persona,
		stubReleases{
			personaRelease("rel-1", "persona-1"),
			personaRelease("rel-2", "persona-1"),
			personaRelease("rel-3", "persona-1"),
			personaRelease("rel-4", "persona-1"),
		},
		stubMetrics{
			"rel-1": {viewsMetric("rel-1", 1000, now)},
			"rel-2": {viewsMetric("rel-2", 1000, now)},
			"rel-3": {viewsMetric("rel-3", 1000, now)},
			"rel-4": {viewsMetric("rel-4", 400, now)},
		})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Equal(t, ActionDiversify, report.Action)

	assert.Len(t, persona.StyleKeywords, 1, "one keyword removed")
	require.Len(t, persona.PromptHistory, 1)
	hist := persona.PromptHistory[0]
	assert.Equal(t, ActionDiversify, hist.Action)
	assert.Equal(t, "rel-4", hist.ReleaseID)
	require.Len(t, hist.KeywordsRemoved, 1)
	assert.NotContains(t, persona.StyleKeywords, hist.KeywordsRemoved[0])
}

func TestEvolvePersona_DiversifySingleKeywordAddsExperimental(t *testing.T) {
	now := time.Now().UTC()
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a"}}
	fx := newEngineFixture(persona,
		stubReleases{
			personaRelease("rel-1", "persona-1"),
			personaRelease("rel-2", "persona-1"),
			personaRelease("rel-3", "persona-1"),
			personaRelease("rel-4", "persona-1"),
		},
		stubMetrics{
			"rel-1": {viewsMetric("rel-1", 1000, now)},
			"rel-2": {viewsMetric("rel-2", 1000, now)},
			"rel-3": {viewsMetric("rel-3", 1000, now)},
			"rel-4": {viewsMetric("rel-4", 400, now)},
		})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Equal(t, ActionDiversify, report.Action)
	assert.Equal(t, []string{"a", ExperimentalKeyword}, persona.StyleKeywords)
}

func TestEvolvePersona_NoMutationInsideBand(t *testing.T) {
	now := time.Now().UTC()
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a", "b"}}
	fx := newEngineFixture(persona,
		stubReleases{
			personaRelease("rel-1", "persona-1"),
			personaRelease("rel-2", "persona-1"),
		},
		stubMetrics{
			"rel-1": {viewsMetric("rel-1", 1000, now)},
			"rel-2": {viewsMetric("rel-2", 1000, now)},
		})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Equal(t, ActionNone, report.Action)

	assert.Equal(t, []string{"a", "b"}, persona.StyleKeywords)
	assert.Empty(t, persona.PromptHistory)
	require.Len(t, persona.EvolutionLog, 1)
	require.Len(t, fx.progression.entries, 1)
}

func TestEvolvePersona_NoMetricsAddsExperimental(t *testing.T) {
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a"}}
	fx := newEngineFixture(persona, stubReleases{}, stubMetrics{})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Equal(t, ActionNone, report.Action)
	assert.Equal(t, []string{"a", ExperimentalKeyword}, persona.StyleKeywords)

	require.Len(t, persona.EvolutionLog, 1)
	assert.Equal(t, "Added 'experimental' due to lack of performance data.",
		persona.EvolutionLog[0].Description)
}

func TestEvolvePersona_NoMetricsExperimentalAlreadyPresent(t *testing.T) {
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{ExperimentalKeyword}}
	fx := newEngineFixture(persona, stubReleases{}, stubMetrics{})

	_, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Equal(t, []string{ExperimentalKeyword}, persona.StyleKeywords)
	require.Len(t, persona.EvolutionLog, 1)
	require.Len(t, fx.progression.entries, 1)
}

func TestEvolvePersona_IgnoresOtherPersonasReleases(t *testing.T) {
	now := time.Now().UTC()
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a"}}
	fx := newEngineFixture(persona,
		stubReleases{personaRelease("rel-other", "persona-2")},
		stubMetrics{"rel-other": {viewsMetric("rel-other", 100000, now)}})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)
	assert.Empty(t, report.Scored)
	assert.Equal(t, []string{"a", ExperimentalKeyword}, persona.StyleKeywords)
}

func TestEvolvePersona_ZeroScoreReleasesExcluded(t *testing.T) {
	now := time.Now().UTC()
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a", "b"}}
	fx := newEngineFixture(persona,
		stubReleases{
			personaRelease("rel-1", "persona-1"),
			personaRelease("rel-2", "persona-1"),
		},
		stubMetrics{
			"rel-1": {viewsMetric("rel-1", 1000, now)},
			// Only a metric type without a scoring rule.
			"rel-2": {{
				ReleaseID:   "rel-2",
				Platform:    "tiktok",
				MetricType:  config.MetricType("comments"),
				MetricValue: 50,
				RecordedAt:  now,
			}},
		})

	report, err := fx.engine.EvolvePersona(context.Background(), "persona-1")
	require.NoError(t, err)

	require.Len(t, report.Scored, 1)
	assert.Equal(t, "rel-1", report.Scored[0].ReleaseID)

	// A single ranked release can never clear the reinforcement bar.
	assert.Equal(t, ActionNone, report.Action)
	require.Len(t, fx.progression.entries, 1)
	assert.Contains(t, fx.progression.entries[0].PerformanceSummary, "rel-2: no scorable metrics")
}
