package evolution

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// Mutation actions recorded in prompt history.
const (
	ActionReinforce = "reinforce"
	ActionDiversify = "diversify"
	ActionNone      = "none"
)

// ExperimentalKeyword is the fixed keyword added when diversification cannot
// remove anything, and on the no-performance-data path.
const ExperimentalKeyword = "experimental"

// noMetricsDescription is the exact log line for the no-data path.
const noMetricsDescription = "Added 'experimental' due to lack of performance data."

// PersonaStore is the persona read-modify-write surface the engine needs.
type PersonaStore interface {
	ApplyEvolution(ctx context.Context, id string, mutate func(*models.Persona) error) (*models.Persona, error)
}

// MetricLister reads the metrics of one release.
type MetricLister interface {
	ListByRelease(ctx context.Context, releaseID string) ([]*models.PerformanceMetric, error)
}

// ProgressionAppender appends to the append-only progression log.
type ProgressionAppender interface {
	Append(ctx context.Context, entry *models.ProgressionEntry) (*models.ProgressionEntry, error)
}

// ReleaseLister enumerates release documents.
type ReleaseLister interface {
	ListIDs() ([]string, error)
	Get(releaseID string) (*models.Release, error)
}

// Engine scores a persona's releases and applies bounded rule-based
// mutations. Evolutions of the same persona serialize through the persona
// store's per-persona lock; different personas evolve independently.
type Engine struct {
	personas    PersonaStore
	metrics     MetricLister
	progression ProgressionAppender
	releases    ReleaseLister
	cfg         *config.EvolutionConfig
	logger      *slog.Logger
}

// NewEngine wires an evolution engine over the given stores.
func NewEngine(personas PersonaStore, metrics MetricLister, progression ProgressionAppender, releases ReleaseLister, cfg *config.EvolutionConfig) *Engine {
	if cfg == nil {
		cfg = config.DefaultEvolutionConfig()
	}
	return &Engine{
		personas:    personas,
		metrics:     metrics,
		progression: progression,
		releases:    releases,
		cfg:         cfg,
		logger:      slog.Default().With("component", "evolution"),
	}
}

// Report describes one completed evolution pass.
type Report struct {
	PersonaID   string
	Action      string
	Description string
	Scored      []ReleaseScore
	Persona     *models.Persona
}

// decision is the rule outcome, fixed before the persona mutation runs.
type decision struct {
	action    string
	releaseID string
	score     float64
}

// EvolvePersona scores the persona's releases, applies at most one mutation,
// and records the pass in the evolution log and the progression log. Scoring
// and rule evaluation run within the configured deadline; the database writes
// are outside that budget.
func (e *Engine) EvolvePersona(ctx context.Context, personaID string) (*Report, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.cfg.EvalTimeout)
	scored, summaries, err := e.scoreReleases(evalCtx, personaID)
	if err != nil {
		cancel()
		return nil, err
	}
	dec := e.decide(scored)
	err = evalCtx.Err()
	cancel()
	if err != nil {
		return nil, fmt.Errorf("evolution evaluation deadline exceeded: %w", err)
	}

	var description string
	updated, err := e.personas.ApplyEvolution(ctx, personaID, func(p *models.Persona) error {
		description = e.apply(p, dec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.progression.Append(ctx, &models.ProgressionEntry{
		PersonaID:          personaID,
		Description:        description,
		PerformanceSummary: strings.Join(summaries, "; "),
		PersonaSnapshot:    updated,
	}); err != nil {
		return nil, fmt.Errorf("failed to record progression entry: %w", err)
	}

	e.logger.Info("Persona evolved",
		"persona_id", personaID,
		"action", dec.action,
		"releases_scored", len(scored))

	return &Report{
		PersonaID:   personaID,
		Action:      dec.action,
		Description: description,
		Scored:      scored,
		Persona:     updated,
	}, nil
}

// scoreReleases scores every release belonging to the persona. Releases with
// no contributing metrics are excluded from the ranking but still appear in
// the summaries. The result is sorted best-first.
func (e *Engine) scoreReleases(ctx context.Context, personaID string) ([]ReleaseScore, []string, error) {
	ids, err := e.releases.ListIDs()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list releases: %w", err)
	}

	now := time.Now().UTC()
	var scored []ReleaseScore
	var summaries []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("evolution evaluation deadline exceeded: %w", err)
		}
		rel, err := e.releases.Get(id)
		if err != nil {
			return nil, nil, err
		}
		if rel.PersonaID != personaID {
			continue
		}
		metrics, err := e.metrics.ListByRelease(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		score := ScoreRelease(id, metrics, now, e.cfg.DecayLambda)
		summaries = append(summaries, score.Summary())
		if score.Included == 0 {
			continue
		}
		scored = append(scored, score)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, summaries, nil
}

// decide evaluates the mutation rules against the ranked scores.
func (e *Engine) decide(scored []ReleaseScore) decision {
	if len(scored) == 0 {
		return decision{action: ActionNone}
	}

	var sum float64
	for _, s := range scored {
		sum += s.Score
	}
	avg := sum / float64(len(scored))
	best := scored[0]
	worst := scored[len(scored)-1]

	if best.Score > e.cfg.ReinforceFactor*avg && best.Score > 0 {
		return decision{action: ActionReinforce, releaseID: best.ReleaseID, score: best.Score}
	}
	if worst.Score < e.cfg.DiversifyFactor*avg && len(scored) > 1 {
		return decision{action: ActionDiversify, releaseID: worst.ReleaseID, score: worst.Score}
	}
	return decision{action: ActionNone, releaseID: best.ReleaseID, score: best.Score}
}

// apply mutates the persona per the decision and appends the evolution-log
// entry. Runs under the persona store's per-persona lock. Returns the event
// description shared by the evolution log and the progression entry.
func (e *Engine) apply(p *models.Persona, dec decision) string {
	now := time.Now().UTC()
	var description string

	switch dec.action {
	case ActionReinforce:
		entry := models.PromptHistoryEntry{
			Timestamp: now,
			ReleaseID: dec.releaseID,
			Score:     dec.score,
			Action:    ActionReinforce,
		}
		if kw, ok := pickAbsent(e.cfg.SuccessKeywords, p.StyleKeywords); ok {
			p.StyleKeywords = append(p.StyleKeywords, kw)
			entry.KeywordsAdded = []string{kw}
			description = fmt.Sprintf("Reinforced style with keyword %q after release %s scored %.1f", kw, dec.releaseID, dec.score)
		} else {
			description = fmt.Sprintf("Reinforcement triggered by release %s (%.1f); all success keywords already present", dec.releaseID, dec.score)
		}
		p.PromptHistory = append(p.PromptHistory, entry)

	case ActionDiversify:
		entry := models.PromptHistoryEntry{
			Timestamp: now,
			ReleaseID: dec.releaseID,
			Score:     dec.score,
			Action:    ActionDiversify,
		}
		if len(p.StyleKeywords) > 1 {
			idx := rand.IntN(len(p.StyleKeywords))
			removed := p.StyleKeywords[idx]
			p.StyleKeywords = append(p.StyleKeywords[:idx], p.StyleKeywords[idx+1:]...)
			entry.KeywordsRemoved = []string{removed}
			description = fmt.Sprintf("Diversified style by removing keyword %q after release %s scored %.1f", removed, dec.releaseID, dec.score)
		} else if !containsKeyword(p.StyleKeywords, ExperimentalKeyword) {
			p.StyleKeywords = append(p.StyleKeywords, ExperimentalKeyword)
			entry.KeywordsAdded = []string{ExperimentalKeyword}
			description = fmt.Sprintf("Diversified style with keyword %q after release %s scored %.1f", ExperimentalKeyword, dec.releaseID, dec.score)
		} else {
			description = fmt.Sprintf("Diversification triggered by release %s (%.1f); nothing left to mutate", dec.releaseID, dec.score)
		}
		p.PromptHistory = append(p.PromptHistory, entry)

	default:
		if dec.releaseID == "" {
			// No scorable releases at all.
			if !containsKeyword(p.StyleKeywords, ExperimentalKeyword) {
				p.StyleKeywords = append(p.StyleKeywords, ExperimentalKeyword)
				description = noMetricsDescription
			} else {
				description = "No performance data; 'experimental' already present"
			}
		} else {
			description = "Scores within normal band; no mutation"
		}
	}

	p.EvolutionLog = append(p.EvolutionLog, models.EvolutionLogEntry{
		Timestamp:   now,
		Description: description,
	})
	return description
}

// pickAbsent picks a random candidate not already present.
func pickAbsent(candidates, present []string) (string, bool) {
	var absent []string
	for _, c := range candidates {
		if !containsKeyword(present, c) {
			absent = append(absent, c)
		}
	}
	if len(absent) == 0 {
		return "", false
	}
	return absent[rand.IntN(len(absent))], true
}

func containsKeyword(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
