package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// ErrNoClips is returned when every query against every source came back empty.
var ErrNoClips = errors.New("no clips found across all sources and queries")

// Selector picks clips for a release: sources ranked by past performance are
// searched first, candidate clips from preferred sources win, and every
// selection feeds back into the tracker.
type Selector struct {
	sources []Source
	tracker *SuccessTracker
	cfg     *config.VideoConfig
	logger  *slog.Logger
}

// NewSelector wires a selector over the registered sources.
func NewSelector(sources []Source, tracker *SuccessTracker, cfg *config.VideoConfig) *Selector {
	return &Selector{
		sources: sources,
		tracker: tracker,
		cfg:     cfg,
		logger:  slog.Default().With("component", "video-selector"),
	}
}

// AudioFeatures summarizes the generated track for query synthesis.
type AudioFeatures struct {
	Style        string
	Instrumental bool
}

// SelectionRequest carries the inputs for one clip selection: the persona,
// the adaptation step's visual keywords, and the track's audio features.
type SelectionRequest struct {
	Persona   *models.Persona
	ReleaseID string
	Keywords  []string
	Audio     AudioFeatures
}

// tempo/energy descriptor vocabulary, keyed by style keyword fragments.
var descriptorRules = []struct {
	fragment    string
	descriptors string
}{
	{"techno", "fast intense"},
	{"drum", "fast intense"},
	{"dnb", "fast intense"},
	{"metal", "intense"},
	{"punk", "fast"},
	{"house", "energetic"},
	{"dance", "energetic"},
	{"synthwave", "neon driving"},
	{"ambient", "calm gentle"},
	{"lofi", "calm"},
	{"chill", "calm gentle"},
	{"acoustic", "gentle"},
	{"classical", "gentle"},
}

// SynthesizeQuery builds a search query for one selection. The adaptation
// step's visual keywords lead; persona style fills in when there are none.
// Tempo/energy descriptors come from the track's audio style first, then the
// persona. Falls back to "abstract" when nothing is usable.
func SynthesizeQuery(req SelectionRequest) string {
	var parts []string
	for _, kw := range req.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			parts = append(parts, kw)
		}
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 && req.Persona != nil {
		if len(req.Persona.StyleKeywords) > 0 {
			parts = append(parts, req.Persona.StyleKeywords[0])
		} else if req.Persona.PrimaryGenre != "" {
			parts = append(parts, req.Persona.PrimaryGenre)
		}
	}

	haystack := strings.ToLower(req.Audio.Style)
	if req.Persona != nil {
		haystack += " " + strings.ToLower(req.Persona.PrimaryGenre+" "+strings.Join(req.Persona.StyleKeywords, " "))
	}
	for _, rule := range descriptorRules {
		if strings.Contains(haystack, rule.fragment) {
			parts = append(parts, rule.descriptors)
			break
		}
	}

	if len(parts) == 0 {
		return "abstract"
	}
	return strings.Join(parts, " ")
}

// SelectClips picks cfg.ClipCount clips for a release and logs their usage.
// The synthesized query is tried first, then the configured fallback queries,
// all against the same source ordering.
func (s *Selector) SelectClips(ctx context.Context, req SelectionRequest) ([]Clip, error) {
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("no video sources registered")
	}

	ordered, preferred := s.orderedSources()

	queries := append([]string{SynthesizeQuery(req)}, s.cfg.FallbackQueries...)
	var candidates []Clip
	for _, query := range queries {
		candidates = s.gather(ctx, ordered, query)
		if len(candidates) > 0 {
			break
		}
		s.logger.Warn("Query returned no clips, falling back", "query", query)
	}
	if len(candidates) == 0 {
		return nil, ErrNoClips
	}

	selected := pickClips(candidates, preferred, s.cfg.ClipCount)

	for _, clip := range selected {
		if err := s.tracker.LogClipUsage(clip.SourceName, clip.ID, req.ReleaseID); err != nil {
			return nil, fmt.Errorf("failed to log clip usage: %w", err)
		}
	}
	return selected, nil
}

// orderedSources returns the search order (tracker's top sources first, the
// rest shuffled) and the preferred-source name set.
func (s *Selector) orderedSources() ([]Source, map[string]bool) {
	byName := make(map[string]Source, len(s.sources))
	for _, src := range s.sources {
		byName[src.Name()] = src
	}

	preferred := make(map[string]bool)
	var ordered []Source
	for _, ranking := range s.tracker.TopSources(s.cfg.RecencyWindow) {
		if src, ok := byName[ranking.Name]; ok {
			ordered = append(ordered, src)
			preferred[ranking.Name] = true
		}
	}

	var rest []Source
	for _, src := range s.sources {
		if !preferred[src.Name()] {
			rest = append(rest, src)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	return append(ordered, rest...), preferred
}

// gather searches every source for one query, tolerating per-source failures.
func (s *Selector) gather(ctx context.Context, ordered []Source, query string) []Clip {
	var candidates []Clip
	for _, src := range ordered {
		searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
		clips, err := src.Search(searchCtx, query, s.cfg.ClipCount)
		cancel()
		if err != nil {
			s.logger.Warn("Source search failed", "source", src.Name(), "query", query, "error", err)
			continue
		}
		for _, clip := range clips {
			clip.SourceName = src.Name()
			clip.Query = query
			candidates = append(candidates, clip)
		}
	}
	return candidates
}

// pickClips prefers clips from preferred sources, shuffles within each pool,
// and takes up to n.
func pickClips(candidates []Clip, preferred map[string]bool, n int) []Clip {
	var preferredPool, restPool []Clip
	for _, clip := range candidates {
		if preferred[clip.SourceName] {
			preferredPool = append(preferredPool, clip)
		} else {
			restPool = append(restPool, clip)
		}
	}
	rand.Shuffle(len(preferredPool), func(i, j int) { preferredPool[i], preferredPool[j] = preferredPool[j], preferredPool[i] })
	rand.Shuffle(len(restPool), func(i, j int) { restPool[i], restPool[j] = restPool[j], restPool[i] })

	pool := append(preferredPool, restPool...)
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}
