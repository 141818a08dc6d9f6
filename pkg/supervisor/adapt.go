package supervisor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// AdaptedParams is the per-cycle generation recipe produced by the prompt
// adaptation step.
type AdaptedParams struct {
	Style         string   `json:"style"`
	Title         string   `json:"title"`
	Lyrics        string   `json:"lyrics,omitempty"`
	Model         string   `json:"model,omitempty"`
	VideoKeywords []string `json:"video_keywords,omitempty"`
}

const adaptationTemplate = `You are the creative director for the AI artist %q (%s).
Current style keywords: %s. Personality: %s.

Produce the next track concept as a single JSON object with exactly these fields:
{"style": "<comma-separated style prompt>", "title": "<track title>", "lyrics": "<full lyrics or empty string for instrumental>", "model": "<preferred generation model or empty>", "video_keywords": ["<visual keyword>", ...]}

Respond with the JSON object only, no prose.`

// buildAdaptationPrompt renders the prompt-adaptation template for a persona.
func buildAdaptationPrompt(p *models.Persona) string {
	keywords := strings.Join(p.StyleKeywords, ", ")
	if keywords == "" {
		keywords = p.PrimaryGenre
	}
	traits := strings.Join(p.PersonalityTraits, ", ")
	if traits == "" {
		traits = "none specified"
	}
	return fmt.Sprintf(adaptationTemplate, p.DisplayName, p.PrimaryGenre, keywords, traits)
}

// parseAdaptedParams extracts the JSON recipe from a model response. Models
// routinely wrap JSON in code fences or prose, so parsing tolerates leading
// and trailing noise around the outermost object.
func parseAdaptedParams(text string) (*AdaptedParams, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in adaptation response")
	}

	var params AdaptedParams
	if err := json.Unmarshal([]byte(text[start:end+1]), &params); err != nil {
		return nil, fmt.Errorf("malformed adaptation response: %w", err)
	}
	if strings.TrimSpace(params.Style) == "" {
		return nil, fmt.Errorf("adaptation response missing style")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("adaptation response missing title")
	}
	return &params, nil
}
