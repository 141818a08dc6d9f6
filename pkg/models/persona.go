package models

import "time"

// Persona is one AI-authored artist identity: the stylistic parameters
// every production cycle reads and the evolution engine mutates.
type Persona struct {
	ID                 string               `json:"id" db:"id"`
	DisplayName        string               `json:"display_name" db:"display_name"`
	PrimaryGenre       string               `json:"primary_genre" db:"primary_genre"`
	Subgenres          []string             `json:"subgenres" db:"-"`
	StyleKeywords      []string             `json:"style_keywords" db:"-"`
	PersonalityTraits  []string             `json:"personality_traits" db:"-"`
	VoiceDescriptor    string               `json:"voice_descriptor" db:"voice_descriptor"`
	AudienceDescriptor string               `json:"audience_descriptor" db:"audience_descriptor"`
	VisualPrompt       string               `json:"visual_prompt" db:"visual_prompt"`
	EvolutionLog       []EvolutionLogEntry  `json:"evolution_log" db:"-"`
	PromptHistory      []PromptHistoryEntry `json:"prompt_history" db:"-"`
	Settings           map[string]any       `json:"settings,omitempty" db:"-"`
	CreatedAt          time.Time            `json:"created_at" db:"created_at"`
	LastProducedAt     *time.Time           `json:"last_produced_at,omitempty" db:"last_produced_at"`
}

// EvolutionLogEntry is one append-only record of an evolution pass over a persona.
type EvolutionLogEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// PromptHistoryEntry is one append-only record of a rule-driven mutation.
type PromptHistoryEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	ReleaseID       string    `json:"release_id,omitempty"`
	Score           float64   `json:"score"`
	Action          string    `json:"action"` // reinforce, diversify
	KeywordsAdded   []string  `json:"keywords_added,omitempty"`
	KeywordsRemoved []string  `json:"keywords_removed,omitempty"`
}

// CreatePersonaRequest contains fields for creating a new persona.
type CreatePersonaRequest struct {
	ID                 string         `json:"id"`
	DisplayName        string         `json:"display_name"`
	PrimaryGenre       string         `json:"primary_genre"`
	Subgenres          []string       `json:"subgenres,omitempty"`
	StyleKeywords      []string       `json:"style_keywords,omitempty"`
	PersonalityTraits  []string       `json:"personality_traits,omitempty"`
	VoiceDescriptor    string         `json:"voice_descriptor,omitempty"`
	AudienceDescriptor string         `json:"audience_descriptor,omitempty"`
	VisualPrompt       string         `json:"visual_prompt,omitempty"`
	Settings           map[string]any `json:"settings,omitempty"`
}
