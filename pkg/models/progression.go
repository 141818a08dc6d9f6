package models

import "time"

// ProgressionEntry is one append-only record of a persona evolution event.
type ProgressionEntry struct {
	ID                 string    `json:"id" db:"id"`
	PersonaID          string    `json:"persona_id" db:"persona_id"`
	EventTimestamp     time.Time `json:"event_timestamp" db:"event_timestamp"`
	Description        string    `json:"description" db:"description"`
	PerformanceSummary string    `json:"performance_summary,omitempty" db:"performance_summary"`
	PersonaSnapshot    *Persona  `json:"persona_snapshot,omitempty" db:"-"`
}
