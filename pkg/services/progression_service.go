package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/database"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// ProgressionService keeps the append-only audit trail of persona evolution
// events, each optionally carrying a full persona snapshot.
type ProgressionService struct {
	client *database.Client
}

// NewProgressionService creates a new ProgressionService
func NewProgressionService(client *database.Client) *ProgressionService {
	return &ProgressionService{client: client}
}

type progressionRow struct {
	ID                 string          `db:"id"`
	PersonaID          string          `db:"persona_id"`
	EventTimestamp     time.Time       `db:"event_timestamp"`
	Description        string          `db:"description"`
	PerformanceSummary string          `db:"performance_summary"`
	PersonaSnapshot    json.RawMessage `db:"persona_snapshot"`
}

// Append records one evolution event
func (s *ProgressionService) Append(ctx context.Context, entry *models.ProgressionEntry) (*models.ProgressionEntry, error) {
	if strings.TrimSpace(entry.PersonaID) == "" {
		return nil, NewValidationError("persona_id", "must not be empty")
	}
	if strings.TrimSpace(entry.Description) == "" {
		return nil, NewValidationError("description", "must not be empty")
	}

	stored := *entry
	stored.ID = strings.ToLower(ulid.Make().String())
	if stored.EventTimestamp.IsZero() {
		stored.EventTimestamp = time.Now().UTC()
	}

	row := progressionRow{
		ID:                 stored.ID,
		PersonaID:          stored.PersonaID,
		EventTimestamp:     stored.EventTimestamp,
		Description:        stored.Description,
		PerformanceSummary: stored.PerformanceSummary,
	}
	if stored.PersonaSnapshot != nil {
		data, err := json.Marshal(stored.PersonaSnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to encode persona snapshot: %w", err)
		}
		row.PersonaSnapshot = data
	}

	_, err := s.client.NamedExecContext(ctx, `
		INSERT INTO progression_log (
			id, persona_id, event_timestamp, description,
			performance_summary, persona_snapshot
		) VALUES (
			:id, :persona_id, :event_timestamp, :description,
			:performance_summary, :persona_snapshot
		)`, row)
	if err != nil {
		return nil, fmt.Errorf("failed to append progression entry: %w", err)
	}

	return &stored, nil
}

// ListByPersona returns all evolution events for a persona, oldest first
func (s *ProgressionService) ListByPersona(ctx context.Context, personaID string) ([]*models.ProgressionEntry, error) {
	var rows []progressionRow
	err := s.client.SelectContext(ctx, &rows, `
		SELECT * FROM progression_log
		WHERE persona_id = $1
		ORDER BY event_timestamp`, personaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progression entries: %w", err)
	}

	entries := make([]*models.ProgressionEntry, 0, len(rows))
	for i := range rows {
		entry := &models.ProgressionEntry{
			ID:                 rows[i].ID,
			PersonaID:          rows[i].PersonaID,
			EventTimestamp:     rows[i].EventTimestamp,
			Description:        rows[i].Description,
			PerformanceSummary: rows[i].PerformanceSummary,
		}
		if len(rows[i].PersonaSnapshot) > 0 {
			var snapshot models.Persona
			if err := json.Unmarshal(rows[i].PersonaSnapshot, &snapshot); err != nil {
				return nil, fmt.Errorf("failed to decode persona snapshot: %w", err)
			}
			entry.PersonaSnapshot = &snapshot
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
