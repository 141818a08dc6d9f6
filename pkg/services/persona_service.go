package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/database"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// PersonaService manages artist persona lifecycle and evolution persistence.
// Mutations to a single persona are serialized through a per-persona lock so
// concurrent evolution passes cannot interleave read-modify-write cycles.
type PersonaService struct {
	client *database.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPersonaService creates a new PersonaService
func NewPersonaService(client *database.Client) *PersonaService {
	return &PersonaService{
		client: client,
		locks:  make(map[string]*sync.Mutex),
	}
}

// personaRow maps the personas table; JSONB columns carry the slice and map
// fields of models.Persona.
type personaRow struct {
	ID                 string          `db:"id"`
	DisplayName        string          `db:"display_name"`
	PrimaryGenre       string          `db:"primary_genre"`
	Subgenres          json.RawMessage `db:"subgenres"`
	StyleKeywords      json.RawMessage `db:"style_keywords"`
	PersonalityTraits  json.RawMessage `db:"personality_traits"`
	VoiceDescriptor    string          `db:"voice_descriptor"`
	AudienceDescriptor string          `db:"audience_descriptor"`
	VisualPrompt       string          `db:"visual_prompt"`
	EvolutionLog       json.RawMessage `db:"evolution_log"`
	PromptHistory      json.RawMessage `db:"prompt_history"`
	Settings           json.RawMessage `db:"settings"`
	CreatedAt          time.Time       `db:"created_at"`
	LastProducedAt     *time.Time      `db:"last_produced_at"`
}

func (r *personaRow) toModel() (*models.Persona, error) {
	p := &models.Persona{
		ID:                 r.ID,
		DisplayName:        r.DisplayName,
		PrimaryGenre:       r.PrimaryGenre,
		VoiceDescriptor:    r.VoiceDescriptor,
		AudienceDescriptor: r.AudienceDescriptor,
		VisualPrompt:       r.VisualPrompt,
		CreatedAt:          r.CreatedAt,
		LastProducedAt:     r.LastProducedAt,
	}
	for _, col := range []struct {
		raw  json.RawMessage
		dest any
	}{
		{r.Subgenres, &p.Subgenres},
		{r.StyleKeywords, &p.StyleKeywords},
		{r.PersonalityTraits, &p.PersonalityTraits},
		{r.EvolutionLog, &p.EvolutionLog},
		{r.PromptHistory, &p.PromptHistory},
		{r.Settings, &p.Settings},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode persona %s: %w", r.ID, err)
		}
	}
	return p, nil
}

func marshalColumn(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode persona column: %w", err)
	}
	return data, nil
}

// CreatePersona validates and stores a new persona. An empty ID gets a
// generated ULID.
func (s *PersonaService) CreatePersona(ctx context.Context, req models.CreatePersonaRequest) (*models.Persona, error) {
	if strings.TrimSpace(req.DisplayName) == "" {
		return nil, NewValidationError("display_name", "must not be empty")
	}
	if strings.TrimSpace(req.PrimaryGenre) == "" {
		return nil, NewValidationError("primary_genre", "must not be empty")
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = strings.ToLower(ulid.Make().String())
	}

	persona := &models.Persona{
		ID:                 id,
		DisplayName:        req.DisplayName,
		PrimaryGenre:       req.PrimaryGenre,
		Subgenres:          req.Subgenres,
		StyleKeywords:      req.StyleKeywords,
		PersonalityTraits:  req.PersonalityTraits,
		VoiceDescriptor:    req.VoiceDescriptor,
		AudienceDescriptor: req.AudienceDescriptor,
		VisualPrompt:       req.VisualPrompt,
		Settings:           req.Settings,
		CreatedAt:          time.Now().UTC(),
	}

	if exists, err := s.exists(ctx, id); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("persona %s: %w", id, ErrAlreadyExists)
	}

	if err := s.insert(ctx, persona); err != nil {
		return nil, err
	}
	return persona, nil
}

func (s *PersonaService) exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.client.GetContext(ctx, &count, `SELECT count(*) FROM personas WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("failed to check persona existence: %w", err)
	}
	return count > 0, nil
}

func (s *PersonaService) insert(ctx context.Context, p *models.Persona) error {
	row, err := rowFromModel(p)
	if err != nil {
		return err
	}
	_, err = s.client.NamedExecContext(ctx, `
		INSERT INTO personas (
			id, display_name, primary_genre, subgenres, style_keywords,
			personality_traits, voice_descriptor, audience_descriptor,
			visual_prompt, evolution_log, prompt_history, settings,
			created_at, last_produced_at
		) VALUES (
			:id, :display_name, :primary_genre, :subgenres, :style_keywords,
			:personality_traits, :voice_descriptor, :audience_descriptor,
			:visual_prompt, :evolution_log, :prompt_history, :settings,
			:created_at, :last_produced_at
		)`, row)
	if err != nil {
		return fmt.Errorf("failed to create persona: %w", err)
	}
	return nil
}

func rowFromModel(p *models.Persona) (*personaRow, error) {
	row := &personaRow{
		ID:                 p.ID,
		DisplayName:        p.DisplayName,
		PrimaryGenre:       p.PrimaryGenre,
		VoiceDescriptor:    p.VoiceDescriptor,
		AudienceDescriptor: p.AudienceDescriptor,
		VisualPrompt:       p.VisualPrompt,
		CreatedAt:          p.CreatedAt,
		LastProducedAt:     p.LastProducedAt,
	}
	var err error
	if row.Subgenres, err = marshalColumn(orEmpty(p.Subgenres)); err != nil {
		return nil, err
	}
	if row.StyleKeywords, err = marshalColumn(orEmpty(p.StyleKeywords)); err != nil {
		return nil, err
	}
	if row.PersonalityTraits, err = marshalColumn(orEmpty(p.PersonalityTraits)); err != nil {
		return nil, err
	}
	if row.EvolutionLog, err = marshalColumn(orEmptyLog(p.EvolutionLog)); err != nil {
		return nil, err
	}
	if row.PromptHistory, err = marshalColumn(orEmptyHistory(p.PromptHistory)); err != nil {
		return nil, err
	}
	settings := p.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	if row.Settings, err = marshalColumn(settings); err != nil {
		return nil, err
	}
	return row, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyLog(s []models.EvolutionLogEntry) []models.EvolutionLogEntry {
	if s == nil {
		return []models.EvolutionLogEntry{}
	}
	return s
}

func orEmptyHistory(s []models.PromptHistoryEntry) []models.PromptHistoryEntry {
	if s == nil {
		return []models.PromptHistoryEntry{}
	}
	return s
}

// GetPersona retrieves a persona by ID
func (s *PersonaService) GetPersona(ctx context.Context, id string) (*models.Persona, error) {
	var row personaRow
	err := s.client.GetContext(ctx, &row, `SELECT * FROM personas WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("persona %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get persona: %w", err)
	}
	return row.toModel()
}

// ListPersonas returns all personas ordered by creation time
func (s *PersonaService) ListPersonas(ctx context.Context) ([]*models.Persona, error) {
	var rows []personaRow
	if err := s.client.SelectContext(ctx, &rows, `SELECT * FROM personas ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	personas := make([]*models.Persona, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, nil
}

// SelectLeastRecentlyProduced returns the persona whose last production cycle
// is oldest; never-produced personas rank first. Ties break by creation time.
func (s *PersonaService) SelectLeastRecentlyProduced(ctx context.Context) (*models.Persona, error) {
	var row personaRow
	err := s.client.GetContext(ctx, &row, `
		SELECT * FROM personas
		ORDER BY last_produced_at ASC NULLS FIRST, created_at ASC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no personas defined: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select persona: %w", err)
	}
	return row.toModel()
}

// TouchProduced marks a persona as just having completed a production cycle
func (s *PersonaService) TouchProduced(ctx context.Context, id string) error {
	res, err := s.client.ExecContext(ctx,
		`UPDATE personas SET last_produced_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch persona: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("persona %s: %w", id, ErrNotFound)
	}
	return nil
}

// ApplyEvolution runs mutate against the current persona state under the
// per-persona lock and persists the result. The evolution log and prompt
// history are append-only: a mutation that shrinks either is rejected.
func (s *PersonaService) ApplyEvolution(ctx context.Context, id string, mutate func(*models.Persona) error) (*models.Persona, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	persona, err := s.GetPersona(ctx, id)
	if err != nil {
		return nil, err
	}

	logLen := len(persona.EvolutionLog)
	historyLen := len(persona.PromptHistory)

	if err := mutate(persona); err != nil {
		return nil, err
	}

	if len(persona.EvolutionLog) < logLen || len(persona.PromptHistory) < historyLen {
		return nil, fmt.Errorf("persona %s: %w", id, ErrHistoryTruncated)
	}

	row, err := rowFromModel(persona)
	if err != nil {
		return nil, err
	}
	_, err = s.client.NamedExecContext(ctx, `
		UPDATE personas SET
			display_name = :display_name,
			primary_genre = :primary_genre,
			subgenres = :subgenres,
			style_keywords = :style_keywords,
			personality_traits = :personality_traits,
			voice_descriptor = :voice_descriptor,
			audience_descriptor = :audience_descriptor,
			visual_prompt = :visual_prompt,
			evolution_log = :evolution_log,
			prompt_history = :prompt_history,
			settings = :settings
		WHERE id = :id`, row)
	if err != nil {
		return nil, fmt.Errorf("failed to persist evolved persona: %w", err)
	}
	return persona, nil
}

func (s *PersonaService) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

