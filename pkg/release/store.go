// Package release implements the durable release state store: one JSON
// document per release, a fixed transition table, and an append-only status
// history.
package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

var (
	// ErrReleaseNotFound is returned when no document exists for a release ID
	ErrReleaseNotFound = errors.New("release not found")

	// ErrReleaseExists is returned when initiating a release whose ID is taken
	ErrReleaseExists = errors.New("release already exists")
)

// InvalidTransitionError reports a rejected status transition. The release
// document is left untouched when it is returned.
type InvalidTransitionError struct {
	ReleaseID string
	From      config.ReleaseStatus
	To        config.ReleaseStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("release %s: invalid transition %s -> %s", e.ReleaseID, e.From, e.To)
}

// transitions is the full set of legal status edges. failed is reachable from
// every non-terminal state; uploaded, rejected, and failed are sinks.
var transitions = map[config.ReleaseStatus][]config.ReleaseStatus{
	config.ReleaseStatusPendingPreview:  {config.ReleaseStatusPreviewReady, config.ReleaseStatusFailed},
	config.ReleaseStatusPreviewReady:    {config.ReleaseStatusPendingApproval, config.ReleaseStatusFailed},
	config.ReleaseStatusPendingApproval: {config.ReleaseStatusApproved, config.ReleaseStatusRejected, config.ReleaseStatusFailed},
	config.ReleaseStatusApproved:        {config.ReleaseStatusPendingUpload, config.ReleaseStatusFailed},
	config.ReleaseStatusPendingUpload:   {config.ReleaseStatusUploaded, config.ReleaseStatusFailed},
	config.ReleaseStatusUploaded:        {},
	config.ReleaseStatusRejected:        {},
	config.ReleaseStatusFailed:          {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to config.ReleaseStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Store persists release documents as one JSON file per release. Writes go
// through an atomic rename so a crash never leaves a half-written document.
// Per-release locks serialize concurrent transitions on the same release.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the release directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create release directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "release-store"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// InitiateRequest contains fields for creating a new release document.
type InitiateRequest struct {
	ReleaseID        string
	PersonaID        string
	SongMeta         models.SongMeta
	OriginalSongPath string
}

// Initiate creates a release document in pending_preview with one synthetic
// history entry recording the initiation.
func (s *Store) Initiate(req InitiateRequest) (*models.Release, error) {
	if strings.TrimSpace(req.ReleaseID) == "" {
		return nil, fmt.Errorf("release_id must not be empty")
	}

	lock := s.lockFor(req.ReleaseID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.path(req.ReleaseID)); err == nil {
		return nil, fmt.Errorf("release %s: %w", req.ReleaseID, ErrReleaseExists)
	}

	now := time.Now().UTC()
	rel := &models.Release{
		ReleaseID:        req.ReleaseID,
		PersonaID:        req.PersonaID,
		CreatedAt:        now,
		Status:           config.ReleaseStatusPendingPreview,
		SongMeta:         req.SongMeta,
		OriginalSongPath: req.OriginalSongPath,
		History: []models.StatusChange{{
			Timestamp: now,
			ToStatus:  config.ReleaseStatusPendingPreview,
			Notes:     "Release initiated",
		}},
	}

	if err := s.write(rel); err != nil {
		return nil, err
	}
	s.logger.Info("Release initiated", "release_id", rel.ReleaseID, "persona_id", rel.PersonaID)
	return rel, nil
}

// TransitionOption mutates the release document inside a transition.
type TransitionOption func(*models.Release, *models.StatusChange)

// WithDetails attaches structured details to the history entry.
func WithDetails(details map[string]any) TransitionOption {
	return func(_ *models.Release, change *models.StatusChange) {
		change.Details = details
	}
}

// WithPreviewPath records the preview artifact path.
func WithPreviewPath(path string) TransitionOption {
	return func(rel *models.Release, _ *models.StatusChange) {
		rel.PreviewPath = path
	}
}

// WithUploadPath records the upload artifact path.
func WithUploadPath(path string) TransitionOption {
	return func(rel *models.Release, _ *models.StatusChange) {
		rel.UploadPath = path
	}
}

// WithUploadDetails records platform upload results.
func WithUploadDetails(details map[string]any) TransitionOption {
	return func(rel *models.Release, _ *models.StatusChange) {
		rel.UploadDetails = details
	}
}

// AdvanceTo moves a release to the requested status, appending exactly one
// history entry. Illegal edges return *InvalidTransitionError and leave the
// document untouched. A transition to failed records notes as the error.
func (s *Store) AdvanceTo(releaseID string, to config.ReleaseStatus, notes string, opts ...TransitionOption) (*models.Release, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("unknown release status %q", to)
	}

	lock := s.lockFor(releaseID)
	lock.Lock()
	defer lock.Unlock()

	rel, err := s.read(releaseID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(rel.Status, to) {
		return nil, &InvalidTransitionError{ReleaseID: releaseID, From: rel.Status, To: to}
	}

	change := models.StatusChange{
		Timestamp:  time.Now().UTC(),
		FromStatus: rel.Status,
		ToStatus:   to,
		Notes:      notes,
	}
	for _, opt := range opts {
		opt(rel, &change)
	}

	rel.Status = to
	rel.History = append(rel.History, change)
	if to == config.ReleaseStatusFailed {
		rel.Error = notes
	}

	if err := s.write(rel); err != nil {
		return nil, err
	}
	s.logger.Info("Release transitioned",
		"release_id", releaseID,
		"from", string(change.FromStatus),
		"to", string(to))
	return rel, nil
}

// Get returns the current release document
func (s *Store) Get(releaseID string) (*models.Release, error) {
	lock := s.lockFor(releaseID)
	lock.Lock()
	defer lock.Unlock()
	return s.read(releaseID)
}

// GetStatus returns the current status of a release
func (s *Store) GetStatus(releaseID string) (config.ReleaseStatus, error) {
	rel, err := s.Get(releaseID)
	if err != nil {
		return "", err
	}
	return rel.Status, nil
}

// ListIDs returns all known release IDs in lexical order
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read release directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) path(releaseID string) string {
	return filepath.Join(s.dir, releaseID+".json")
}

func (s *Store) read(releaseID string) (*models.Release, error) {
	data, err := os.ReadFile(s.path(releaseID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("release %s: %w", releaseID, ErrReleaseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read release %s: %w", releaseID, err)
	}
	var rel models.Release
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("failed to decode release %s: %w", releaseID, err)
	}
	return &rel, nil
}

func (s *Store) write(rel *models.Release) error {
	data, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode release %s: %w", rel.ReleaseID, err)
	}
	if err := renameio.WriteFile(s.path(rel.ReleaseID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write release %s: %w", rel.ReleaseID, err)
	}
	return nil
}

func (s *Store) lockFor(releaseID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[releaseID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[releaseID] = lock
	}
	return lock
}
