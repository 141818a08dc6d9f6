// Package runstate persists per-run status documents, one JSON file per
// run_id. The supervisor and the approval bridge coordinate through these
// documents: the supervisor writes lifecycle states, the bridge writes the
// human decision.
package runstate

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
	// ErrRunNotFound is returned when no document exists for a run ID
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists is returned when creating a run whose ID is taken
	ErrRunExists = errors.New("run already exists")

	// ErrDecisionAlreadyRecorded is returned when a decision would overwrite
	// an earlier decision or timeout
	ErrDecisionAlreadyRecorded = errors.New("decision already recorded")
)

// Store reads and writes run status documents. Writes are atomic renames;
// per-run locks serialize concurrent updates on the same run.
type Store struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates the run-status directory if needed and returns a store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run-status directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: slog.Default().With("component", "runstate-store"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Create writes a new run document in the pending state. A run ID that is
// already on disk is rejected.
func (s *Store) Create(run *models.RunStatus) (*models.RunStatus, error) {
	if strings.TrimSpace(run.RunID) == "" {
		return nil, fmt.Errorf("run_id must not be empty")
	}

	lock := s.lockFor(run.RunID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(s.path(run.RunID)); err == nil {
		return nil, fmt.Errorf("run %s: %w", run.RunID, ErrRunExists)
	}

	stored := *run
	now := time.Now().UTC()
	if stored.Status == "" {
		stored.Status = config.RunStatePending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.LastUpdated = now

	if err := s.write(&stored); err != nil {
		return nil, err
	}
	s.logger.Info("Run created", "run_id", stored.RunID, "persona_id", stored.PersonaID)
	return &stored, nil
}

// Get returns the current run document
func (s *Store) Get(runID string) (*models.RunStatus, error) {
	lock := s.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()
	return s.read(runID)
}

// Update applies mutate to the current document and persists the result with
// a refreshed last_updated. The mutation runs under the per-run lock, so
// concurrent updates in this process serialize. Across processes the
// on-disk last_updated is the coordination point: if another replica
// persisted between our read and write, the mutation is re-applied to its
// document instead of clobbering it, so the last writer wins field-by-field
// through its mutate function, never with a stale full document.
func (s *Store) Update(runID string, mutate func(*models.RunStatus) error) (*models.RunStatus, error) {
	lock := s.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	for {
		run, err := s.read(runID)
		if err != nil {
			return nil, err
		}
		base := run.LastUpdated

		if err := mutate(run); err != nil {
			return nil, err
		}
		if !run.Status.IsValid() {
			return nil, fmt.Errorf("run %s: unknown state %q", runID, run.Status)
		}
		run.LastUpdated = time.Now().UTC()

		if current, err := s.read(runID); err == nil && !current.LastUpdated.Equal(base) {
			s.logger.Warn("Run document changed under update, re-applying mutation", "run_id", runID)
			continue
		}

		if err := s.write(run); err != nil {
			return nil, err
		}
		return run, nil
	}
}

// SetDecision records a human approval decision. Only a run still awaiting
// approval accepts a decision; a second decision or a decision after the
// timeout sweep is rejected.
func (s *Store) SetDecision(runID string, decision config.RunState, message string) (*models.RunStatus, error) {
	if !decision.IsDecision() {
		return nil, fmt.Errorf("run %s: %q is not a decision state", runID, decision)
	}

	run, err := s.Update(runID, func(run *models.RunStatus) error {
		if run.Status != config.RunStateAwaitingApproval {
			return fmt.Errorf("run %s in state %s: %w", runID, run.Status, ErrDecisionAlreadyRecorded)
		}
		run.Status = decision
		run.Message = message
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Decision recorded", "run_id", runID, "decision", string(decision))
	return run, nil
}

// ListAwaitingApproval returns run IDs still in awaiting_approval, oldest
// deadline first. The supervisor resumes polling these after a restart.
func (s *Store) ListAwaitingApproval() ([]*models.RunStatus, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run-status directory: %w", err)
	}

	var runs []*models.RunStatus
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		runID := strings.TrimSuffix(entry.Name(), ".json")
		run, err := s.Get(runID)
		if err != nil {
			s.logger.Warn("Skipping unreadable run document", "run_id", runID, "error", err)
			continue
		}
		if run.Status == config.RunStateAwaitingApproval {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].ApprovalDeadline.Before(runs[j].ApprovalDeadline)
	})
	return runs, nil
}

// ListIDs returns every run ID on disk, in directory order.
func (s *Store) ListIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run-status directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return ids, nil
}

// Delete removes a run document. Deleting a missing run is not an error so
// retention sweeps stay idempotent.
func (s *Store) Delete(runID string) error {
	lock := s.lockFor(runID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(s.path(runID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

func (s *Store) read(runID string) (*models.RunStatus, error) {
	data, err := os.ReadFile(s.path(runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}
	var run models.RunStatus
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &run, nil
}

func (s *Store) write(run *models.RunStatus) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.RunID, err)
	}
	if err := renameio.WriteFile(s.path(run.RunID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write run %s: %w", run.RunID, err)
	}
	return nil
}

func (s *Store) lockFor(runID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[runID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[runID] = lock
	}
	return lock
}
