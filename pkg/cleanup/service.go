// Package cleanup provides data retention for run documents and screenshots.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/runstate"
)

// RunRegistry is the slice of the run-status store the sweep needs.
type RunRegistry interface {
	ListIDs() ([]string, error)
	Get(runID string) (*models.RunStatus, error)
	Delete(runID string) error
}

var _ RunRegistry = (*runstate.Store)(nil)

// Service periodically enforces retention policies:
//   - Deletes terminal run-status documents past the run retention
//   - Removes step screenshots past their TTL
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	config        *config.RetentionConfig
	runs          RunRegistry
	screenshotDir string
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service. An empty screenshotDir disables
// the screenshot sweep.
func NewService(cfg *config.RetentionConfig, runs RunRegistry, screenshotDir string) *Service {
	if cfg == nil {
		cfg = config.DefaultRetentionConfig()
	}
	return &Service{
		config:        cfg,
		runs:          runs,
		screenshotDir: screenshotDir,
		logger:        slog.Default().With("component", "cleanup"),
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Cleanup service started",
		"run_retention", s.config.RunRetention,
		"screenshot_ttl", s.config.ScreenshotTTL,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}

// RunAll performs one full sweep.
func (s *Service) RunAll(ctx context.Context) {
	s.sweepTerminalRuns(ctx)
	s.sweepScreenshots()
}

// sweepTerminalRuns deletes run documents that reached a terminal state
// longer ago than the retention window. Active runs are never touched.
func (s *Service) sweepTerminalRuns(ctx context.Context) {
	ids, err := s.runs.ListIDs()
	if err != nil {
		s.logger.Error("Retention: failed to list runs", "error", err)
		return
	}

	cutoff := time.Now().UTC().Add(-s.config.RunRetention)
	deleted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		run, err := s.runs.Get(id)
		if err != nil {
			s.logger.Warn("Retention: skipping unreadable run", "run_id", id, "error", err)
			continue
		}
		if !run.Status.IsTerminal() || run.LastUpdated.After(cutoff) {
			continue
		}
		if err := s.runs.Delete(id); err != nil {
			s.logger.Error("Retention: failed to delete run", "run_id", id, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Retention: deleted terminal runs", "count", deleted)
	}
}

func (s *Service) sweepScreenshots() {
	if s.screenshotDir == "" {
		return
	}
	entries, err := os.ReadDir(s.screenshotDir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.logger.Error("Retention: failed to read screenshot directory", "error", err)
		return
	}

	cutoff := time.Now().Add(-s.config.ScreenshotTTL)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.screenshotDir, entry.Name())); err != nil {
			s.logger.Error("Retention: failed to delete screenshot", "file", entry.Name(), "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Retention: deleted stale screenshots", "count", deleted)
	}
}
