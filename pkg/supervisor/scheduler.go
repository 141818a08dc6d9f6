package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// ErrAtCapacity signals that the concurrent-run limit is reached.
var ErrAtCapacity = errors.New("at maximum concurrent runs")

// Scheduler triggers production cycles on a jittered interval across a small
// pool of workers, bounded by the concurrent-run cap. Stop is graceful:
// workers finish the cycle they are driving before exiting.
type Scheduler struct {
	podID      string
	cfg        *config.SupervisorConfig
	supervisor *Supervisor
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	// Run cancel registry: run_id → cancel function
	mu         sync.RWMutex
	activeRuns map[string]context.CancelFunc
	started    bool
}

// NewScheduler creates a scheduler for the given supervisor.
func NewScheduler(podID string, cfg *config.SupervisorConfig, sup *Supervisor) *Scheduler {
	return &Scheduler{
		podID:      podID,
		cfg:        cfg,
		supervisor: sup,
		stopCh:     make(chan struct{}),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Start resumes any runs still awaiting approval, then spawns the worker
// goroutines. Safe to call multiple times; subsequent calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.started {
		slog.Warn("Scheduler already started, ignoring duplicate Start call", "pod_id", s.podID)
		return nil
	}
	s.started = true

	slog.Info("Starting scheduler", "pod_id", s.podID, "worker_count", s.cfg.WorkerCount)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.supervisor.ResumePolling(ctx); err != nil {
			slog.Error("Failed to resume polling runs", "pod_id", s.podID, "error", err)
		}
	}()

	for i := 0; i < s.cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", s.podID, i)
		s.wg.Add(1)
		go s.run(ctx, workerID)
	}
	return nil
}

// Stop signals all workers to stop and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	slog.Info("Stopping scheduler gracefully", "pod_id", s.podID)

	active := s.activeRunIDs()
	if len(active) > 0 {
		slog.Info("Waiting for active runs to complete", "count", len(active), "run_ids", active)
	}

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	slog.Info("Scheduler stopped gracefully", "pod_id", s.podID)
}

// CancelRun triggers context cancellation for a run driven by this pod.
// Returns true if the run was found and cancelled.
func (s *Scheduler) CancelRun(runID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cancel, ok := s.activeRuns[runID]; ok {
		cancel()
		return true
	}
	return false
}

// run is the main worker loop: wait one jittered interval, then drive one
// cycle if there is capacity.
func (s *Scheduler) run(ctx context.Context, workerID string) {
	defer s.wg.Done()

	log := slog.With("worker_id", workerID, "pod_id", s.podID)
	log.Info("Scheduler worker started")

	for {
		select {
		case <-s.stopCh:
			log.Info("Scheduler worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, scheduler worker shutting down")
			return
		default:
			if !s.sleep(s.cycleInterval()) {
				continue
			}
			if err := s.triggerCycle(ctx, workerID); err != nil {
				switch {
				case errors.Is(err, ErrAtCapacity), errors.Is(err, ErrNoEligiblePersona):
					// Quiet skip; the next interval retries.
				case errors.Is(err, context.Canceled):
				default:
					log.Error("Production cycle failed", "error", err)
				}
			}
		}
	}
}

// sleep waits for the given duration. Returns false if stop was signalled.
func (s *Scheduler) sleep(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// triggerCycle drives one production cycle under the concurrency cap.
func (s *Scheduler) triggerCycle(ctx context.Context, workerID string) error {
	if s.activeRunCount() >= s.cfg.MaxConcurrentRuns {
		return ErrAtCapacity
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Registered under a placeholder until RunCycle mints the run ID; the
	// registry exists for shutdown logging and CancelRun, both best-effort.
	token := fmt.Sprintf("%s-%s", workerID, uuid.NewString())
	s.registerRun(token, cancel)
	defer s.unregisterRun(token)

	result, err := s.supervisor.RunCycle(runCtx)
	if err != nil {
		return err
	}

	slog.Info("Production cycle finished",
		"worker_id", workerID,
		"run_id", result.RunID,
		"outcome", result.Outcome)
	return nil
}

// cycleInterval returns the trigger interval with jitter.
func (s *Scheduler) cycleInterval() time.Duration {
	base := s.cfg.CycleInterval
	jitter := s.cfg.CycleIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

func (s *Scheduler) registerRun(runID string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeRuns[runID] = cancel
}

func (s *Scheduler) unregisterRun(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeRuns, runID)
}

func (s *Scheduler) activeRunCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activeRuns)
}

func (s *Scheduler) activeRunIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.activeRuns))
	for id := range s.activeRuns {
		ids = append(ids, id)
	}
	return ids
}
