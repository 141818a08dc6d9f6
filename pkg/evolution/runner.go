package evolution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

// PersonaLister enumerates personas for the scheduled pass.
type PersonaLister interface {
	ListPersonas(ctx context.Context) ([]*models.Persona, error)
}

// Runner executes a periodic evolution pass over all personas. One pass
// visits every persona independently; a failing persona is logged and
// skipped, it never aborts the pass.
type Runner struct {
	engine   *Engine
	personas PersonaLister
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a scheduled runner over the engine.
func NewRunner(engine *Engine, personas PersonaLister, interval time.Duration) *Runner {
	return &Runner{
		engine:   engine,
		personas: personas,
		interval: interval,
		logger:   slog.Default().With("component", "evolution-runner"),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background loop. The first pass runs after one full
// interval so a restart does not immediately re-mutate personas evolved
// moments before shutdown.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
	r.logger.Info("Evolution runner started", "interval", r.interval)
}

// Stop terminates the loop and waits for an in-flight pass to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	r.logger.Info("Evolution runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce evolves every persona once and reports per-persona outcomes.
func (r *Runner) RunOnce(ctx context.Context) {
	personas, err := r.personas.ListPersonas(ctx)
	if err != nil {
		r.logger.Error("Failed to list personas for evolution pass", "error", err)
		return
	}

	for _, p := range personas {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		report, err := r.engine.EvolvePersona(ctx, p.ID)
		if err != nil {
			r.logger.Error("Persona evolution failed", "persona_id", p.ID, "error", err)
			continue
		}
		r.logger.Info("Persona evolved",
			"persona_id", p.ID,
			"action", report.Action,
			"releases_scored", len(report.Scored))
	}
}
