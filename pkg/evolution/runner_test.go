package evolution

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
)

type stubLister struct {
	personas []*models.Persona
	err      error
	calls    atomic.Int32
}

func (l *stubLister) ListPersonas(_ context.Context) ([]*models.Persona, error) {
	l.calls.Add(1)
	return l.personas, l.err
}

func TestRunner_RunOnceVisitsAllPersonas(t *testing.T) {
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"synthwave"}}
	fx := newEngineFixture(persona, stubReleases{}, stubMetrics{})
	lister := &stubLister{personas: []*models.Persona{persona}}

	runner := NewRunner(fx.engine, lister, time.Hour)
	runner.RunOnce(context.Background())

	// No metrics: the pass still mutates via the no-data rule.
	assert.Equal(t, 1, fx.personas.applied)
	assert.Contains(t, persona.StyleKeywords, "experimental")
}

func TestRunner_RunOnceToleratesListError(t *testing.T) {
	persona := &models.Persona{ID: "persona-1"}
	fx := newEngineFixture(persona, stubReleases{}, stubMetrics{})
	lister := &stubLister{err: errors.New("db down")}

	runner := NewRunner(fx.engine, lister, time.Hour)
	runner.RunOnce(context.Background())

	assert.Zero(t, fx.personas.applied)
}

func TestRunner_PeriodicPassAndGracefulStop(t *testing.T) {
	persona := &models.Persona{ID: "persona-1", StyleKeywords: []string{"a", "b"}}
	fx := newEngineFixture(persona, stubReleases{}, stubMetrics{})
	lister := &stubLister{personas: []*models.Persona{persona}}

	runner := NewRunner(fx.engine, lister, 20*time.Millisecond)
	runner.Start(context.Background())

	require.Eventually(t, func() bool {
		return lister.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	runner.Stop()
	callsAtStop := lister.calls.Load()

	// No further passes after Stop returns.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, callsAtStop, lister.calls.Load())
}

func TestRunner_StopIsIdempotent(t *testing.T) {
	fx := newEngineFixture(&models.Persona{ID: "p"}, stubReleases{}, stubMetrics{})
	runner := NewRunner(fx.engine, &stubLister{}, time.Hour)
	runner.Start(context.Background())
	runner.Stop()
	runner.Stop()
}
