// Package supervisor drives autonomous production cycles: pick a persona,
// adapt its generation parameters, produce track and video, and shepherd the
// result through human approval into a released state.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/llm"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/release"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/runstate"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/services"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/uigen"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/video"
)

// ErrNoEligiblePersona is returned when no persona is available to produce.
var ErrNoEligiblePersona = errors.New("no eligible persona")

// timeoutNotes is the exact note recorded when approval polling exceeds its budget.
const timeoutNotes = "Timeout waiting for approval"

// Cycle outcomes.
const (
	OutcomeReleased         = "released"
	OutcomeRejected         = "rejected"
	OutcomeTimedOut         = "timed_out"
	OutcomeFailedGeneration = "failed_generation"
	OutcomeFailedDispatch   = "failed_dispatch"
)

// PersonaSource selects and touches personas. The default selection policy is
// least-recently-produced; alternative policies plug in behind this interface.
type PersonaSource interface {
	SelectLeastRecentlyProduced(ctx context.Context) (*models.Persona, error)
	TouchProduced(ctx context.Context, id string) error
}

// PromptAdapter turns an adaptation prompt into model output.
type PromptAdapter interface {
	Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error)
}

// TrackGenerator produces one track from a generation intent.
type TrackGenerator interface {
	Generate(ctx context.Context, intent uigen.Intent) (*uigen.GenerationResult, error)
}

// ClipSelector picks video clips for a release.
type ClipSelector interface {
	SelectClips(ctx context.Context, req video.SelectionRequest) ([]video.Clip, error)
}

// ApprovalChannel dispatches an approval request to a human. The channel must
// later cause the decision to land in the run-status document. Dispatch
// reports delivery success only.
type ApprovalChannel interface {
	DispatchApproval(ctx context.Context, run *models.RunStatus, summary string, previewRefs []string) bool
}

// Supervisor executes production cycles as a sequential state machine. One
// run maps to one release; the run ID doubles as the release ID, which makes
// the post-approval steps idempotent.
type Supervisor struct {
	cfg       *config.SupervisorConfig
	personas  PersonaSource
	adapter   PromptAdapter
	tracks    TrackGenerator
	clips     ClipSelector
	runs      *runstate.Store
	releases  *release.Store
	approvals ApprovalChannel
	logger    *slog.Logger
}

// New wires a supervisor over its collaborators.
func New(cfg *config.SupervisorConfig, personas PersonaSource, adapter PromptAdapter, tracks TrackGenerator, clips ClipSelector, runs *runstate.Store, releases *release.Store, approvals ApprovalChannel) *Supervisor {
	if cfg == nil {
		cfg = config.DefaultSupervisorConfig()
	}
	return &Supervisor{
		cfg:       cfg,
		personas:  personas,
		adapter:   adapter,
		tracks:    tracks,
		clips:     clips,
		runs:      runs,
		releases:  releases,
		approvals: approvals,
		logger:    slog.Default().With("component", "supervisor"),
	}
}

// CycleResult is the terminal record of one production cycle.
type CycleResult struct {
	RunID   string
	Outcome string
	Release *models.Release
}

// RunCycle executes one full production cycle and returns its terminal
// result. Step failures after generation are persisted to the run-status and
// release documents rather than returned as errors; an error return means the
// cycle could not leave a durable trace (no persona, adaptation failure, or
// store I/O failure).
func (s *Supervisor) RunCycle(ctx context.Context) (*CycleResult, error) {
	runID := strings.ToLower(ulid.Make().String())
	log := s.logger.With("run_id", runID)

	persona, err := s.personas.SelectLeastRecentlyProduced(ctx)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, ErrNoEligiblePersona
		}
		return nil, fmt.Errorf("persona selection failed: %w", err)
	}
	log = log.With("persona_id", persona.ID)
	log.Info("Cycle started", "persona", persona.DisplayName)

	params, err := s.adaptParameters(ctx, persona)
	if err != nil {
		// Fatal for the run: nothing was generated, nothing to persist.
		return nil, fmt.Errorf("parameter adaptation failed: %w", err)
	}

	track, err := s.generateTrack(ctx, persona, params)
	if err != nil {
		return s.failBeforeDispatch(ctx, runID, persona, params, OutcomeFailedGeneration,
			fmt.Sprintf("track generation failed: %v", err))
	}

	clips, err := s.clips.SelectClips(ctx, video.SelectionRequest{
		Persona:   persona,
		ReleaseID: runID,
		Keywords:  params.VideoKeywords,
		Audio: video.AudioFeatures{
			Style:        params.Style,
			Instrumental: params.Lyrics == "",
		},
	})
	if err != nil {
		return s.failBeforeDispatch(ctx, runID, persona, params, OutcomeFailedGeneration,
			fmt.Sprintf("video selection failed: %v", err))
	}

	if err := s.personas.TouchProduced(ctx, persona.ID); err != nil {
		log.Warn("Failed to touch persona production timestamp", "error", err)
	}

	if _, err := s.releases.Initiate(release.InitiateRequest{
		ReleaseID: runID,
		PersonaID: persona.ID,
		SongMeta: models.SongMeta{
			Title:   params.Title,
			Style:   params.Style,
			Model:   params.Model,
			SongID:  track.SongID,
			SongURL: track.URL,
		},
	}); err != nil {
		return nil, fmt.Errorf("release initiation failed: %w", err)
	}
	if _, err := s.releases.AdvanceTo(runID, config.ReleaseStatusPreviewReady, "Preview assembled",
		release.WithPreviewPath(track.URL)); err != nil {
		return nil, err
	}
	if _, err := s.releases.AdvanceTo(runID, config.ReleaseStatusPendingApproval, "Awaiting approval"); err != nil {
		return nil, err
	}

	run, err := s.runs.Create(&models.RunStatus{
		RunID:            runID,
		PersonaID:        persona.ID,
		TrackRef:         track.URL,
		VideoRef:         clipRefs(clips),
		Status:           config.RunStatePending,
		ApprovalDeadline: time.Now().UTC().Add(s.cfg.ApprovalTimeout),
	})
	if err != nil {
		return s.failAfterRelease(runID, OutcomeFailedDispatch,
			fmt.Sprintf("run status creation failed: %v", err))
	}

	summary := fmt.Sprintf("%s — %q (%s)", persona.DisplayName, params.Title, params.Style)
	if !s.approvals.DispatchApproval(ctx, run, summary, previewRefs(track, clips)) {
		if _, uerr := s.runs.Update(runID, func(r *models.RunStatus) error {
			r.Status = config.RunStateFailed
			r.Message = "approval dispatch failed"
			return nil
		}); uerr != nil {
			log.Error("Failed to persist dispatch failure", "error", uerr)
		}
		return s.failAfterRelease(runID, OutcomeFailedDispatch, "approval dispatch failed")
	}

	if _, err := s.runs.Update(runID, func(r *models.RunStatus) error {
		r.Status = config.RunStateAwaitingApproval
		return nil
	}); err != nil {
		return s.failAfterRelease(runID, OutcomeFailedDispatch,
			fmt.Sprintf("run status update failed: %v", err))
	}
	log.Info("Approval dispatched", "deadline", run.ApprovalDeadline)

	decision, err := s.PollApproval(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.finalize(runID, decision)
}

// adaptParameters runs the prompt-adaptation template through the LLM
// orchestrator and parses the resulting recipe.
func (s *Supervisor) adaptParameters(ctx context.Context, persona *models.Persona) (*AdaptedParams, error) {
	text, err := s.adapter.Generate(ctx, buildAdaptationPrompt(persona), llm.GenerateParams{
		MaxTokens:   1024,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, err
	}
	return parseAdaptedParams(text)
}

// generateTrack drives the browser generation loop. Any non-completed result
// is a generation failure.
func (s *Supervisor) generateTrack(ctx context.Context, persona *models.Persona, params *AdaptedParams) (*uigen.GenerationResult, error) {
	mode := config.LyricsModeAuto
	if params.Lyrics != "" {
		mode = config.LyricsModeCustom
	}
	result, err := s.tracks.Generate(ctx, uigen.Intent{
		Lyrics:     params.Lyrics,
		Style:      params.Style,
		Model:      params.Model,
		Title:      params.Title,
		Persona:    persona.DisplayName,
		LyricsMode: mode,
	})
	if err != nil {
		return nil, err
	}
	if result.Status != uigen.StatusCompleted {
		return nil, fmt.Errorf("generation ended in %s: %s", result.Status, result.Error)
	}
	return result, nil
}

// PollApproval reads the run-status document at the configured interval until
// a decision lands or the approval deadline passes. A timeout converts the
// run to timed_out, which downstream treats as a rejection.
func (s *Supervisor) PollApproval(ctx context.Context, runID string) (config.RunState, error) {
	ticker := time.NewTicker(s.cfg.ApprovalPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			run, err := s.runs.Get(runID)
			if err != nil {
				return "", err
			}
			if run.Status.IsDecision() {
				return run.Status, nil
			}
			if time.Now().After(run.ApprovalDeadline) {
				if _, err := s.runs.Update(runID, func(r *models.RunStatus) error {
					r.Status = config.RunStateTimedOut
					r.Message = timeoutNotes
					return nil
				}); err != nil {
					return "", err
				}
				s.logger.Warn("Approval timed out", "run_id", runID)
				return config.RunStateTimedOut, nil
			}
		}
	}
}

// ResumePolling restarts approval polling for every run still awaiting a
// decision, typically after a process restart. Each resumed run completes its
// cycle to a terminal release state.
func (s *Supervisor) ResumePolling(ctx context.Context) ([]*CycleResult, error) {
	runs, err := s.runs.ListAwaitingApproval()
	if err != nil {
		return nil, err
	}

	var results []*CycleResult
	for _, run := range runs {
		s.logger.Info("Resuming approval polling", "run_id", run.RunID)
		decision, err := s.PollApproval(ctx, run.RunID)
		if err != nil {
			return results, err
		}
		result, err := s.finalize(run.RunID, decision)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// finalize converts a decision into the terminal release state.
func (s *Supervisor) finalize(runID string, decision config.RunState) (*CycleResult, error) {
	switch decision {
	case config.RunStateApproved:
		if err := s.saveApprovedContent(runID); err != nil {
			return nil, err
		}
		rel, err := s.triggerRelease(runID)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Release shipped", "run_id", runID)
		return &CycleResult{RunID: runID, Outcome: OutcomeReleased, Release: rel}, nil

	case config.RunStateRejected:
		rel, err := s.rejectRelease(runID, "Rejected by approver")
		if err != nil {
			return nil, err
		}
		return &CycleResult{RunID: runID, Outcome: OutcomeRejected, Release: rel}, nil

	case config.RunStateTimedOut:
		rel, err := s.rejectRelease(runID, timeoutNotes)
		if err != nil {
			return nil, err
		}
		return &CycleResult{RunID: runID, Outcome: OutcomeTimedOut, Release: rel}, nil

	default:
		return nil, fmt.Errorf("run %s: unexpected decision state %q", runID, decision)
	}
}

// saveApprovedContent promotes the approved release toward upload. Idempotent
// by run ID: a release already past approval is left alone.
func (s *Supervisor) saveApprovedContent(runID string) error {
	status, err := s.releases.GetStatus(runID)
	if err != nil {
		return err
	}
	if status != config.ReleaseStatusPendingApproval && status != config.ReleaseStatusApproved {
		return nil
	}
	if status == config.ReleaseStatusPendingApproval {
		if _, err := s.releases.AdvanceTo(runID, config.ReleaseStatusApproved, "Approved by approver"); err != nil {
			return err
		}
	}
	_, err = s.releases.AdvanceTo(runID, config.ReleaseStatusPendingUpload, "Approved content saved")
	return err
}

// triggerRelease ships the release. Idempotent by run ID.
func (s *Supervisor) triggerRelease(runID string) (*models.Release, error) {
	status, err := s.releases.GetStatus(runID)
	if err != nil {
		return nil, err
	}
	if status == config.ReleaseStatusUploaded {
		return s.releases.Get(runID)
	}
	return s.releases.AdvanceTo(runID, config.ReleaseStatusUploaded, "Release triggered",
		release.WithUploadDetails(map[string]any{
			"run_id":      runID,
			"released_at": time.Now().UTC().Format(time.RFC3339),
		}))
}

// rejectRelease moves a pending release to rejected. A release already
// terminal is returned as-is, keeping resumed runs idempotent.
func (s *Supervisor) rejectRelease(runID, notes string) (*models.Release, error) {
	status, err := s.releases.GetStatus(runID)
	if err != nil {
		return nil, err
	}
	if status.IsTerminal() {
		return s.releases.Get(runID)
	}
	return s.releases.AdvanceTo(runID, config.ReleaseStatusRejected, notes)
}

// failBeforeDispatch records a generation-stage failure: a failed release
// document plus a failed run document so the cycle leaves a durable trace.
func (s *Supervisor) failBeforeDispatch(_ context.Context, runID string, persona *models.Persona, params *AdaptedParams, outcome, message string) (*CycleResult, error) {
	rel, err := s.releases.Initiate(release.InitiateRequest{
		ReleaseID: runID,
		PersonaID: persona.ID,
		SongMeta:  models.SongMeta{Title: params.Title, Style: params.Style},
	})
	if err != nil {
		return nil, fmt.Errorf("%s; release initiation also failed: %w", message, err)
	}
	if rel, err = s.releases.AdvanceTo(runID, config.ReleaseStatusFailed, message); err != nil {
		return nil, err
	}

	if _, err := s.runs.Create(&models.RunStatus{
		RunID:     runID,
		PersonaID: persona.ID,
		Status:    config.RunStateFailed,
		Message:   message,
	}); err != nil {
		s.logger.Error("Failed to persist run failure", "run_id", runID, "error", err)
	}

	s.logger.Error("Cycle failed", "run_id", runID, "outcome", outcome, "message", message)
	return &CycleResult{RunID: runID, Outcome: outcome, Release: rel}, nil
}

// failAfterRelease marks an already-initiated release failed.
func (s *Supervisor) failAfterRelease(runID, outcome, message string) (*CycleResult, error) {
	rel, err := s.releases.AdvanceTo(runID, config.ReleaseStatusFailed, message)
	if err != nil {
		return nil, err
	}
	s.logger.Error("Cycle failed", "run_id", runID, "outcome", outcome, "message", message)
	return &CycleResult{RunID: runID, Outcome: outcome, Release: rel}, nil
}

func clipRefs(clips []video.Clip) string {
	urls := make([]string, 0, len(clips))
	for _, c := range clips {
		urls = append(urls, c.URL)
	}
	return strings.Join(urls, ",")
}

func previewRefs(track *uigen.GenerationResult, clips []video.Clip) []string {
	refs := []string{track.URL}
	for _, c := range clips {
		refs = append(refs, c.URL)
	}
	return refs
}
