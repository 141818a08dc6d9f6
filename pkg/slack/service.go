package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/llm"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/models"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/runstate"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service is the Slack approval channel and notification sink.
// Nil-safe: with Slack disabled, approval requests are trivially "delivered"
// and the human decision is written into the run-status file by other means
// (operator tooling editing the document directly).
type Service struct {
	client       *Client
	runs         *runstate.Store
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack service. Returns nil if Token or Channel is
// empty, which disables Slack delivery without disabling the pipeline.
func NewService(cfg ServiceConfig, runs *runstate.Store) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		runs:         runs,
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, runs *runstate.Store, dashboardURL string) *Service {
	return &Service{
		client:       client,
		runs:         runs,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// DispatchApproval posts the approval request for a run. Returns whether the
// request is considered delivered: posting failures return false so the
// supervisor can mark the run failed_dispatch.
func (s *Service) DispatchApproval(ctx context.Context, run *models.RunStatus, summary string, previewRefs []string) bool {
	if s == nil {
		return true
	}

	blocks := BuildApprovalMessage(ApprovalRequestInput{
		RunID:       run.RunID,
		PersonaID:   run.PersonaID,
		Summary:     summary,
		PreviewRefs: previewRefs,
		Deadline:    run.ApprovalDeadline,
	}, s.dashboardURL)

	if err := s.client.PostMessage(ctx, blocks, "", 10*time.Second); err != nil {
		s.logger.Error("Failed to post approval request",
			"run_id", run.RunID,
			"error", err)
		return false
	}
	return true
}

// RecordDecision writes a human decision into the run-status document and
// confirms it in the approval thread. The confirmation is fail-open; the
// decision write is not.
func (s *Service) RecordDecision(ctx context.Context, runID string, approved bool, message string) (*models.RunStatus, error) {
	if s == nil {
		return nil, fmt.Errorf("slack service disabled; write the decision to the run-status document directly")
	}

	decision := config.RunStateRejected
	if approved {
		decision = config.RunStateApproved
	}

	run, err := s.runs.SetDecision(runID, decision, message)
	if err != nil {
		return nil, err
	}

	threadTS := s.findRunThread(ctx, runID)
	blocks := BuildRunCompletedMessage(RunCompletedInput{
		RunID:   runID,
		Outcome: string(decision),
	}, s.dashboardURL)
	if perr := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); perr != nil {
		s.logger.Warn("Failed to confirm decision in thread",
			"run_id", runID,
			"error", perr)
	}
	return run, nil
}

// NotifyRunCompleted sends a terminal run notification, threaded onto the
// approval message when it can be found. Fail-open: errors are logged, never
// returned.
func (s *Service) NotifyRunCompleted(ctx context.Context, input RunCompletedInput) {
	if s == nil {
		return
	}

	threadTS := input.ThreadTS
	if threadTS == "" {
		threadTS = s.findRunThread(ctx, input.RunID)
	}

	blocks := BuildRunCompletedMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send run notification",
			"run_id", input.RunID,
			"outcome", input.Outcome,
			"error", err)
	}
}

// NotifyProviderFallback implements the orchestrator's notification sink.
// Fire-and-forget: delivery failures are logged only.
func (s *Service) NotifyProviderFallback(ctx context.Context, event llm.FallbackEvent) {
	if s == nil {
		return
	}

	blocks := BuildFallbackMessage(event)
	if err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Error("Failed to send fallback notification",
			"failed_provider", event.FailedProvider,
			"failed_model", event.FailedModel,
			"error", err)
	}
}

// findRunThread locates the approval message for a run via its embedded
// marker. Best-effort: a miss means the notification posts unthreaded.
func (s *Service) findRunThread(ctx context.Context, runID string) string {
	threadTS, err := s.client.FindRunMessage(ctx, runID)
	if err != nil {
		s.logger.Warn("Failed to find approval thread",
			"run_id", runID,
			"error", err)
	}
	return threadTS
}
