package uigen

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/browser"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// StepResult is the outcome of one validated step, including everything the
// caller needs to diagnose a permanent failure.
type StepResult struct {
	Approved       bool
	Action         browser.Action
	Result         *browser.ActionResult
	Feedback       string
	ScreenshotPath string

	// response keeps the raw validator verdict so the repair loop can chain
	// suggested fixes.
	response *ValidatorResponse
}

// Loop executes action plans step by step, validating each step and applying
// validator-suggested repairs up to a bounded number of rounds.
type Loop struct {
	executor  *browser.Executor
	validator Validator
	cfg       *config.GenerationConfig
	logger    *slog.Logger

	screenshotSeq atomic.Int64
}

// NewLoop wires the feedback loop. The executor carries the per-action
// deadline; the validator deadline comes from cfg.
func NewLoop(driver browser.Driver, validator Validator, cfg *config.GenerationConfig) *Loop {
	return &Loop{
		executor:  browser.NewExecutor(driver, nil, cfg.ActionTimeout),
		validator: validator,
		cfg:       cfg,
		logger:    slog.Default().With("component", "generation-loop"),
	}
}

// RunStep executes one action with validation and self-repair. A failed
// execution result skips validation entirely. A step that is still not
// approved after the repair cap is permanently failed; the returned
// StepResult carries the last action, result, feedback, and screenshot.
func (l *Loop) RunStep(ctx context.Context, action browser.Action, expectedState string) (*StepResult, error) {
	step, err := l.executeAndValidate(ctx, action, expectedState)
	if err != nil {
		return nil, err
	}
	if step.Approved {
		return step, nil
	}

	resp := step.response
	for round := 1; round <= l.cfg.MaxRepairRounds; round++ {
		if resp == nil || !validFix(resp) {
			return step, nil
		}

		l.logger.Info("Applying validator-suggested fix",
			"step", action.String(),
			"round", round,
			"fix_actions", len(resp.SuggestedFix))

		var next *ValidatorResponse
		for _, fix := range resp.SuggestedFix {
			step, err = l.executeAndValidate(ctx, fix, expectedState)
			if err != nil {
				return nil, err
			}
			if step.Approved {
				return step, nil
			}
			next = step.response
			if step.Result == nil || !step.Result.Success {
				// Executor failure inside a fix leaves no verdict to chain
				// from; stop repairing.
				next = nil
				break
			}
		}
		resp = next
	}

	l.logger.Warn("Step permanently failed after repair cap",
		"step", action.String(),
		"max_rounds", l.cfg.MaxRepairRounds,
		"feedback", step.Feedback)
	return step, nil
}

// executeAndValidate runs one action, screenshots, and validates. Executor
// failures skip validation per the step protocol.
func (l *Loop) executeAndValidate(ctx context.Context, action browser.Action, expectedState string) (*StepResult, error) {
	result, err := l.executor.Execute(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("browser session failed on %s: %w", action.String(), err)
	}

	step := &StepResult{Action: action, Result: result}
	if !result.Success {
		step.Feedback = result.Error
		return step, nil
	}

	shot, err := l.executor.Execute(ctx, browser.Action{
		Action:   browser.ActionScreenshot,
		Filename: l.nextScreenshot(),
	})
	if err != nil {
		return nil, fmt.Errorf("browser session failed on screenshot: %w", err)
	}
	if !shot.Success {
		step.Feedback = "screenshot failed: " + shot.Error
		return step, nil
	}
	step.ScreenshotPath = shot.Path

	vctx, cancel := context.WithTimeout(ctx, l.cfg.ValidatorTimeout)
	resp, err := l.validator.ValidateUIState(vctx, shot.Path, expectedState)
	cancel()
	if err != nil {
		resp = invalidResponse(fmt.Sprintf("validator call failed: %v", err))
	}

	step.Approved = resp.Approved
	step.Feedback = resp.Feedback
	step.response = resp
	return step, nil
}

func (l *Loop) nextScreenshot() string {
	seq := l.screenshotSeq.Add(1)
	name := fmt.Sprintf("step_%04d_%d.png", seq, time.Now().UnixMilli())
	return filepath.Join(l.cfg.ScreenshotDir, name)
}
