package config

import (
	"fmt"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// validate is the package-internal entry used by Initialize.
func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: providers → llm → supervisor → generation → evolution → video
	// This ensures dependencies are validated before dependents

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}

	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}

	if err := v.validateSupervisor(); err != nil {
		return fmt.Errorf("supervisor validation failed: %w", err)
	}

	if err := v.validateGeneration(); err != nil {
		return fmt.Errorf("generation validation failed: %w", err)
	}

	if err := v.validateEvolution(); err != nil {
		return fmt.Errorf("evolution validation failed: %w", err)
	}

	if err := v.validateVideo(); err != nil {
		return fmt.Errorf("video validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateLLMProviders() error {
	for name, p := range v.cfg.LLMProviderRegistry.GetAll() {
		if p.Type == "" {
			return NewValidationError("llm_provider", name, "type", ErrMissingRequiredField)
		}
		if !p.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("%w: %s", ErrInvalidValue, p.Type))
		}
		if p.Model == "" {
			return NewValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
		if p.MaxTokens < 0 {
			return NewValidationError("llm_provider", name, "max_tokens", fmt.Errorf("%w: must be ≥ 0", ErrInvalidValue))
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return NewValidationError("llm_provider", name, "temperature", fmt.Errorf("%w: must be in [0, 2]", ErrInvalidValue))
		}
	}
	return nil
}

func (v *ConfigValidator) validateLLM() error {
	l := v.cfg.LLM
	if l == nil {
		return fmt.Errorf("llm configuration is nil")
	}
	if l.PrimaryModel == "" {
		return NewValidationError("llm", "orchestrator", "primary_model", ErrMissingRequiredField)
	}
	if l.RequestTimeout <= 0 {
		return NewValidationError("llm", "orchestrator", "request_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

// ValidateSupervisor checks supervisor timing and directory configuration.
// Exposed for direct use in tests.
func ValidateSupervisor(s *SupervisorConfig) error {
	if s == nil {
		return fmt.Errorf("supervisor configuration is nil")
	}
	if s.WorkerCount < 1 || s.WorkerCount > 50 {
		return NewValidationError("supervisor", "scheduler", "worker_count", fmt.Errorf("%w: must be between 1 and 50", ErrInvalidValue))
	}
	if s.MaxConcurrentRuns < 1 {
		return NewValidationError("supervisor", "scheduler", "max_concurrent_runs", fmt.Errorf("%w: must be ≥ 1", ErrInvalidValue))
	}
	if s.ApprovalTimeout <= 0 {
		return NewValidationError("supervisor", "approval", "approval_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.ApprovalPollInterval <= 0 {
		return NewValidationError("supervisor", "approval", "approval_poll_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	// Poll interval must be small relative to the budget so the timeout
	// classification lands within one tick of the approval deadline.
	if s.ApprovalPollInterval > s.ApprovalTimeout/10 {
		return NewValidationError("supervisor", "approval", "approval_poll_interval",
			fmt.Errorf("%w: must be ≤ approval_timeout/10", ErrInvalidValue))
	}
	if s.RunStatusDir == "" {
		return NewValidationError("supervisor", "state", "run_status_dir", ErrMissingRequiredField)
	}
	if s.ReleaseDir == "" {
		return NewValidationError("supervisor", "state", "release_dir", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateSupervisor() error {
	return ValidateSupervisor(v.cfg.Supervisor)
}

func (v *ConfigValidator) validateGeneration() error {
	g := v.cfg.Generation
	if g == nil {
		return fmt.Errorf("generation configuration is nil")
	}
	if g.BaseURL == "" {
		return NewValidationError("generation", "loop", "base_url", ErrMissingRequiredField)
	}
	if g.DefaultModel == "" {
		return NewValidationError("generation", "loop", "default_model", ErrMissingRequiredField)
	}
	if g.MaxRepairRounds < 1 {
		return NewValidationError("generation", "loop", "max_repair_rounds", fmt.Errorf("%w: must be ≥ 1", ErrInvalidValue))
	}
	if g.ActionTimeout <= 0 || g.ValidatorTimeout <= 0 {
		return NewValidationError("generation", "loop", "timeouts", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateEvolution() error {
	e := v.cfg.Evolution
	if e == nil {
		return fmt.Errorf("evolution configuration is nil")
	}
	if e.DecayLambda <= 0 {
		return NewValidationError("evolution", "scoring", "decay_lambda", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if e.ReinforceFactor <= 1 {
		return NewValidationError("evolution", "rules", "reinforce_factor", fmt.Errorf("%w: must be > 1", ErrInvalidValue))
	}
	if e.DiversifyFactor <= 0 || e.DiversifyFactor >= 1 {
		return NewValidationError("evolution", "rules", "diversify_factor", fmt.Errorf("%w: must be in (0, 1)", ErrInvalidValue))
	}
	if len(e.SuccessKeywords) == 0 {
		return NewValidationError("evolution", "rules", "success_keywords", ErrMissingRequiredField)
	}
	if e.RunInterval <= 0 {
		return NewValidationError("evolution", "scheduling", "run_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *ConfigValidator) validateVideo() error {
	vc := v.cfg.Video
	if vc == nil {
		return fmt.Errorf("video configuration is nil")
	}
	if vc.ClipCount < 1 {
		return NewValidationError("video", "selection", "clip_count", fmt.Errorf("%w: must be ≥ 1", ErrInvalidValue))
	}
	if vc.RecencyWindow <= 0 {
		return NewValidationError("video", "ranking", "recency_window", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if vc.SourceStatsPath == "" {
		return NewValidationError("video", "ranking", "source_stats_path", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}
	if r.RunRetention <= 0 {
		return NewValidationError("retention", "runs", "run_retention", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if r.ScreenshotTTL <= 0 {
		return NewValidationError("retention", "screenshots", "screenshot_ttl", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if r.CleanupInterval <= 0 {
		return NewValidationError("retention", "sweep", "cleanup_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
