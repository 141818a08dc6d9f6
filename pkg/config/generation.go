package config

import "time"

// GenerationConfig contains browser-driven generation loop configuration.
type GenerationConfig struct {
	// BaseURL is the music-generation site entry point.
	BaseURL string `yaml:"base_url"`

	// DefaultModel is used when an intent names an unknown generation model.
	DefaultModel string `yaml:"default_model"`

	// KnownModels are the model labels selectable in the site UI.
	KnownModels []string `yaml:"known_models"`

	// ActionTimeout is the per-UI-action deadline.
	ActionTimeout time.Duration `yaml:"action_timeout"`

	// ValidatorTimeout is the per-validator-call deadline.
	ValidatorTimeout time.Duration `yaml:"validator_timeout"`

	// MaxRepairRounds bounds validator-suggested fix rounds per step.
	MaxRepairRounds int `yaml:"max_repair_rounds"`

	// ScreenshotDir is where step screenshots are written.
	ScreenshotDir string `yaml:"screenshot_dir"`

	// CreateWait is how long to wait after clicking create before
	// attempting result extraction.
	CreateWait time.Duration `yaml:"create_wait"`
}

// DefaultGenerationConfig returns the built-in generation loop defaults.
func DefaultGenerationConfig() *GenerationConfig {
	return &GenerationConfig{
		BaseURL:          "https://suno.com/create",
		DefaultModel:     "v4",
		KnownModels:      []string{"v3.5", "v4", "v4.5"},
		ActionTimeout:    30 * time.Second,
		ValidatorTimeout: 45 * time.Second,
		MaxRepairRounds:  3,
		ScreenshotDir:    "./data/screenshots",
		CreateWait:       20 * time.Second,
	}
}
