package config

import "time"

// EvolutionConfig contains persona evolution engine configuration.
type EvolutionConfig struct {
	// DecayLambda is the per-day exponential decay rate for metric weights.
	DecayLambda float64 `yaml:"decay_lambda"`

	// ReinforceFactor: best score must exceed ReinforceFactor × average
	// to trigger a reinforcement mutation.
	ReinforceFactor float64 `yaml:"reinforce_factor"`

	// DiversifyFactor: worst score below DiversifyFactor × average
	// triggers a diversification mutation.
	DiversifyFactor float64 `yaml:"diversify_factor"`

	// SuccessKeywords is the pool a reinforcement draws from.
	SuccessKeywords []string `yaml:"success_keywords"`

	// EvalTimeout bounds scoring plus rule evaluation; DB writes are
	// outside this budget.
	EvalTimeout time.Duration `yaml:"eval_timeout"`

	// RunInterval is how often the scheduled evolution pass visits all
	// personas.
	RunInterval time.Duration `yaml:"run_interval"`
}

// DefaultEvolutionConfig returns the built-in evolution defaults.
func DefaultEvolutionConfig() *EvolutionConfig {
	return &EvolutionConfig{
		DecayLambda:     0.05,
		ReinforceFactor: 1.2,
		DiversifyFactor: 0.8,
		SuccessKeywords: []string{"catchy", "anthemic", "polished", "radio-ready"},
		EvalTimeout:     30 * time.Second,
		RunInterval:     24 * time.Hour,
	}
}
