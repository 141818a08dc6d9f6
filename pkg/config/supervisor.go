package config

import "time"

// SupervisorConfig contains batch run supervisor and scheduler configuration.
// These values control how production cycles are triggered, how long a run
// may wait for human approval, and where durable run state lives.
type SupervisorConfig struct {
	// WorkerCount is the number of scheduler workers per replica/pod.
	// Each worker independently triggers and drives production cycles.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentRuns is the limit of concurrent production cycles on this pod.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// CycleInterval is the base interval between triggered production cycles.
	CycleInterval time.Duration `yaml:"cycle_interval"`

	// CycleIntervalJitter is the random jitter added to CycleInterval.
	// Actual interval: CycleInterval ± CycleIntervalJitter.
	CycleIntervalJitter time.Duration `yaml:"cycle_interval_jitter"`

	// ApprovalTimeout is the end-to-end budget for a human decision.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`

	// ApprovalPollInterval is how often the run-status document is re-read
	// while awaiting a decision. Must be ≤ ApprovalTimeout / 10.
	ApprovalPollInterval time.Duration `yaml:"approval_poll_interval"`

	// GracefulShutdownTimeout is the max time to wait for active runs
	// to reach a persistable state during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// RunStatusDir is the directory holding one run-status document per run.
	RunStatusDir string `yaml:"run_status_dir"`

	// ReleaseDir is the directory holding one release document per release.
	ReleaseDir string `yaml:"release_dir"`
}

// DefaultSupervisorConfig returns the built-in supervisor defaults.
func DefaultSupervisorConfig() *SupervisorConfig {
	return &SupervisorConfig{
		WorkerCount:             1,
		MaxConcurrentRuns:       1,
		CycleInterval:           6 * time.Hour,
		CycleIntervalJitter:     15 * time.Minute,
		ApprovalTimeout:         24 * time.Hour,
		ApprovalPollInterval:    30 * time.Second,
		GracefulShutdownTimeout: 2 * time.Minute,
		RunStatusDir:            "./data/run_status",
		ReleaseDir:              "./data/releases",
	}
}
