package config

// ReleaseStatus is the lifecycle state of a release record.
type ReleaseStatus string

const (
	// ReleaseStatusPendingPreview is the initial state after initiation.
	ReleaseStatusPendingPreview ReleaseStatus = "pending_preview"
	// ReleaseStatusPreviewReady means the preview artifact is on disk.
	ReleaseStatusPreviewReady ReleaseStatus = "preview_ready"
	// ReleaseStatusPendingApproval means an approval request is outstanding.
	ReleaseStatusPendingApproval ReleaseStatus = "pending_approval"
	// ReleaseStatusApproved means a human approved the release.
	ReleaseStatusApproved ReleaseStatus = "approved"
	// ReleaseStatusRejected means a human rejected the release (terminal).
	ReleaseStatusRejected ReleaseStatus = "rejected"
	// ReleaseStatusPendingUpload means the upload artifact is being promoted.
	ReleaseStatusPendingUpload ReleaseStatus = "pending_upload"
	// ReleaseStatusUploaded means the release shipped (terminal).
	ReleaseStatusUploaded ReleaseStatus = "uploaded"
	// ReleaseStatusFailed is the terminal failure state, reachable from any state.
	ReleaseStatusFailed ReleaseStatus = "failed"
)

// IsValid checks if the release status is a known state.
func (s ReleaseStatus) IsValid() bool {
	switch s {
	case ReleaseStatusPendingPreview,
		ReleaseStatusPreviewReady,
		ReleaseStatusPendingApproval,
		ReleaseStatusApproved,
		ReleaseStatusRejected,
		ReleaseStatusPendingUpload,
		ReleaseStatusUploaded,
		ReleaseStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a sink with no outbound transitions.
func (s ReleaseStatus) IsTerminal() bool {
	return s == ReleaseStatusUploaded || s == ReleaseStatusRejected || s == ReleaseStatusFailed
}

// RunState is the durable state of a batch production run.
type RunState string

const (
	// RunStatePending means the run status document was created and approval
	// has not yet been dispatched.
	RunStatePending RunState = "pending"
	// RunStateGenerating means track/video generation is in flight.
	RunStateGenerating RunState = "generating"
	// RunStateAwaitingApproval means the approval request was dispatched and
	// the supervisor is polling for a decision.
	RunStateAwaitingApproval RunState = "awaiting_approval"
	// RunStateApproved records a human approval decision.
	RunStateApproved RunState = "approved"
	// RunStateRejected records a human rejection decision.
	RunStateRejected RunState = "rejected"
	// RunStateTimedOut means no decision arrived within the approval budget.
	RunStateTimedOut RunState = "timed_out"
	// RunStateFailed means the run failed before reaching a decision.
	RunStateFailed RunState = "failed"
)

// IsValid checks if the run state is a known state.
func (s RunState) IsValid() bool {
	switch s {
	case RunStatePending,
		RunStateGenerating,
		RunStateAwaitingApproval,
		RunStateApproved,
		RunStateRejected,
		RunStateTimedOut,
		RunStateFailed:
		return true
	default:
		return false
	}
}

// IsDecision reports whether the state is a human approval decision.
func (s RunState) IsDecision() bool {
	return s == RunStateApproved || s == RunStateRejected
}

// IsTerminal reports whether the run reached a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateApproved, RunStateRejected, RunStateTimedOut, RunStateFailed:
		return true
	default:
		return false
	}
}

// ProviderType identifies a remote text-generation provider.
type ProviderType string

const (
	// ProviderTypeOpenAI is the OpenAI API.
	ProviderTypeOpenAI ProviderType = "openai"
	// ProviderTypeDeepSeek is the DeepSeek API.
	ProviderTypeDeepSeek ProviderType = "deepseek"
	// ProviderTypeGrok is the xAI Grok API.
	ProviderTypeGrok ProviderType = "grok"
	// ProviderTypeGemini is the Google Gemini API.
	ProviderTypeGemini ProviderType = "gemini"
	// ProviderTypeMistral is the Mistral API.
	ProviderTypeMistral ProviderType = "mistral"
	// ProviderTypeAnthropic is the Anthropic Claude API.
	ProviderTypeAnthropic ProviderType = "anthropic"
)

// IsValid checks if the provider type is supported.
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeOpenAI,
		ProviderTypeDeepSeek,
		ProviderTypeGrok,
		ProviderTypeGemini,
		ProviderTypeMistral,
		ProviderTypeAnthropic:
		return true
	default:
		return false
	}
}

// MetricType classifies a per-release performance metric.
type MetricType string

const (
	// MetricTypeLikes counts likes/favorites.
	MetricTypeLikes MetricType = "likes"
	// MetricTypeSaves counts saves/bookmarks.
	MetricTypeSaves MetricType = "saves"
	// MetricTypeViews counts video views.
	MetricTypeViews MetricType = "views"
	// MetricTypeStreams counts audio streams.
	MetricTypeStreams MetricType = "streams"
)

// IsValid checks if the metric type is known.
func (t MetricType) IsValid() bool {
	switch t {
	case MetricTypeLikes, MetricTypeSaves, MetricTypeViews, MetricTypeStreams:
		return true
	default:
		return false
	}
}

// LyricsMode selects how the generation site receives lyrics.
type LyricsMode string

const (
	// LyricsModeCustom supplies full custom lyrics.
	LyricsModeCustom LyricsMode = "custom"
	// LyricsModeAuto lets the site write lyrics from the style prompt.
	LyricsModeAuto LyricsMode = "auto"
	// LyricsModeInstrumental produces an instrumental track.
	LyricsModeInstrumental LyricsMode = "instrumental"
)

// IsValid checks if the lyrics mode is known.
func (m LyricsMode) IsValid() bool {
	return m == LyricsModeCustom || m == LyricsModeAuto || m == LyricsModeInstrumental
}
