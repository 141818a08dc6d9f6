package models

import (
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// RunStatus is the durable per-run state document, one JSON file per run_id.
// The run-status file is the coordination point between the supervisor and
// the approval bridge: the bridge writes the human decision into Status.
type RunStatus struct {
	RunID            string          `json:"run_id"`
	PersonaID        string          `json:"persona_id"`
	TrackRef         string          `json:"track_ref,omitempty"`
	VideoRef         string          `json:"video_ref,omitempty"`
	Status           config.RunState `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	LastUpdated      time.Time       `json:"last_updated"`
	ApprovalDeadline time.Time       `json:"approval_deadline"`
	Message          string          `json:"message,omitempty"`
}
