package models

import (
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// SongMeta describes the produced track.
type SongMeta struct {
	Title     string `json:"title"`
	Style     string `json:"style,omitempty"`
	Model     string `json:"model,omitempty"`
	SongID    string `json:"song_id,omitempty"`
	SongURL   string `json:"song_url,omitempty"`
	DurationS int    `json:"duration_s,omitempty"`
}

// StatusChange is one append-only history entry on a release.
type StatusChange struct {
	Timestamp  time.Time            `json:"timestamp"`
	FromStatus config.ReleaseStatus `json:"from_status"`
	ToStatus   config.ReleaseStatus `json:"to_status"`
	Notes      string               `json:"notes,omitempty"`
	Details    map[string]any       `json:"details,omitempty"`
}

// Release is one produced track+video+metadata bundle moving through the
// approval/release pipeline. History is append-only; every status transition
// appends exactly one entry.
type Release struct {
	ReleaseID        string               `json:"release_id"`
	PersonaID        string               `json:"persona_id,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	Status           config.ReleaseStatus `json:"status"`
	SongMeta         SongMeta             `json:"song_meta"`
	OriginalSongPath string               `json:"original_song_path,omitempty"`
	PreviewPath      string               `json:"preview_path,omitempty"`
	UploadPath       string               `json:"upload_path,omitempty"`
	History          []StatusChange       `json:"history"`
	UploadDetails    map[string]any       `json:"upload_details,omitempty"`
	Error            string               `json:"error,omitempty"`
}
