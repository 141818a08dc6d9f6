package uigen

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/browser"
)

// GenerationStatus is the terminal status of one generation run.
type GenerationStatus string

const (
	// StatusCompleted means a song reference was extracted.
	StatusCompleted GenerationStatus = "completed"
	// StatusExtractionFailed means all steps passed but no song link parsed.
	StatusExtractionFailed GenerationStatus = "extraction_failed"
	// StatusFailed means a step failed permanently.
	StatusFailed GenerationStatus = "failed"
)

// GenerationResult is the outcome of a full generation run.
type GenerationResult struct {
	Status GenerationStatus `json:"status"`
	URL    string           `json:"url,omitempty"`
	SongID string           `json:"song_id,omitempty"`
	Error  string           `json:"error,omitempty"`

	// Failure diagnostics from the last attempted step.
	LastAction     *browser.Action       `json:"last_action,omitempty"`
	LastResult     *browser.ActionResult `json:"last_result,omitempty"`
	LastFeedback   string                `json:"last_feedback,omitempty"`
	ScreenshotPath string                `json:"screenshot_path,omitempty"`
}

// songURLPattern matches the canonical song URL, absolute or site-relative.
var songURLPattern = regexp.MustCompile(`^(?:https://suno\.com)?/song/([A-Za-z0-9-]+)$`)

// ExtractSongRef parses a song link text into its canonical URL and ID.
func ExtractSongRef(text string) (url, id string, err error) {
	m := songURLPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", fmt.Errorf("text %q does not match the song URL shape", text)
	}
	return "https://suno.com/song/" + m[1], m[1], nil
}

// Generate runs the full plan for an intent and extracts the song reference.
// A permanently failed step aborts the run with the step's diagnostics; a
// completed plan whose link does not parse returns extraction_failed.
func (l *Loop) Generate(ctx context.Context, intent Intent) (*GenerationResult, error) {
	plan := TranslateIntent(l.cfg, intent, l.logger)

	for _, action := range plan {
		step, err := l.RunStep(ctx, action, expectedStateFor(action))
		if err != nil {
			return nil, err
		}
		if !step.Approved {
			return &GenerationResult{
				Status:         StatusFailed,
				Error:          fmt.Sprintf("step %s failed: %s", action.String(), step.Feedback),
				LastAction:     &step.Action,
				LastResult:     step.Result,
				LastFeedback:   step.Feedback,
				ScreenshotPath: step.ScreenshotPath,
			}, nil
		}
	}

	// Give the site time to register the generation before reading the link.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(l.cfg.CreateWait):
	}

	linkAction := browser.Action{Action: browser.ActionGetText, Target: browser.SelectorGeneratedSongLink}
	result, err := l.executor.Execute(ctx, linkAction)
	if err != nil {
		return nil, fmt.Errorf("browser session failed reading song link: %w", err)
	}
	if !result.Success {
		return &GenerationResult{
			Status:     StatusExtractionFailed,
			Error:      "song link not readable: " + result.Error,
			LastAction: &linkAction,
			LastResult: result,
		}, nil
	}

	url, id, err := ExtractSongRef(result.Text)
	if err != nil {
		return &GenerationResult{
			Status:     StatusExtractionFailed,
			Error:      err.Error(),
			LastAction: &linkAction,
			LastResult: result,
		}, nil
	}

	l.logger.Info("Generation completed", "song_id", id, "url", url)
	return &GenerationResult{Status: StatusCompleted, URL: url, SongID: id}, nil
}
