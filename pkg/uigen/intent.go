// Package uigen drives a music-generation site through the browser action
// grammar: it translates structured intents into deterministic action plans,
// validates every step against a vision validator with bounded self-repair,
// and extracts the produced song reference.
package uigen

import (
	"fmt"
	"log/slog"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/browser"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
)

// Intent is one structured generation request.
type Intent struct {
	Lyrics     string            `json:"lyrics,omitempty"`
	Style      string            `json:"style,omitempty"`
	Model      string            `json:"model,omitempty"`
	Title      string            `json:"title,omitempty"`
	Persona    string            `json:"persona,omitempty"`
	Workspace  string            `json:"workspace,omitempty"`
	LyricsMode config.LyricsMode `json:"lyrics_mode"`
}

// TranslateIntent emits the deterministic action plan for an intent:
// navigate, choose model, set lyrics mode, fill inputs, click create.
// Unknown models log a warning and fall back to the configured default.
func TranslateIntent(cfg *config.GenerationConfig, intent Intent, logger *slog.Logger) []browser.Action {
	if logger == nil {
		logger = slog.Default()
	}

	plan := []browser.Action{
		{Action: browser.ActionNavigate, URL: cfg.BaseURL},
	}

	model := intent.Model
	if model == "" || !knownModel(cfg, model) {
		if model != "" {
			logger.Warn("Unknown generation model, falling back to default",
				"requested", model, "default", cfg.DefaultModel)
		}
		model = cfg.DefaultModel
	}
	plan = append(plan,
		browser.Action{Action: browser.ActionClick, Target: browser.SelectorModelDropdown},
		browser.Action{Action: browser.ActionClick, Target: browser.SelectorModelOptionPrefix + model},
	)

	if intent.Workspace != "" {
		plan = append(plan, browser.Action{
			Action: browser.ActionSelect,
			Target: browser.SelectorWorkspacePicker,
			Value:  intent.Workspace,
		})
	}

	mode := intent.LyricsMode
	if mode == "" {
		mode = config.LyricsModeAuto
	}
	switch mode {
	case config.LyricsModeCustom:
		plan = append(plan, browser.Action{Action: browser.ActionClick, Target: browser.SelectorCustomModeToggle})
	case config.LyricsModeInstrumental:
		plan = append(plan, browser.Action{Action: browser.ActionClick, Target: browser.SelectorInstrumentalMode})
	case config.LyricsModeAuto:
		// Default site state; no toggle.
	}

	if intent.Lyrics != "" && mode == config.LyricsModeCustom {
		plan = append(plan, browser.Action{
			Action: browser.ActionInput,
			Target: browser.SelectorLyricsInput,
			Value:  intent.Lyrics,
		})
	}
	if intent.Style != "" {
		plan = append(plan, browser.Action{
			Action: browser.ActionInput,
			Target: browser.SelectorStyleInput,
			Value:  intent.Style,
		})
	}
	if intent.Title != "" {
		plan = append(plan, browser.Action{
			Action: browser.ActionInput,
			Target: browser.SelectorTitleInput,
			Value:  intent.Title,
		})
	}

	plan = append(plan, browser.Action{Action: browser.ActionClick, Target: browser.SelectorCreateButton})
	return plan
}

func knownModel(cfg *config.GenerationConfig, model string) bool {
	for _, m := range cfg.KnownModels {
		if m == model {
			return true
		}
	}
	return false
}

// expectedStateFor describes the post-state the validator should see after
// an action.
func expectedStateFor(action browser.Action) string {
	switch action.Action {
	case browser.ActionNavigate:
		return fmt.Sprintf("page %s is loaded with the creation form visible", action.URL)
	case browser.ActionClick:
		return fmt.Sprintf("element %s was clicked and the page reflects the click", action.Target)
	case browser.ActionInput:
		return fmt.Sprintf("field %s contains exactly: %s", action.Target, action.Value)
	case browser.ActionSelect:
		return fmt.Sprintf("option %q is selected in %s", action.Value, action.Target)
	default:
		return fmt.Sprintf("action %s completed", action.Action)
	}
}
