package browser

import "fmt"

// Logical selector keys used by the generation plan and result extraction.
const (
	SelectorLyricsInput       = "lyrics_input"
	SelectorStyleInput        = "style_input"
	SelectorTitleInput        = "title_input"
	SelectorCreateButton      = "create_button"
	SelectorGeneratedSongLink = "generated_song_link"
	SelectorModelDropdown     = "model_dropdown"
	SelectorModelOptionPrefix = "model_option_"
	SelectorCustomModeToggle  = "custom_mode_toggle"
	SelectorInstrumentalMode  = "instrumental_toggle"
	SelectorWorkspacePicker   = "workspace_picker"
)

// SelectorTable maps logical selector keys to concrete DOM selectors. The
// rest of the system only speaks logical keys, so a site redesign is a
// one-table change.
type SelectorTable map[string]string

// DefaultSelectorTable targets the suno.com create page.
func DefaultSelectorTable() SelectorTable {
	table := SelectorTable{
		SelectorLyricsInput:       `textarea[data-testid="lyrics-input-textarea"]`,
		SelectorStyleInput:        `textarea[data-testid="tag-input-textarea"]`,
		SelectorTitleInput:        `input[placeholder="Enter song title"]`,
		SelectorCreateButton:      `button[data-testid="create-button"]`,
		SelectorGeneratedSongLink: `div[data-testid="song-row"] a[href^="/song/"]`,
		SelectorModelDropdown:     `button[data-testid="model-selector"]`,
		SelectorCustomModeToggle:  `button[aria-label="Custom"]`,
		SelectorInstrumentalMode:  `button[aria-label="Instrumental"]`,
		SelectorWorkspacePicker:   `button[data-testid="workspace-picker"]`,
	}
	for model, value := range map[string]string{
		"v3.5": "chirp-v3-5",
		"v4":   "chirp-v4",
		"v4.5": "chirp-v4-5",
	} {
		table[SelectorModelOptionPrefix+model] = fmt.Sprintf(`div[role="option"][data-value=%q]`, value)
	}
	return table
}

// Resolve maps a logical key to its DOM selector.
func (t SelectorTable) Resolve(key string) (string, error) {
	selector, ok := t[key]
	if !ok {
		return "", fmt.Errorf("no selector registered for %q", key)
	}
	return selector, nil
}
