package uigen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/browser"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/llm"
)

// TextGenerator is the slice of the LLM orchestrator the validator needs.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error)
}

const validatorPromptTemplate = `You are a UI state validator for a browser automation pipeline.

A screenshot of the current page is attached as a base64-encoded PNG data URL.
Expected state after the last action: %s

Screenshot:
%s

Respond with a single JSON object and nothing else. Schema:
{
  "approved": <bool, required — true only if the screenshot clearly matches the expected state>,
  "feedback": <string, required — one sentence describing what you see and why it does or does not match>,
  "suggested_fix": <null, or a non-empty list of repair actions, each {"action": "navigate"|"click"|"input"|"select", "target": <element key>, "value": <string>, "url": <string>}>
}

"target" must be one of these element keys, never a CSS selector: %s.

Do not wrap the JSON in markdown fences. Do not add commentary.`

// repairTargets lists the element keys a suggested fix may address. The loop
// resolves targets through the selector table, so a fix naming anything else
// can never execute.
var repairTargets = strings.Join([]string{
	browser.SelectorLyricsInput,
	browser.SelectorStyleInput,
	browser.SelectorTitleInput,
	browser.SelectorCreateButton,
	browser.SelectorModelDropdown,
	browser.SelectorCustomModeToggle,
	browser.SelectorInstrumentalMode,
	browser.SelectorWorkspacePicker,
}, ", ")

// VisionValidator judges screenshots with a vision-capable model reached
// through the orchestrator, so validation rides the same fallback chain as
// every other LLM call.
type VisionValidator struct {
	generator TextGenerator
}

// NewVisionValidator creates a validator over a text generator.
func NewVisionValidator(generator TextGenerator) *VisionValidator {
	return &VisionValidator{generator: generator}
}

// ValidateUIState implements Validator. Transport failures are returned as
// errors; a model that answers off-schema is downgraded to a rejection by
// ParseValidatorResponse so the loop treats it like any other failed check.
func (v *VisionValidator) ValidateUIState(ctx context.Context, screenshotPath, expectedState string) (*ValidatorResponse, error) {
	data, err := os.ReadFile(screenshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot %s: %w", screenshotPath, err)
	}

	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	prompt := fmt.Sprintf(validatorPromptTemplate, expectedState, encoded, repairTargets)

	text, err := v.generator.Generate(ctx, prompt, llm.GenerateParams{
		MaxTokens:   1024,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("validator model call failed: %w", err)
	}

	return ParseValidatorResponse([]byte(extractJSON(text))), nil
}

// extractJSON trims markdown fences or surrounding prose off a model reply,
// keeping the outermost JSON object. Returns the input unchanged when no
// braces are found so the parser produces its usual downgrade.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
