package slack

import (
	"fmt"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/llm"
)

const maxBlockTextLength = 2900

var outcomeEmoji = map[string]string{
	"released":          ":white_check_mark:",
	"rejected":          ":no_entry_sign:",
	"timed_out":         ":hourglass:",
	"failed_generation": ":x:",
	"failed_dispatch":   ":x:",
}

var outcomeLabel = map[string]string{
	"released":          "Release Shipped",
	"rejected":          "Release Rejected",
	"timed_out":         "Approval Timed Out",
	"failed_generation": "Generation Failed",
	"failed_dispatch":   "Dispatch Failed",
}

// runMarker is the text embedded in the approval message so later
// notifications can thread onto it via channel-history search.
func runMarker(runID string) string {
	return fmt.Sprintf("Run ID: %s", runID)
}

func runURL(runID, dashboardURL string) string {
	return fmt.Sprintf("%s/runs/%s", dashboardURL, runID)
}

// ApprovalRequestInput contains data for an approval request message.
type ApprovalRequestInput struct {
	RunID       string
	PersonaID   string
	Summary     string
	PreviewRefs []string
	Deadline    time.Time
}

// BuildApprovalMessage creates Block Kit blocks for a release approval request.
func BuildApprovalMessage(input ApprovalRequestInput, dashboardURL string) []goslack.Block {
	text := fmt.Sprintf(":studio_microphone: *Release approval requested*\n%s\n%s",
		truncateForSlack(input.Summary), runMarker(input.RunID))

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}

	if len(input.PreviewRefs) > 0 {
		var links []string
		for i, ref := range input.PreviewRefs {
			links = append(links, fmt.Sprintf("<%s|Preview %d>", ref, i+1))
		}
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, strings.Join(links, "  •  "), false, false),
			nil, nil,
		))
	}

	deadlineText := fmt.Sprintf("Reply *approve* or *reject* in this thread. No decision by %s counts as rejected.",
		input.Deadline.UTC().Format(time.RFC3339))
	blocks = append(blocks, goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, deadlineText, false, false),
	))

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "Review Run", false, false))
		btn.URL = runURL(input.RunID, dashboardURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

// RunCompletedInput contains data for a terminal run notification.
type RunCompletedInput struct {
	RunID        string
	PersonaID    string
	Outcome      string // released, rejected, timed_out, failed_generation, failed_dispatch
	Title        string
	ErrorMessage string
	ThreadTS     string // Cached from the approval message
}

// BuildRunCompletedMessage creates Block Kit blocks for a terminal run notification.
func BuildRunCompletedMessage(input RunCompletedInput, dashboardURL string) []goslack.Block {
	emoji := outcomeEmoji[input.Outcome]
	if emoji == "" {
		emoji = ":question:"
	}
	label := outcomeLabel[input.Outcome]
	if label == "" {
		label = "Run " + input.Outcome
	}

	headerText := fmt.Sprintf("%s *%s*", emoji, label)
	if input.Title != "" {
		headerText += fmt.Sprintf(" — %q", input.Title)
	}
	if input.ErrorMessage != "" {
		headerText += fmt.Sprintf("\n\n*Error:*\n%s", truncateForSlack(input.ErrorMessage))
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Run", false, false))
		btn.URL = runURL(input.RunID, dashboardURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

// BuildFallbackMessage creates Block Kit blocks for a provider fallback notice.
func BuildFallbackMessage(event llm.FallbackEvent) []goslack.Block {
	text := fmt.Sprintf(":warning: *LLM provider fallback*\n`%s:%s` failed after %d attempt(s); continuing with `%s:%s`.\n*Last error:* %s",
		event.FailedProvider, event.FailedModel, event.RetriesUsed,
		event.NextProvider, event.NextModel,
		truncateForSlack(event.ErrorMessage))

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

// truncateForSlack caps text at the block limit without splitting runes.
func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated — view full run in dashboard)_"
}
