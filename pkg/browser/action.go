// Package browser defines the UI action grammar and the driver abstraction
// the generation loop runs against. The driver is a collaborator: anything
// that can click, type, and screenshot a real browser session implements it.
package browser

import (
	"fmt"
)

// ActionType enumerates the UI action grammar.
type ActionType string

const (
	// ActionNavigate loads a URL.
	ActionNavigate ActionType = "navigate"
	// ActionClick clicks a logical target.
	ActionClick ActionType = "click"
	// ActionInput types a value into a logical target.
	ActionInput ActionType = "input"
	// ActionSelect opens a logical target and picks an option by value.
	ActionSelect ActionType = "select"
	// ActionGetText reads the text of a logical target.
	ActionGetText ActionType = "get_text"
	// ActionScreenshot captures the page to a file.
	ActionScreenshot ActionType = "screenshot"
)

// Action is one step of the UI grammar. Target is a logical selector key,
// resolved through the selector table at execution time.
type Action struct {
	Action     ActionType `json:"action"`
	Target     string     `json:"target,omitempty"`
	Value      string     `json:"value,omitempty"`
	URL        string     `json:"url,omitempty"`
	Filename   string     `json:"filename,omitempty"`
	ClearFirst *bool      `json:"clear_first,omitempty"`
}

// ShouldClearFirst reports whether an input action clears the field before
// typing. Defaults to true when unset: validator-suggested fixes re-type
// whole values and must not append to stale text.
func (a Action) ShouldClearFirst() bool {
	if a.ClearFirst == nil {
		return true
	}
	return *a.ClearFirst
}

// Validate checks the per-type required fields.
func (a Action) Validate() error {
	switch a.Action {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action requires url")
		}
	case ActionClick, ActionGetText:
		if a.Target == "" {
			return fmt.Errorf("%s action requires target", a.Action)
		}
	case ActionInput, ActionSelect:
		if a.Target == "" {
			return fmt.Errorf("%s action requires target", a.Action)
		}
	case ActionScreenshot:
		if a.Filename == "" {
			return fmt.Errorf("screenshot action requires filename")
		}
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", a.Action)
	}
	return nil
}

func (a Action) String() string {
	switch a.Action {
	case ActionNavigate:
		return fmt.Sprintf("navigate(%s)", a.URL)
	case ActionScreenshot:
		return fmt.Sprintf("screenshot(%s)", a.Filename)
	case ActionInput, ActionSelect:
		return fmt.Sprintf("%s(%s, %q)", a.Action, a.Target, a.Value)
	default:
		return fmt.Sprintf("%s(%s)", a.Action, a.Target)
	}
}
