package uigen

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/browser"
)

// ValidatorResponse is the verdict on one UI step. Approved and Feedback are
// always present; SuggestedFix is nil or a non-empty repair plan.
type ValidatorResponse struct {
	Approved     bool             `json:"approved"`
	Feedback     string           `json:"feedback"`
	SuggestedFix []browser.Action `json:"suggested_fix,omitempty"`
}

// Validator judges whether a screenshot matches the expected post-state of a
// UI step. Implementations typically wrap a vision-capable model.
type Validator interface {
	ValidateUIState(ctx context.Context, screenshotPath, expectedState string) (*ValidatorResponse, error)
}

// invalidResponse is the uniform downgrade for schema violations: not
// approved, no repair plan, no retries.
func invalidResponse(reason string) *ValidatorResponse {
	return &ValidatorResponse{
		Approved: false,
		Feedback: "validator response invalid: " + reason,
	}
}

// ParseValidatorResponse enforces the strict response schema on raw validator
// output. Any violation downgrades to approved=false with an explanatory
// feedback instead of an error, so the loop handles malformed validators the
// same way it handles rejections.
func ParseValidatorResponse(data []byte) *ValidatorResponse {
	var raw struct {
		Approved     *bool           `json:"approved"`
		Feedback     *string         `json:"feedback"`
		SuggestedFix json.RawMessage `json:"suggested_fix"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalidResponse(fmt.Sprintf("not a JSON object: %v", err))
	}
	if raw.Approved == nil {
		return invalidResponse("missing required field 'approved'")
	}
	if raw.Feedback == nil {
		return invalidResponse("missing required field 'feedback'")
	}

	resp := &ValidatorResponse{Approved: *raw.Approved, Feedback: *raw.Feedback}

	if len(raw.SuggestedFix) > 0 && string(raw.SuggestedFix) != "null" {
		var fix []browser.Action
		if err := json.Unmarshal(raw.SuggestedFix, &fix); err != nil {
			return invalidResponse(fmt.Sprintf("suggested_fix is not an action list: %v", err))
		}
		if len(fix) == 0 {
			return invalidResponse("suggested_fix must be null or a non-empty list")
		}
		for i, action := range fix {
			if action.Action == "" {
				return invalidResponse(fmt.Sprintf("suggested_fix[%d] has no action", i))
			}
		}
		resp.SuggestedFix = fix
	}

	return resp
}

// validFix reports whether a response carries a structurally valid repair
// plan worth executing.
func validFix(resp *ValidatorResponse) bool {
	if len(resp.SuggestedFix) == 0 {
		return false
	}
	for _, action := range resp.SuggestedFix {
		if action.Action == "" {
			return false
		}
	}
	return true
}
