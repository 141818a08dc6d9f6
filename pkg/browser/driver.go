package browser

import (
	"context"
	"fmt"
	"time"
)

// ActionResult is the outcome of one driver operation. Success=false with a
// populated Error means the action itself failed (selector missing, element
// not interactable); a Go error from the driver means the session is broken.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Text    string `json:"text,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Driver is a live browser session. Implementations wrap whatever automation
// transport is available; all methods must honor ctx cancellation.
type Driver interface {
	Navigate(ctx context.Context, url string) (*ActionResult, error)
	Click(ctx context.Context, selector string) (*ActionResult, error)
	InputText(ctx context.Context, selector, text string, clearFirst bool) (*ActionResult, error)
	SelectOption(ctx context.Context, selector, value string) (*ActionResult, error)
	GetElementText(ctx context.Context, selector string) (*ActionResult, error)
	TakeScreenshot(ctx context.Context, filename string) (*ActionResult, error)
}

// Executor resolves logical targets and dispatches actions to a driver under
// a per-action deadline.
type Executor struct {
	driver    Driver
	selectors SelectorTable
	timeout   time.Duration
}

// NewExecutor creates an executor. timeout bounds every single action.
func NewExecutor(driver Driver, selectors SelectorTable, timeout time.Duration) *Executor {
	if selectors == nil {
		selectors = DefaultSelectorTable()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{driver: driver, selectors: selectors, timeout: timeout}
}

// Execute validates and runs one action. Resolution and validation failures
// come back as failed results, not Go errors, so the feedback loop can hand
// them to the validator path uniformly.
func (e *Executor) Execute(ctx context.Context, action Action) (*ActionResult, error) {
	if err := action.Validate(); err != nil {
		return &ActionResult{Success: false, Error: err.Error()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch action.Action {
	case ActionNavigate:
		return e.driver.Navigate(ctx, action.URL)
	case ActionScreenshot:
		return e.driver.TakeScreenshot(ctx, action.Filename)
	}

	selector, err := e.selectors.Resolve(action.Target)
	if err != nil {
		return &ActionResult{Success: false, Error: err.Error()}, nil
	}

	switch action.Action {
	case ActionClick:
		return e.driver.Click(ctx, selector)
	case ActionInput:
		return e.driver.InputText(ctx, selector, action.Value, action.ShouldClearFirst())
	case ActionSelect:
		return e.driver.SelectOption(ctx, selector, action.Value)
	case ActionGetText:
		return e.driver.GetElementText(ctx, selector)
	default:
		return nil, fmt.Errorf("unhandled action %q", action.Action)
	}
}
