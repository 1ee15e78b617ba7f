package models

// ToggleOutcome is the committed transition of a toggle.
type ToggleOutcome string

// Toggle outcomes. LimitExceeded is a normal payload, not an error.
const (
	ToggleAdded         ToggleOutcome = "added"
	ToggleRemoved       ToggleOutcome = "removed"
	ToggleLimitExceeded ToggleOutcome = "limit_exceeded"
)

// ToggleResult is returned by every engagement toggle.
type ToggleResult struct {
	Outcome ToggleOutcome `json:"outcome"`
	Message string        `json:"message"`
	// Count is the like total after the toggle; likes only.
	Count *int64 `json:"count,omitempty"`
}
