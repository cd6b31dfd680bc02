package model

import (
	"encoding/json"
	"time"
)

// Exploration status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// validTransitions maps each status to the set of statuses it may transition to.
// Completed, failed and cancelled are terminal: they have no outgoing edges.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning:   true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether the given status admits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Parameters carries per-exploration execution configuration. Options is
// opaque to the engine and handed to the handler untouched.
type Parameters struct {
	Priority int                    `json:"priority,omitempty"`
	TimeoutS *int                   `json:"timeout_s,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// Exploration represents one submitted unit of exploratory work tracked
// through its lifecycle.
type Exploration struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Input       json.RawMessage `json:"input,omitempty"`
	Parameters  Parameters      `json:"parameters"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Result      *Outcome        `json:"result,omitempty"`
	ParentID    string          `json:"parent_id,omitempty"`
	ChildIDs    []string        `json:"child_ids,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
