package store

import (
	"context"
	"errors"

	"github.com/seantiz/prospect/internal/model"
)

// ErrNotFound is returned when an exploration is not found.
var ErrNotFound = errors.New("exploration not found")

// ErrInvalidTransition is returned when an exploration status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDuplicateID is returned when creating an exploration whose id already exists.
var ErrDuplicateID = errors.New("duplicate exploration id")

// Snapshot holds aggregate counts over all stored explorations.
type Snapshot struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	ByStatus map[string]int `json:"by_status"`
	ByType   map[string]int `json:"by_type"`
}

// Store is the authoritative record of explorations and their lifecycle
// state. Implementations must be safe for concurrent use: submission,
// dispatch and completion all race on it.
type Store interface {
	// Create inserts a new pending exploration.
	Create(ctx context.Context, e *model.Exploration) error

	// Get returns a copy of the exploration, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Exploration, error)

	// List returns a page of explorations ordered by creation time descending,
	// along with the total count.
	List(ctx context.Context, limit, offset int) ([]*model.Exploration, int, error)

	// MarkRunning transitions pending→running, stamps started_at, and returns
	// a copy of the updated exploration.
	MarkRunning(ctx context.Context, id string) (*model.Exploration, error)

	// MarkCompleted transitions running→completed, stamps completed_at, and
	// attaches the outcome. The outcome is set on no other path.
	MarkCompleted(ctx context.Context, id string, outcome *model.Outcome) error

	// MarkFailed transitions to failed, stamps completed_at, and records the
	// error message. The error is set on no other path.
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// MarkCancelled transitions pending|running→cancelled and stamps completed_at.
	MarkCancelled(ctx context.Context, id string) error

	// AddChild links a child exploration id to its parent.
	AddChild(ctx context.Context, parentID, childID string) error

	// ClearTerminal removes every completed, failed or cancelled exploration
	// and returns the removed ids. Pending and running are untouched.
	ClearTerminal(ctx context.Context) ([]string, error)

	// Counts returns aggregate status/type counts.
	Counts(ctx context.Context) (*Snapshot, error)
}
