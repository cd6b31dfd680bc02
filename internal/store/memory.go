package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seantiz/prospect/internal/model"
)

// Compile-time interface satisfaction check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with an in-process map. It is the single
// source of truth for the engine; nothing is persisted across restarts.
type MemoryStore struct {
	mu           sync.RWMutex
	explorations map[string]*model.Exploration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		explorations: make(map[string]*model.Exploration),
	}
}

// copyOf returns a defensive copy so readers never share mutable state with
// the store. Input and Result are treated as immutable once set.
func copyOf(e *model.Exploration) *model.Exploration {
	c := *e
	if len(e.ChildIDs) > 0 {
		c.ChildIDs = append([]string(nil), e.ChildIDs...)
	}
	return &c
}

// Create inserts a new pending exploration.
func (s *MemoryStore) Create(_ context.Context, e *model.Exploration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.explorations[e.ID]; exists {
		return fmt.Errorf("create exploration %s: %w", e.ID, ErrDuplicateID)
	}
	s.explorations[e.ID] = copyOf(e)
	return nil
}

// Get returns a copy of the exploration, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*model.Exploration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.explorations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOf(e), nil
}

// List returns a page of explorations ordered by created_at descending, plus
// the total count.
func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]*model.Exploration, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.Exploration, 0, len(s.explorations))
	for _, e := range s.explorations {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		// Newer ULIDs sort higher; break creation-time ties deterministically.
		return all[i].ID > all[j].ID
	})

	total := len(all)
	if offset >= total {
		return []*model.Exploration{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]*model.Exploration, 0, end-offset)
	for _, e := range all[offset:end] {
		page = append(page, copyOf(e))
	}
	return page, total, nil
}

// transition validates and applies a status change under the write lock.
func (s *MemoryStore) transition(id, to string) (*model.Exploration, error) {
	e, ok := s.explorations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !model.ValidTransition(e.Status, to) {
		return nil, fmt.Errorf("%s → %s for %s: %w", e.Status, to, id, ErrInvalidTransition)
	}
	e.Status = to
	return e, nil
}

// MarkRunning transitions pending→running and stamps started_at.
func (s *MemoryStore) MarkRunning(_ context.Context, id string) (*model.Exploration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.transition(id, model.StatusRunning)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	e.StartedAt = &now
	return copyOf(e), nil
}

// MarkCompleted transitions running→completed and attaches the outcome.
func (s *MemoryStore) MarkCompleted(_ context.Context, id string, outcome *model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.transition(id, model.StatusCompleted)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.CompletedAt = &now
	e.Result = outcome
	return nil
}

// MarkFailed transitions to failed and records the error message.
func (s *MemoryStore) MarkFailed(_ context.Context, id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.transition(id, model.StatusFailed)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.CompletedAt = &now
	e.Error = errMsg
	return nil
}

// MarkCancelled transitions pending|running→cancelled.
func (s *MemoryStore) MarkCancelled(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.transition(id, model.StatusCancelled)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.CompletedAt = &now
	return nil
}

// AddChild links a child exploration id to its parent.
func (s *MemoryStore) AddChild(_ context.Context, parentID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.explorations[parentID]
	if !ok {
		return ErrNotFound
	}
	p.ChildIDs = append(p.ChildIDs, childID)
	return nil
}

// ClearTerminal removes every terminal exploration and returns the removed ids.
func (s *MemoryStore) ClearTerminal(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, e := range s.explorations {
		if model.IsTerminal(e.Status) {
			delete(s.explorations, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// Counts returns aggregate status/type counts.
func (s *MemoryStore) Counts(_ context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Total:    len(s.explorations),
		ByStatus: make(map[string]int),
		ByType:   make(map[string]int),
	}
	for _, e := range s.explorations {
		snap.ByStatus[e.Status]++
		snap.ByType[e.Type]++
		if e.Status == model.StatusRunning {
			snap.Active++
		}
	}
	return snap, nil
}
