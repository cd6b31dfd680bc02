package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/seantiz/prospect/internal/model"
)

func makeTestExploration(typeTag string) *model.Exploration {
	return &model.Exploration{
		ID:        model.NewID(),
		Type:      typeTag,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeTestExploration("hypothesis")

	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != e.ID {
		t.Errorf("ID = %q, want %q", got.ID, e.ID)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Type != "hypothesis" {
		t.Errorf("Type = %q, want hypothesis", got.Type)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeTestExploration("hypothesis")

	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, e); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("second Create error = %v, want ErrDuplicateID", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeTestExploration("hypothesis")
	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := s.Get(ctx, e.ID)
	got.Status = model.StatusFailed

	again, _ := s.Get(ctx, e.ID)
	if again.Status != model.StatusPending {
		t.Errorf("mutating a Get copy leaked into the store: status = %q", again.Status)
	}
}

func TestMarkRunningStampsStartedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeTestExploration("hypothesis")
	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}

	running, err := s.MarkRunning(ctx, e.ID)
	if err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if running.Status != model.StatusRunning {
		t.Errorf("Status = %q, want running", running.Status)
	}
	if running.StartedAt == nil {
		t.Error("started_at is nil after MarkRunning")
	}
}

func TestMarkRunningInvalidFromTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeTestExploration("hypothesis")
	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.MarkRunning(ctx, e.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := s.MarkCompleted(ctx, e.ID, &model.Outcome{ExplorationID: e.ID}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	// Terminal states admit no further transitions.
	if _, err := s.MarkRunning(ctx, e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkRunning on completed = %v, want ErrInvalidTransition", err)
	}
	if err := s.MarkFailed(ctx, e.ID, "late failure"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkFailed on completed = %v, want ErrInvalidTransition", err)
	}
	if err := s.MarkCancelled(ctx, e.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("MarkCancelled on completed = %v, want ErrInvalidTransition", err)
	}
}

func TestResultAndErrorExclusivity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	completed := makeTestExploration("hypothesis")
	failed := makeTestExploration("hypothesis")
	for _, e := range []*model.Exploration{completed, failed} {
		if err := s.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if _, err := s.MarkRunning(ctx, e.ID); err != nil {
			t.Fatalf("MarkRunning: %v", err)
		}
	}

	if err := s.MarkCompleted(ctx, completed.ID, &model.Outcome{ExplorationID: completed.ID, Confidence: 1}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := s.MarkFailed(ctx, failed.ID, "handler exploded"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	gotCompleted, _ := s.Get(ctx, completed.ID)
	if gotCompleted.Result == nil {
		t.Error("completed exploration has no result")
	}
	if gotCompleted.Error != "" {
		t.Errorf("completed exploration has error %q", gotCompleted.Error)
	}
	if gotCompleted.CompletedAt == nil {
		t.Error("completed_at is nil after MarkCompleted")
	}

	gotFailed, _ := s.Get(ctx, failed.ID)
	if gotFailed.Result != nil {
		t.Error("failed exploration has a result")
	}
	if gotFailed.Error != "handler exploded" {
		t.Errorf("failed exploration error = %q", gotFailed.Error)
	}
}

func TestMarkCancelledFromPending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	e := makeTestExploration("hypothesis")
	if err := s.Create(ctx, e); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.MarkCancelled(ctx, e.ID); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}
	got, _ := s.Get(ctx, e.ID)
	if got.Status != model.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at is nil after MarkCancelled")
	}
}

func TestListPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := makeTestExploration("hypothesis")
		e.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.Create(ctx, e); err != nil {
			t.Fatalf("Create[%d]: %v", i, err)
		}
	}

	page, total, err := s.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}
	if len(page) == 2 && page[0].CreatedAt.Before(page[1].CreatedAt) {
		t.Error("List is not ordered newest first")
	}

	tail, _, err := s.List(ctx, 10, 4)
	if err != nil {
		t.Fatalf("List tail: %v", err)
	}
	if len(tail) != 1 {
		t.Errorf("tail page size = %d, want 1", len(tail))
	}

	empty, _, err := s.List(ctx, 10, 99)
	if err != nil {
		t.Fatalf("List past end: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("page past end size = %d, want 0", len(empty))
	}
}

func TestAddChild(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	parent := makeTestExploration("hypothesis")
	child := makeTestExploration("synthesis")
	child.ParentID = parent.ID

	if err := s.Create(ctx, parent); err != nil {
		t.Fatalf("Create parent: %v", err)
	}
	if err := s.Create(ctx, child); err != nil {
		t.Fatalf("Create child: %v", err)
	}
	if err := s.AddChild(ctx, parent.ID, child.ID); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	got, _ := s.Get(ctx, parent.ID)
	if len(got.ChildIDs) != 1 || got.ChildIDs[0] != child.ID {
		t.Errorf("ChildIDs = %v, want [%s]", got.ChildIDs, child.ID)
	}

	if err := s.AddChild(ctx, "nonexistent", child.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddChild to missing parent = %v, want ErrNotFound", err)
	}
}

func TestClearTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	pending := makeTestExploration("hypothesis")
	running := makeTestExploration("hypothesis")
	completed := makeTestExploration("hypothesis")
	failed := makeTestExploration("hypothesis")
	cancelled := makeTestExploration("hypothesis")

	for _, e := range []*model.Exploration{pending, running, completed, failed, cancelled} {
		if err := s.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	for _, e := range []*model.Exploration{running, completed, failed, cancelled} {
		if _, err := s.MarkRunning(ctx, e.ID); err != nil {
			t.Fatalf("MarkRunning: %v", err)
		}
	}
	if err := s.MarkCompleted(ctx, completed.ID, &model.Outcome{ExplorationID: completed.ID}); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := s.MarkFailed(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if err := s.MarkCancelled(ctx, cancelled.ID); err != nil {
		t.Fatalf("MarkCancelled: %v", err)
	}

	removed, err := s.ClearTerminal(ctx)
	if err != nil {
		t.Fatalf("ClearTerminal: %v", err)
	}
	if len(removed) != 3 {
		t.Errorf("removed = %d ids, want 3", len(removed))
	}

	// Pending and running survive.
	if _, err := s.Get(ctx, pending.ID); err != nil {
		t.Errorf("pending exploration removed: %v", err)
	}
	if _, err := s.Get(ctx, running.ID); err != nil {
		t.Errorf("running exploration removed: %v", err)
	}
	if _, err := s.Get(ctx, completed.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("completed exploration still present: %v", err)
	}
}

func TestCounts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	running := makeTestExploration("hypothesis")
	pending := makeTestExploration("synthesis")
	for _, e := range []*model.Exploration{running, pending} {
		if err := s.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := s.MarkRunning(ctx, running.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}

	snap, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if snap.Total != 2 {
		t.Errorf("Total = %d, want 2", snap.Total)
	}
	if snap.Active != 1 {
		t.Errorf("Active = %d, want 1", snap.Active)
	}
	if snap.ByStatus[model.StatusRunning] != 1 || snap.ByStatus[model.StatusPending] != 1 {
		t.Errorf("ByStatus = %v", snap.ByStatus)
	}
	if snap.ByType["hypothesis"] != 1 || snap.ByType["synthesis"] != 1 {
		t.Errorf("ByType = %v", snap.ByType)
	}
}
