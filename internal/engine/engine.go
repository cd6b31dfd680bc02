package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seantiz/prospect/internal/handler"
	"github.com/seantiz/prospect/internal/model"
	"github.com/seantiz/prospect/internal/store"
)

// DefaultTimeoutS is the default per-exploration timeout in seconds when the
// parameters specify none.
const DefaultTimeoutS = 30

// ErrNotReady is returned by Wait when the timeout expires before the
// exploration terminates. The exploration itself keeps running; callers
// should re-check its status.
var ErrNotReady = errors.New("exploration not ready")

// ErrCancelled is returned when the requested outcome belongs to a cancelled
// exploration, which produces no result.
var ErrCancelled = errors.New("exploration cancelled")

// ErrStopped is returned by Submit after Shutdown has begun.
var ErrStopped = errors.New("engine stopped")

// Archiver records terminal outcomes for post-hoc inspection. Recording is
// best-effort: failures are logged, never propagated into the lifecycle.
type Archiver interface {
	Record(ctx context.Context, status, errMsg string, o *model.Outcome) error
}

// Config holds engine tuning knobs.
type Config struct {
	// MaxWorkers is the fixed size of the worker pool.
	MaxWorkers int

	// MaxConcurrent caps how many explorations may run at once. It is an
	// independent throttle at or below MaxWorkers.
	MaxConcurrent int

	// DispatchInterval is how long the dispatcher sleeps when the queue is
	// empty or capacity is exhausted.
	DispatchInterval time.Duration

	// DefaultTimeout bounds a single handler invocation when the exploration
	// parameters specify no timeout.
	DefaultTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:       4,
		MaxConcurrent:    4,
		DispatchInterval: 25 * time.Millisecond,
		DefaultTimeout:   DefaultTimeoutS * time.Second,
	}
}

// normalize fills zero fields from defaults and clamps MaxConcurrent to the
// pool size.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = c.MaxWorkers
	}
	if c.MaxConcurrent > c.MaxWorkers {
		c.MaxConcurrent = c.MaxWorkers
	}
	if c.DispatchInterval <= 0 {
		c.DispatchInterval = def.DispatchInterval
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = def.DefaultTimeout
	}
	return c
}

// Spec describes one exploration to submit.
type Spec struct {
	Type       string           `json:"type"`
	Input      json.RawMessage  `json:"input,omitempty"`
	Parameters model.Parameters `json:"parameters"`
	ParentID   string           `json:"parent_id,omitempty"`
}

// Stats is the engine telemetry snapshot.
type Stats struct {
	Total          int            `json:"total"`
	Active         int            `json:"active"`
	QueueDepth     int            `json:"queue_depth"`
	ByStatus       map[string]int `json:"by_status"`
	ByType         map[string]int `json:"by_type"`
	TotalSubmitted int            `json:"total_submitted"`
	TotalCompleted int            `json:"total_completed"`
	TotalFailed    int            `json:"total_failed"`
	SuccessRate    float64        `json:"success_rate"`
	AvgExecutionMS float64        `json:"avg_execution_ms"`
	AvgConfidence  float64        `json:"avg_confidence"`
	AvgRelevance   float64        `json:"avg_relevance"`
}

// runHandle tracks one executing exploration: its cancellation function and
// a once-only release of the worker slot it occupies.
type runHandle struct {
	cancel  context.CancelFunc
	release func()
}

// Engine orchestrates bounded-concurrency exploration execution.
type Engine struct {
	store    store.Store
	registry *handler.Registry
	archive  Archiver
	logger   *slog.Logger
	cfg      Config

	queue  *pendingQueue
	broker *completionBroker
	stats  *statistics
	slots  chan struct{}

	// active counts admitted explorations from dispatch until slot release.
	// It is the counter the max_concurrent cap is enforced against.
	active atomic.Int64

	mu      sync.Mutex
	running map[string]*runHandle
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an exploration engine. archive may be nil to disable outcome
// archiving. Call Start before submitting.
func New(s store.Store, reg *handler.Registry, archive Archiver, logger *slog.Logger, cfg Config) *Engine {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		store:    s,
		registry: reg,
		archive:  archive,
		logger:   logger,
		cfg:      cfg,
		queue:    newPendingQueue(),
		broker:   newCompletionBroker(),
		stats:    newStatistics(),
		slots:    make(chan struct{}, cfg.MaxWorkers),
		running:  make(map[string]*runHandle),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background dispatcher.
func (e *Engine) Start() {
	preinitMetrics(e.registry.Types())

	e.wg.Add(1)
	go e.dispatch()

	e.logger.Info("engine started",
		"max_workers", e.cfg.MaxWorkers,
		"max_concurrent", e.cfg.MaxConcurrent,
	)
}

// Submit creates a pending exploration and enqueues it. It never blocks on
// execution; the record is visible via Get before Submit returns.
func (e *Engine) Submit(ctx context.Context, spec Spec) (*model.Exploration, error) {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}

	if spec.ParentID != "" {
		if _, err := e.store.Get(ctx, spec.ParentID); err != nil {
			return nil, fmt.Errorf("parent %s: %w", spec.ParentID, err)
		}
	}

	exp := &model.Exploration{
		ID:         model.NewID(),
		Type:       spec.Type,
		Input:      spec.Input,
		Parameters: spec.Parameters,
		Status:     model.StatusPending,
		ParentID:   spec.ParentID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.store.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("create exploration: %w", err)
	}
	if spec.ParentID != "" {
		if err := e.store.AddChild(ctx, spec.ParentID, exp.ID); err != nil {
			return nil, fmt.Errorf("link parent %s: %w", spec.ParentID, err)
		}
	}

	e.stats.RecordSubmitted()
	explorationsSubmitted.WithLabelValues(exp.Type).Inc()

	e.queue.Push(exp.ID, spec.Parameters.Priority)
	queueDepth.Set(float64(e.queue.Len()))

	return exp, nil
}

// Get returns the current record for an exploration.
func (e *Engine) Get(ctx context.Context, id string) (*model.Exploration, error) {
	return e.store.Get(ctx, id)
}

// Result returns the outcome of a terminal exploration: the handler's outcome
// for completed, a zero-confidence error outcome for failed. Pending and
// running return ErrNotReady, cancelled returns ErrCancelled.
func (e *Engine) Result(ctx context.Context, id string) (*model.Outcome, error) {
	exp, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return outcomeFor(exp)
}

// outcomeFor maps a record to its uniform outcome shape.
func outcomeFor(exp *model.Exploration) (*model.Outcome, error) {
	switch exp.Status {
	case model.StatusCompleted:
		return exp.Result, nil
	case model.StatusFailed:
		return failureOutcome(exp), nil
	case model.StatusCancelled:
		return nil, ErrCancelled
	default:
		return nil, ErrNotReady
	}
}

// failureOutcome synthesizes the best-effort outcome for a failed
// exploration: confidence 0 with the error embedded in the reasoning, so
// callers always get a uniformly shaped result.
func failureOutcome(exp *model.Exploration) *model.Outcome {
	var durationMS int
	if exp.StartedAt != nil && exp.CompletedAt != nil {
		durationMS = int(exp.CompletedAt.Sub(*exp.StartedAt).Milliseconds())
	}
	return &model.Outcome{
		ExplorationID: exp.ID,
		Type:          exp.Type,
		Confidence:    0,
		Reasoning:     fmt.Sprintf("exploration failed: %s", exp.Error),
		DurationMS:    durationMS,
	}
}

// Wait blocks until the exploration terminates or the timeout expires.
// Timeout expiry returns ErrNotReady and never cancels the exploration.
func (e *Engine) Wait(ctx context.Context, id string, timeout time.Duration) (*model.Outcome, error) {
	exp, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(exp.Status) {
		return outcomeFor(exp)
	}

	done := e.broker.Watch(id)

	// Re-check after subscribing so a completion between the first check and
	// the subscription cannot be missed.
	exp, err = e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if model.IsTerminal(exp.Status) {
		return outcomeFor(exp)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		exp, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return outcomeFor(exp)
	case <-timer.C:
		return nil, ErrNotReady
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels a running exploration. It returns false if the exploration
// is not found or not running. The worker slot is released from the engine's
// bookkeeping immediately; the handler is signalled through its context but
// an uncooperative handler is not preempted, and its late return is discarded.
func (e *Engine) Cancel(ctx context.Context, id string) bool {
	e.mu.Lock()
	h, ok := e.running[id]
	if ok {
		delete(e.running, id)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}

	exp, err := e.store.Get(ctx, id)
	if err != nil {
		e.logger.Error("cancel: get exploration", "exploration_id", id, "error", err)
		exp = &model.Exploration{ID: id}
	}

	if err := e.store.MarkCancelled(ctx, id); err != nil {
		e.logger.Error("cancel: mark cancelled", "exploration_id", id, "error", err)
	}

	h.cancel()
	h.release()
	explorationsTerminal.WithLabelValues(exp.Type, model.StatusCancelled).Inc()
	e.broker.Done(id)

	e.logger.Info("exploration cancelled", "exploration_id", id, "type", exp.Type)
	return true
}

// RunBatch submits all specs, then waits on each up to waitTimeout,
// collecting whichever outcomes materialize. Explorations that never finish
// in time are silently absent; a count mismatch is the only signal.
func (e *Engine) RunBatch(ctx context.Context, specs []Spec, waitTimeout time.Duration) []*model.Outcome {
	ids := make([]string, 0, len(specs))
	for i, spec := range specs {
		exp, err := e.Submit(ctx, spec)
		if err != nil {
			e.logger.Error("batch submit", "index", i, "type", spec.Type, "error", err)
			continue
		}
		ids = append(ids, exp.ID)
	}

	outcomes := make([]*model.Outcome, 0, len(ids))
	for _, id := range ids {
		o, err := e.Wait(ctx, id, waitTimeout)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// ClearCompleted removes every terminal exploration from the store and drops
// their completion markers. Pending and running explorations are untouched.
func (e *Engine) ClearCompleted(ctx context.Context) (int, error) {
	removed, err := e.store.ClearTerminal(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear terminal: %w", err)
	}
	e.broker.Forget(removed...)
	return len(removed), nil
}

// Statistics returns the engine telemetry snapshot.
func (e *Engine) Statistics(ctx context.Context) (*Stats, error) {
	snap, err := e.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("store counts: %w", err)
	}
	c := e.stats.Snapshot()

	stats := &Stats{
		Total:          snap.Total,
		Active:         snap.Active,
		QueueDepth:     e.queue.Len(),
		ByStatus:       snap.ByStatus,
		ByType:         snap.ByType,
		TotalSubmitted: c.Submitted,
		TotalCompleted: c.Completed,
		TotalFailed:    c.Failed,
	}
	if terminal := c.Completed + c.Failed; terminal > 0 {
		stats.SuccessRate = float64(c.Completed) / float64(terminal)
		stats.AvgExecutionMS = float64(c.ExecTime.Milliseconds()) / float64(terminal)
	}
	if c.Completed > 0 {
		stats.AvgConfidence = c.ConfidenceSum / float64(c.Completed)
		stats.AvgRelevance = c.RelevanceSum / float64(c.Completed)
	}
	return stats, nil
}

// Shutdown stops the dispatcher and cancels every running exploration.
// Cancellation is advisory: worker goroutines stuck in uncooperative handler
// code are abandoned and their late returns discarded. Submit rejects new
// work once Shutdown has begun.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	handles := e.running
	e.running = make(map[string]*runHandle)
	e.mu.Unlock()

	e.cancel()

	for id, h := range handles {
		if err := e.store.MarkCancelled(context.Background(), id); err != nil {
			e.logger.Error("shutdown: mark cancelled", "exploration_id", id, "error", err)
		}
		h.cancel()
		h.release()
		e.broker.Done(id)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// dispatch is the background loop draining the pending queue into worker
// slots under the concurrency cap. A capacity-blocked item is requeued with
// its original admission sequence, so it cannot be starved by later
// submissions.
func (e *Engine) dispatch() {
	defer e.wg.Done()

	for {
		if e.ctx.Err() != nil {
			return
		}

		item, ok := e.queue.Pop()
		if !ok {
			if e.sleep() {
				return
			}
			continue
		}

		if e.active.Load() >= int64(e.cfg.MaxConcurrent) {
			e.queue.Requeue(item)
			if e.sleep() {
				return
			}
			continue
		}

		select {
		case e.slots <- struct{}{}:
		default:
			// Pool exhausted: slots not yet returned by finishing workers.
			e.queue.Requeue(item)
			if e.sleep() {
				return
			}
			continue
		}

		e.active.Add(1)
		activeExplorations.Inc()
		queueDepth.Set(float64(e.queue.Len()))
		go e.execute(item.id)
	}
}

// sleep pauses for the dispatch interval. Returns true if the engine is
// shutting down.
func (e *Engine) sleep() bool {
	select {
	case <-e.ctx.Done():
		return true
	case <-time.After(e.cfg.DispatchInterval):
		return false
	}
}

// releaseSlot returns a worker slot to the pool and retires the admission.
func (e *Engine) releaseSlot() {
	<-e.slots
	e.active.Add(-1)
	activeExplorations.Dec()
}

// execute runs one exploration in a worker slot: running transition, handler
// invocation with panic containment, terminal transition, statistics, archive
// and completion notification. The slot is released exactly once on every
// path.
func (e *Engine) execute(id string) {
	exp, err := e.store.MarkRunning(context.Background(), id)
	if err != nil {
		// Cancelled or cleared while queued; the slot was never really used.
		e.logger.Debug("skip dispatched exploration", "exploration_id", id, "error", err)
		e.releaseSlot()
		return
	}

	timeout := e.cfg.DefaultTimeout
	if exp.Parameters.TimeoutS != nil && *exp.Parameters.TimeoutS > 0 {
		timeout = time.Duration(*exp.Parameters.TimeoutS) * time.Second
	}

	runCtx, cancelRun := context.WithTimeout(context.Background(), timeout)
	defer cancelRun()

	var releaseOnce sync.Once
	h := &runHandle{
		cancel:  cancelRun,
		release: func() { releaseOnce.Do(e.releaseSlot) },
	}
	e.mu.Lock()
	e.running[id] = h
	e.mu.Unlock()

	start := time.Now()
	res, err := e.invoke(runCtx, exp)
	duration := time.Since(start)

	// If Cancel or Shutdown already claimed this exploration, its terminal
	// state is written and the slot released; the late return is discarded.
	e.mu.Lock()
	_, stillOurs := e.running[id]
	delete(e.running, id)
	e.mu.Unlock()
	if !stillOurs {
		e.logger.Debug("discarding result of cancelled exploration",
			"exploration_id", id, "type", exp.Type)
		return
	}
	defer h.release()

	if err != nil {
		errMsg := err.Error()
		if runCtx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("exploration timed out after %s", timeout)
		}
		e.finishFailed(exp, duration, errMsg)
		return
	}

	outcome := &model.Outcome{
		ExplorationID:   exp.ID,
		Type:            exp.Type,
		Outcome:         res.Outcome,
		Confidence:      res.Confidence,
		Reasoning:       res.Reasoning,
		Insights:        res.Insights,
		CrossReferences: res.CrossReferences,
		Possibilities:   res.Possibilities,
		RelevanceScore:  res.RelevanceScore,
		DurationMS:      int(duration.Milliseconds()),
	}

	if err := e.store.MarkCompleted(context.Background(), id, outcome); err != nil {
		e.logger.Error("mark completed", "exploration_id", id, "error", err)
		e.broker.Done(id)
		return
	}

	e.stats.RecordCompleted(duration, res.Confidence, res.RelevanceScore)
	explorationsTerminal.WithLabelValues(exp.Type, model.StatusCompleted).Inc()
	executionDuration.Observe(duration.Seconds())
	e.archiveOutcome(model.StatusCompleted, "", outcome)
	e.broker.Done(id)

	e.logger.Info("exploration completed",
		"exploration_id", id,
		"type", exp.Type,
		"confidence", res.Confidence,
		"duration_ms", outcome.DurationMS,
	)
}

// invoke resolves and runs the handler, containing panics so one bad task
// cannot crash the engine.
func (e *Engine) invoke(ctx context.Context, exp *model.Exploration) (res handler.Result, err error) {
	h, err := e.registry.Resolve(exp.Type)
	if err != nil {
		return handler.Result{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return h.Explore(ctx, exp.Input, exp.Parameters)
}

// finishFailed marks an exploration as failed and records the uniform
// zero-confidence outcome.
func (e *Engine) finishFailed(exp *model.Exploration, duration time.Duration, errMsg string) {
	id := exp.ID

	if err := e.store.MarkFailed(context.Background(), id, errMsg); err != nil {
		e.logger.Error("mark failed", "exploration_id", id, "error", err)
		e.broker.Done(id)
		return
	}

	e.stats.RecordFailed(duration)
	explorationsTerminal.WithLabelValues(exp.Type, model.StatusFailed).Inc()
	executionDuration.Observe(duration.Seconds())

	outcome := &model.Outcome{
		ExplorationID: id,
		Type:          exp.Type,
		Confidence:    0,
		Reasoning:     fmt.Sprintf("exploration failed: %s", errMsg),
		DurationMS:    int(duration.Milliseconds()),
	}
	e.archiveOutcome(model.StatusFailed, errMsg, outcome)
	e.broker.Done(id)

	e.logger.Error("exploration failed",
		"exploration_id", id,
		"type", exp.Type,
		"error", errMsg,
	)
}

// archiveOutcome records a terminal outcome, best-effort.
func (e *Engine) archiveOutcome(status, errMsg string, o *model.Outcome) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Record(context.Background(), status, errMsg, o); err != nil {
		e.logger.Error("archive outcome", "exploration_id", o.ExplorationID, "error", err)
	}
}
