package engine

import (
	"sync"
	"time"
)

// statistics accumulates terminal-transition counters. Each exploration is
// recorded exactly once, at the moment it completes or fails; cancelled
// explorations only appear in the store's by_status counts.
type statistics struct {
	mu            sync.Mutex
	submitted     int
	completed     int
	failed        int
	execTime      time.Duration
	confidenceSum float64
	relevanceSum  float64
}

func newStatistics() *statistics {
	return &statistics{}
}

func (s *statistics) RecordSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted++
}

func (s *statistics) RecordCompleted(d time.Duration, confidence, relevance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	s.execTime += d
	s.confidenceSum += confidence
	s.relevanceSum += relevance
}

func (s *statistics) RecordFailed(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	s.execTime += d
}

// counters is a consistent snapshot of the raw accumulators.
type counters struct {
	Submitted     int
	Completed     int
	Failed        int
	ExecTime      time.Duration
	ConfidenceSum float64
	RelevanceSum  float64
}

func (s *statistics) Snapshot() counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return counters{
		Submitted:     s.submitted,
		Completed:     s.completed,
		Failed:        s.failed,
		ExecTime:      s.execTime,
		ConfidenceSum: s.confidenceSum,
		RelevanceSum:  s.relevanceSum,
	}
}
