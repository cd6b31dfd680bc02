package engine

import (
	"container/heap"
	"sync"
)

// pendingItem is one queued exploration id. seq is the admission sequence
// number: a capacity-blocked item keeps its seq on requeue, so it can never
// be overtaken by a later submission of equal priority.
type pendingItem struct {
	id       string
	priority int
	seq      uint64
}

// pendingQueue orders pending explorations by priority (higher first), then
// by admission sequence (older first). It is unbounded and safe for
// concurrent use.
type pendingQueue struct {
	mu    sync.Mutex
	items pendingHeap
	seq   uint64
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{}
}

// Push enqueues a new id with the given priority.
func (q *pendingQueue) Push(id string, priority int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	heap.Push(&q.items, pendingItem{id: id, priority: priority, seq: q.seq})
}

// Requeue returns a popped item to the queue with its original sequence
// number, preserving its place relative to later submissions.
func (q *pendingQueue) Requeue(item pendingItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.items, item)
}

// Pop removes and returns the highest-priority, oldest item.
func (q *pendingQueue) Pop() (pendingItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return pendingItem{}, false
	}
	return heap.Pop(&q.items).(pendingItem), true
}

// Len returns the number of queued items.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pendingHeap implements heap.Interface.
type pendingHeap []pendingItem

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) { *h = append(*h, x.(pendingItem)) }

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
