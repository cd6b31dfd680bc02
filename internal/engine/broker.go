package engine

import "sync"

// completionBroker notifies waiters when an exploration reaches a terminal
// state. It is safe for concurrent use.
//
// Completed topics are retained as closed markers so that late watchers
// (those subscribing after the exploration finished) get an already-closed
// channel instead of blocking forever. Markers are dropped when the
// exploration is cleared from the store.
type completionBroker struct {
	mu     sync.Mutex
	topics map[string]*completionTopic
}

type completionTopic struct {
	ch     chan struct{}
	closed bool
}

func newCompletionBroker() *completionBroker {
	return &completionBroker{
		topics: make(map[string]*completionTopic),
	}
}

// Watch returns a channel that is closed once the exploration terminates.
// If it already terminated, the returned channel is already closed.
func (b *completionBroker) Watch(id string) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[id]
	if !ok {
		t = &completionTopic{ch: make(chan struct{})}
		b.topics[id] = t
	}
	return t.ch
}

// Done signals that the exploration reached a terminal state. Idempotent.
func (b *completionBroker) Done(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[id]
	if !ok {
		t = &completionTopic{ch: make(chan struct{})}
		b.topics[id] = t
	}
	if !t.closed {
		close(t.ch)
		t.closed = true
	}
}

// Forget drops the retained markers for the given ids.
func (b *completionBroker) Forget(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		delete(b.topics, id)
	}
}
