package engine

import (
	"testing"
	"time"
)

func TestBrokerWatchBeforeDone(t *testing.T) {
	b := newCompletionBroker()
	ch := b.Watch("x")

	select {
	case <-ch:
		t.Fatal("channel closed before Done")
	default:
	}

	b.Done("x")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Done")
	}
}

func TestBrokerLateWatcher(t *testing.T) {
	b := newCompletionBroker()
	b.Done("x")

	select {
	case <-b.Watch("x"):
	case <-time.After(time.Second):
		t.Fatal("late watcher did not get a closed channel")
	}
}

func TestBrokerDoneIdempotent(t *testing.T) {
	b := newCompletionBroker()
	b.Done("x")
	b.Done("x") // must not panic on double close
}

func TestBrokerForget(t *testing.T) {
	b := newCompletionBroker()
	b.Done("x")
	b.Forget("x")

	// After Forget the id behaves like a fresh, unfinished exploration.
	select {
	case <-b.Watch("x"):
		t.Error("Watch after Forget returned a closed channel")
	default:
	}
}
