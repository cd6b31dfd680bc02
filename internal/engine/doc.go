// Package engine provides the bounded-concurrency exploration engine.
// A background dispatcher drains the pending queue into a fixed pool of
// worker slots under a global concurrency cap, drives each exploration
// through its lifecycle via the store, and notifies waiters through a
// per-exploration completion broker.
package engine
