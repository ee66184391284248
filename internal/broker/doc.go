// Package broker implements the in-memory event broker at the center
// of the update delivery subsystem. It keeps a bounded FIFO of recent
// publishes per column and a registry of parked long-poll waiters, and
// guarantees that every waiter is resolved exactly once, either by a
// matching publish or by its own deadline.
package broker
