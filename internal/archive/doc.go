// Package archive implements the document archiving engines that track
// the set of files open in an editing application.
//
// Two engines share one substrate: Multi manages a bounded, ordered
// list of open documents; Single manages exactly one current document.
// Both serialize every open/save/close/select request - whether issued
// by a caller or produced by completed background disk I/O - through a
// multi-producer/single-consumer action queue drained by one consumer
// goroutine.
//
// ARCHITECTURE:
//
// Single-Writer Consumer Loop:
// All registry mutation happens in the goroutine running Run (or, in
// tests, the caller of Drain). This ensures:
// - Actions are processed one at a time, in send order
// - The document registry needs no locking
// - Event-sink callbacks observe a consistent registry
//
// Background I/O Workers:
// Each open or save request spawns a goroutine whose entire contract
// is "perform one blocking I/O operation, then enqueue exactly one
// result action". Workers hold no shared state. At most one open
// worker and one save worker may be in flight per engine; the consumer
// joins the prior worker of the same kind before spawning a new one.
// This is the single deliberate blocking point of the consumer loop
// and is bounded by one disk operation; a worker never waits on the
// consumer, so it cannot deadlock.
//
// Event Sink:
// Outbound notifications are append-only callback registries invoked
// synchronously on the consumer goroutine, in registration order.
// Callbacks must not re-enter the engine except through the request
// API (which only enqueues).
package archive
