// Package affinity enforces the thread classes the embedding API mandates.
//
// A Class is a fixed logical thread (UI, compositor) independent of which
// physical OS thread the host assigns to that role. The Guard owns one task
// queue per class and guarantees that queued tasks execute on the goroutine
// currently bound to the class.
//
// The UI class runs in one of two modes, chosen at construction:
//
//   - Dedicated: the guard owns a goroutine pinned to an OS thread with
//     runtime.LockOSThread, draining the queue for the guard's lifetime.
//   - Cooperative: the host adopts the UI class by calling PumpStep from its
//     own event loop; the binding is re-established on every pump.
//
// The compositor class is always dedicated. It exists for work the bridge
// defers off the engine's render-delivery callback (logging, metrics), so
// the callback itself never blocks.
//
// Assert is the fail-fast check: calling it from a goroutine not bound to
// the class panics. This is a programming-error class, not a recoverable
// error; continuing after a cross-thread engine call risks undefined native
// behavior.
package affinity
