// Package enginesim is an in-process implementation of the embedding API
// for development and tests. No real engine processes are started.
//
// The simulator reproduces the threading shape of a real engine: lifecycle
// events go through an internal task queue drained by DoMessageLoopWork, so
// nothing happens unless the host pumps, and each browsing context has its
// own compositor goroutine that delivers frames from a foreign thread into
// the sink, reusing its scratch buffer between deliveries exactly the way
// an engine reuses its shared-memory paint buffer.
//
// Rendered frames are deterministic test cards: a solid fill whose color is
// derived from the current URL, with a white border. Failure modes are
// injectable through Options and Browser.Crash.
package enginesim
