// Package errors provides structured error types for the browser bridge.
//
// Errors are categorized by Phase (where in the bridge the error occurred)
// and Kind (error category). Both are rendered in the message:
//
//	[init] engine_init: locate engine binary (caused by: ...)
//
// Use the convenience constructors for the bridge's taxonomy:
//
//	err := errors.EngineInit("start process tree", cause)
//	err := errors.InvalidState(errors.PhaseNavigate, "closed")
//	err := errors.Config("remote debugging port out of range")
//
// All errors implement the standard error interface and support errors.Is/As.
// Two *Error values match under errors.Is when Phase and Kind agree, so
// callers can test for a class of failure without a sentinel per call site.
//
// Thread-affinity violations are deliberately NOT represented here: they are
// programming errors and panic (see the affinity package).
package errors
