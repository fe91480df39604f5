package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred.
type Phase string

const (
	PhaseConfig   Phase = "config"   // configuration validation
	PhaseInit     Phase = "init"     // engine process-tree startup
	PhaseShutdown Phase = "shutdown" // engine process-tree teardown
	PhaseCreate   Phase = "create"   // browsing context creation
	PhaseNavigate Phase = "navigate" // navigation calls
	PhaseResize   Phase = "resize"   // viewport changes
	PhaseClose    Phase = "close"    // browsing context teardown
	PhaseInput    Phase = "input"    // input dispatch
	PhasePump     Phase = "pump"     // message-pump stepping
)

// Kind categorizes the error.
type Kind string

const (
	// KindEngineInit: the engine binary/resources are missing or
	// incompatible, or the process tree failed to start. Unrecoverable.
	KindEngineInit Kind = "engine_init"

	// KindAlreadyInitialized: a second initialize without an intervening
	// shutdown. Programmer misuse, fail fast.
	KindAlreadyInitialized Kind = "already_initialized"

	// KindInstancesStillOpen: shutdown requested while browsing contexts
	// have not reached Closed. Programmer misuse, fail fast.
	KindInstancesStillOpen Kind = "instances_still_open"

	// KindInvalidState: operation attempted outside its valid lifecycle
	// state. Recoverable; the caller may retry after reaching a valid state.
	KindInvalidState Kind = "invalid_state"

	// KindConfig: invalid configuration. Fails before any engine process
	// starts.
	KindConfig Kind = "config"

	// KindTimeout: a bounded lifecycle wait expired.
	KindTimeout Kind = "timeout"

	// KindEngine: the engine rejected an embedding call.
	KindEngine Kind = "engine"
)

// Error is the structured error type used throughout the bridge.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	State  string // lifecycle state for invalid_state errors
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.State != "" {
		b.WriteString(" in state ")
		b.WriteString(e.State)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two *Error values match on
// Phase and Kind; an empty Phase in the target matches any phase, so
// kind-only sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && e.Phase != t.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Convenience constructors for the bridge's taxonomy.

// EngineInit creates an unrecoverable engine startup error.
func EngineInit(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindEngineInit,
		Detail: detail,
		Cause:  cause,
	}
}

// AlreadyInitialized is returned for a second initialize without an
// intervening shutdown.
func AlreadyInitialized() *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindAlreadyInitialized,
		Detail: "engine handle already live in this process",
	}
}

// InstancesStillOpen is returned when shutdown is requested with browsing
// contexts that have not reached Closed.
func InstancesStillOpen(n int64) *Error {
	return &Error{
		Phase:  PhaseShutdown,
		Kind:   KindInstancesStillOpen,
		Detail: fmt.Sprintf("%d browser instance(s) not yet closed", n),
	}
}

// InvalidState creates an invalid lifecycle state error.
func InvalidState(phase Phase, state string) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindInvalidState,
		State: state,
	}
}

// Config creates a configuration validation error.
func Config(detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindConfig,
		Detail: detail,
	}
}

// Timeout creates a bounded-wait expiry error.
func Timeout(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTimeout,
		Detail: detail,
	}
}

// Engine wraps an error returned by the embedding API.
func Engine(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEngine,
		Detail: detail,
		Cause:  cause,
	}
}

// Kind-only sentinels for errors.Is checks.

// IsInvalidState reports whether err is an invalid_state error in any phase.
func IsInvalidState(err error) bool {
	return is(err, KindInvalidState)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return is(err, KindConfig)
}

// IsEngineInit reports whether err is an engine startup error.
func IsEngineInit(err error) bool {
	return is(err, KindEngineInit)
}

// IsAlreadyInitialized reports whether err is a double-initialize error.
func IsAlreadyInitialized(err error) bool {
	return is(err, KindAlreadyInitialized)
}

// IsInstancesStillOpen reports whether err is a premature-shutdown error.
func IsInstancesStillOpen(err error) bool {
	return is(err, KindInstancesStillOpen)
}

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool {
	return is(err, KindTimeout)
}

func is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
