// Package engine owns the process-wide lifecycle of the embedded browser
// engine: one Handle per process, created by Initialize and released by
// Shutdown.
//
// The handle starts the engine's process tree, runs its message pump under
// the policy declared in Config (a dedicated pinned goroutine, or
// cooperative stepping from the host's own event loop), and tracks open
// browsing contexts so Shutdown can refuse to run while any is still live.
//
// Initialization ordering is explicit by design: the engine's background
// threads exist exactly between Initialize and Shutdown, every browsing
// context must be opened after Initialize and reach Closed before Shutdown,
// and a second Initialize is rejected until the first handle is shut down.
package engine
