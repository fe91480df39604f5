// Package browser manages individual off-screen browsing contexts on top of
// an initialized engine handle.
//
// An Instance wraps one engine-side browsing context together with its frame
// relay and lifecycle state machine:
//
//	Created -> Loading <-> Ready -> Closing -> Closed
//
// Creation, navigation, resizing, and input injection are marshaled onto the
// UI thread class by the handle's affinity guard; the engine's frame
// deliveries flow through the instance's relay without touching the UI
// class. Close is asynchronous: it moves the instance to Closing, and the
// engine's confirmation (or a renderer crash, which surfaces the same way)
// moves it to Closed, releases the relay, and wakes AwaitClosed.
//
// Instances must reach Closed before engine shutdown. Dropping an open
// Instance without closing it is a programming error and is detected by a
// finalizer.
package browser
