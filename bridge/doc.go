// Package bridge is the façade the host embeds: one Bridge per process,
// wrapping engine initialization, browsing-context management, frame
// polling, and input dispatch behind a small surface.
//
// A host's render loop needs four calls: OpenBrowser to get a View, Poll
// each frame for the latest rendered buffer, Dispatch for input, and Close
// followed by AwaitClosed before Shutdown. Under the cooperative pump
// policy Poll also steps the engine's message loop, so a host that polls
// is a host that pumps.
package bridge
