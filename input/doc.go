// Package input translates host-widget input events into the engine's input
// vocabulary.
//
// Host events carry fractional coordinates in [0,1] relative to the widget
// the page is drawn in; the translator scales them to the target's current
// viewport, clamps out-of-range positions to the edge, and posts the
// resulting messages for injection on the UI thread class. Input is
// best-effort: events against a closing or closed target are dropped
// silently, reported only through the boolean result.
package input
