// Package browserbridge defines the embedding API surface between a host
// application and an off-screen, multi-process browser engine.
//
// The engine (browser process, GPU process, renderers, and their dedicated
// UI/IO/render threads) is a black box behind the Engine and Browser
// interfaces in this package. Everything else in the module is the bridge:
// the plumbing that keeps the host's render loop and the engine's thread
// topology from colliding.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	browserbridge/    Root package with the Engine/Browser embedding interfaces
//	├── bridge/       Façade the host UI framework talks to (composition root)
//	├── engine/       Process-wide engine handle: init, shutdown, pump policy
//	├── browser/      One off-screen browsing context and its state machine
//	├── frame/        Atomic frame slot between compositor and host threads
//	├── input/        Host input event translation and dispatch
//	├── affinity/     Thread classes and fatal cross-thread call assertions
//	├── errors/       Structured error types
//	├── enginesim/    In-process simulated engine for tests and demos
//	└── cmd/browse/   CLI: headless frame capture and interactive viewer
//
// # Quick Start
//
//	eng := enginesim.New(enginesim.Options{})
//	b, err := bridge.New(eng, engine.Config{
//	    CachePath:  "/tmp/browse-cache",
//	    PumpPolicy: engine.PumpDedicated,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	v, err := b.OpenBrowser(browser.Options{
//	    Viewport: browserbridge.Size{Width: 800, Height: 600},
//	    URL:      "about:blank",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Host render loop: cheap, non-blocking.
//	if buf, ok := v.Poll(); ok {
//	    draw(buf.RGBA()) // or buf.BGRA() with buf.Stride() for zero-copy paths
//	    buf.Release()
//	}
//
//	v.Close()
//	v.AwaitClosed(ctx) // close is confirmed asynchronously
//	b.Shutdown(ctx)
//
// # Threading Contract
//
// The embedding API mandates thread classes, not OS threads. Lifecycle and
// navigation calls happen on the UI class; rendered frames arrive on the
// engine's render-delivery thread. The bridge enforces the discipline: calls
// arriving on the wrong class panic, mirroring the engine's own hard
// requirement: continuing after a cross-thread engine call risks undefined
// native behavior. FrameSink.OnFrameReady must return quickly; a slow sink
// stalls the engine's compositor.
//
// # Frame Ownership
//
// Pixel buffers passed to FrameSink are engine-owned and valid only for the
// duration of the callback. The frame package copies them into refcounted
// buffers; the host releases the buffer it polled once it has drawn it.
package browserbridge
