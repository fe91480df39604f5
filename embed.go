package browserbridge

import "context"

// StartConfig is the configuration handed to the engine's process tree at
// startup. It is assembled by the engine package from the host-supplied
// engine.Config after validation.
type StartConfig struct {
	// CachePath is the root directory for the engine's on-disk caches.
	CachePath string

	// GPUAcceleration enables GPU-composited rendering inside the engine.
	// When false the engine renders on the CPU.
	GPUAcceleration bool

	// RemoteDebuggingPort exposes the engine's debugging protocol on the
	// given TCP port. 0 disables remote debugging.
	RemoteDebuggingPort int
}

// BrowserOptions describes one off-screen browsing context at creation time.
type BrowserOptions struct {
	Viewport Size
	URL      string
}

// Engine is the embedding API of one browser engine process tree.
//
// Start and Stop bracket the engine's lifetime. CreateBrowser must be called
// on the UI thread class. DoMessageLoopWork performs one bounded unit of the
// engine's internal message pump and must be invoked periodically; the
// engine package owns the pumping cadence.
type Engine interface {
	// Start launches the engine's process tree. It returns an error if the
	// engine binary or resources cannot be located or the processes fail to
	// come up.
	Start(cfg StartConfig) error

	// Stop signals all child processes to terminate and blocks until the
	// engine's threads have exited or ctx is done. All browsers must be
	// closed before Stop.
	Stop(ctx context.Context) error

	// DoMessageLoopWork runs one bounded slice of the engine's message loop.
	DoMessageLoopWork()

	// CreateBrowser allocates a new off-screen browsing context. The engine
	// begins navigating opts.URL asynchronously; load progress and the
	// eventual close confirmation are reported through events, rendered
	// frames through sink.
	CreateBrowser(opts BrowserOptions, sink FrameSink, events BrowserEvents) (Browser, error)
}

// Browser is one off-screen browsing context inside the engine.
//
// All methods must be called on the UI thread class. Close is asynchronous:
// the engine confirms completion through BrowserEvents.OnClosed, after which
// the Browser must not be used again.
type Browser interface {
	Navigate(url string) error
	Resize(size Size) error
	InjectInput(msg InputMessage) error
	Close()
}

// FrameSink receives rendered frames from the engine's compositor.
//
// OnFrameReady is invoked on the engine's render-delivery thread, never the
// UI thread. pixels is tightly packed 32-bit BGRA (stride = 4*size.Width)
// and is only valid for the duration of the call; the sink must copy what it
// keeps. The sink must not block: a slow sink stalls the engine's
// compositing.
type FrameSink interface {
	OnFrameReady(pixels []byte, size Size)
}

// CloseReason says why a browsing context reached its terminal state.
type CloseReason int

const (
	// CloseRequested: the host asked for the close.
	CloseRequested CloseReason = iota

	// CloseCrashed: the engine process backing the context died. Crashes
	// always surface as a terminal close, never as a silent hang.
	CloseCrashed

	// CloseEngineShutdown: the engine's whole process tree is going away.
	CloseEngineShutdown
)

func (r CloseReason) String() string {
	switch r {
	case CloseRequested:
		return "requested"
	case CloseCrashed:
		return "crashed"
	case CloseEngineShutdown:
		return "engine_shutdown"
	default:
		return "unknown"
	}
}

// BrowserEvents receives lifecycle notifications for one browsing context.
// Callbacks arrive on engine-internal threads; implementations must hop to
// their own thread class before touching thread-affine state.
type BrowserEvents interface {
	OnLoadStart(url string)
	OnLoadEnd(url string)
	OnClosed(reason CloseReason)
}
