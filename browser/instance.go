package browser

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/affinity"
	"github.com/embedkit/browser-bridge/engine"
	"github.com/embedkit/browser-bridge/errors"
	"github.com/embedkit/browser-bridge/frame"
)

// State is the lifecycle state of a browsing context.
type State int32

const (
	// StateCreated: the engine-side context exists; no load has started.
	StateCreated State = iota

	// StateLoading: a navigation is in flight.
	StateLoading

	// StateReady: the last navigation finished. Further navigations return
	// to StateLoading.
	StateReady

	// StateClosing: Close was requested; awaiting the engine's confirmation.
	StateClosing

	// StateClosed: terminal. The engine-side context is gone and the frame
	// relay is drained.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures one browsing context.
type Options struct {
	// Viewport is the initial render size in pixels. Required.
	Viewport browserbridge.Size

	// URL is the initial navigation target. Empty means the context starts
	// blank in StateCreated.
	URL string

	// OnLoadStart and OnLoadEnd observe navigation progress. They run on
	// the UI thread class.
	OnLoadStart func(url string)
	OnLoadEnd   func(url string)

	// OnFrame observes committed frames, OnFrameDrop discarded deliveries.
	// Both run on the compositor thread class, off the engine's delivery
	// thread.
	OnFrame     func(seq uint64, size browserbridge.Size)
	OnFrameDrop func()
}

// leakGuard exists only to carry the finalizer that detects instances
// dropped without being closed. It is reachable only through its Instance,
// so it becomes garbage exactly when the Instance does.
type leakGuard struct {
	id string
}

// Instance is one live off-screen browsing context.
type Instance struct {
	id    string
	h     *engine.Handle
	eb    browserbridge.Browser
	relay *frame.Relay
	log   *zap.Logger
	leak  *leakGuard

	state atomic.Int32

	mu       sync.Mutex
	viewport browserbridge.Size
	url      string
	reason   browserbridge.CloseReason

	closedCh chan struct{}
}

// Open creates a browsing context on the handle. The engine-side creation
// runs on the UI thread class; Open blocks until it completes. If opts.URL
// is set the engine begins loading it immediately and the instance moves to
// StateLoading when the engine reports the load.
func Open(h *engine.Handle, opts Options) (*Instance, error) {
	if h == nil || !h.Live() {
		return nil, errors.InvalidState(errors.PhaseCreate, "down")
	}
	if opts.Viewport.Width <= 0 || opts.Viewport.Height <= 0 {
		return nil, errors.Config("viewport must be positive, got %dx%d", opts.Viewport.Width, opts.Viewport.Height)
	}

	id := uuid.NewString()
	inst := &Instance{
		id:       id,
		h:        h,
		log:      h.Log().Named("browser").With(zap.String("id", id)),
		leak:     &leakGuard{id: id},
		viewport: opts.Viewport,
		url:      opts.URL,
		closedCh: make(chan struct{}),
	}
	inst.state.Store(int32(StateCreated))

	guard := h.Guard()
	hooks := frame.Hooks{}
	if opts.OnFrame != nil {
		onFrame := opts.OnFrame
		hooks.OnPublish = func(seq uint64, size browserbridge.Size) {
			guard.Post(affinity.ClassCompositor, func() { onFrame(seq, size) })
		}
	}
	if opts.OnFrameDrop != nil {
		onDrop := opts.OnFrameDrop
		hooks.OnDrop = func() {
			guard.Post(affinity.ClassCompositor, onDrop)
		}
	}
	inst.relay = frame.NewRelay(hooks)

	err := guard.Call(affinity.ClassUI, func() error {
		eb, err := h.Engine().CreateBrowser(
			browserbridge.BrowserOptions{Viewport: opts.Viewport, URL: opts.URL},
			(*frameSink)(inst),
			&eventSink{inst: inst, opts: opts},
		)
		if err != nil {
			return errors.Engine(errors.PhaseCreate, "engine rejected browser creation", err)
		}
		inst.eb = eb
		return nil
	})
	if err != nil {
		inst.relay.Close()
		return nil, err
	}

	h.RetainInstance()
	runtime.SetFinalizer(inst.leak, leakedInstance)

	inst.log.Info("browser opened",
		zap.String("url", opts.URL),
		zap.Int("width", opts.Viewport.Width),
		zap.Int("height", opts.Viewport.Height))
	return inst, nil
}

// onLeak reacts to an instance that became unreachable without Close. The
// default treats the leak as a programming error and crashes; tests swap it
// out to observe the firing.
var onLeak = func(id string) {
	panic("browser: instance " + id + " became unreachable without Close; " +
		"every browsing context must reach Closed before it is dropped")
}

func leakedInstance(l *leakGuard) {
	onLeak(l.id)
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() string { return i.id }

// State returns the current lifecycle state.
func (i *Instance) State() State {
	return State(i.state.Load())
}

// Viewport returns the most recently applied render size.
func (i *Instance) Viewport() browserbridge.Size {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.viewport
}

// URL returns the most recently requested navigation target.
func (i *Instance) URL() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.url
}

// CloseReason reports why the instance closed. Valid only once State is
// StateClosed.
func (i *Instance) CloseReason() (browserbridge.CloseReason, bool) {
	if i.State() != StateClosed {
		return 0, false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reason, true
}

// Latest returns the most recent complete frame, or false if none is
// available. Non-blocking; safe from any goroutine. The caller must Release
// the returned buffer.
func (i *Instance) Latest() (*frame.Buffer, bool) {
	return i.relay.Latest()
}

// FramesPublished returns the number of frames committed by the engine.
func (i *Instance) FramesPublished() uint64 { return i.relay.Published() }

// FramesDropped returns the number of frame deliveries discarded.
func (i *Instance) FramesDropped() uint64 { return i.relay.Dropped() }

// Navigate loads url in the context. The load itself is asynchronous;
// progress arrives through the lifecycle events. Navigating a closing or
// closed instance fails with invalid_state.
func (i *Instance) Navigate(url string) error {
	return i.h.Guard().Call(affinity.ClassUI, func() error {
		switch s := i.State(); s {
		case StateClosing, StateClosed:
			return errors.InvalidState(errors.PhaseNavigate, s.String())
		}
		if err := i.eb.Navigate(url); err != nil {
			return errors.Engine(errors.PhaseNavigate, "navigate failed", err)
		}
		i.mu.Lock()
		i.url = url
		i.mu.Unlock()
		return nil
	})
}

// Resize changes the render size. Resizes serialize on the UI class, so
// under a burst the last requested size wins; frames rendered at a stale
// size still deliver and are superseded by the first frame at the new size.
func (i *Instance) Resize(size browserbridge.Size) error {
	if size.Width <= 0 || size.Height <= 0 {
		return errors.Config("viewport must be positive, got %dx%d", size.Width, size.Height)
	}
	return i.h.Guard().Call(affinity.ClassUI, func() error {
		switch s := i.State(); s {
		case StateClosing, StateClosed:
			return errors.InvalidState(errors.PhaseResize, s.String())
		}
		if err := i.eb.Resize(size); err != nil {
			return errors.Engine(errors.PhaseResize, "resize failed", err)
		}
		i.mu.Lock()
		i.viewport = size
		i.mu.Unlock()
		return nil
	})
}

// PostInput queues one translated input message for injection on the UI
// thread class. It reports whether the message was accepted; input against
// a closing or closed instance is silently dropped (input is best-effort,
// never an error).
func (i *Instance) PostInput(msg browserbridge.InputMessage) bool {
	switch i.State() {
	case StateClosing, StateClosed:
		return false
	}
	i.h.Guard().Post(affinity.ClassUI, func() {
		switch i.State() {
		case StateClosing, StateClosed:
			return
		}
		if err := i.eb.InjectInput(msg); err != nil {
			i.log.Debug("input rejected by engine", zap.Error(err))
		}
	})
	return true
}

// Close requests teardown of the engine-side context. It is idempotent and
// asynchronous: the instance moves to StateClosing now and to StateClosed
// when the engine confirms. Use AwaitClosed to block on the confirmation.
func (i *Instance) Close() error {
	return i.h.Guard().Call(affinity.ClassUI, func() error {
		switch i.State() {
		case StateClosing, StateClosed:
			return nil
		}
		i.state.Store(int32(StateClosing))
		i.log.Info("closing browser")
		i.eb.Close()
		return nil
	})
}

// AwaitClosed blocks until the instance reaches StateClosed or ctx is done.
func (i *Instance) AwaitClosed(ctx context.Context) error {
	select {
	case <-i.closedCh:
		return nil
	case <-ctx.Done():
		return errors.Timeout(errors.PhaseClose, "context done before close confirmation")
	}
}

// finishClose runs on the UI class when the engine confirms the context is
// gone, whatever the cause.
func (i *Instance) finishClose(reason browserbridge.CloseReason) {
	if State(i.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}

	i.mu.Lock()
	i.reason = reason
	i.mu.Unlock()

	i.relay.Close()
	runtime.SetFinalizer(i.leak, nil)
	i.h.ReleaseInstance()
	close(i.closedCh)

	i.log.Info("browser closed", zap.Stringer("reason", reason))
}

// frameSink adapts the instance to the engine's frame delivery callback.
// OnFrameReady runs on the engine's render-delivery thread and does exactly
// one copy plus an atomic swap; observers run later on the compositor class.
type frameSink Instance

func (s *frameSink) OnFrameReady(pixels []byte, size browserbridge.Size) {
	(*Instance)(s).relay.Publish(pixels, size)
}

// eventSink adapts engine lifecycle callbacks onto the UI thread class.
type eventSink struct {
	inst *Instance
	opts Options
}

func (e *eventSink) OnLoadStart(url string) {
	e.inst.h.Guard().Post(affinity.ClassUI, func() {
		switch State(e.inst.state.Load()) {
		case StateCreated, StateReady, StateLoading:
			e.inst.state.Store(int32(StateLoading))
		default:
			return
		}
		if e.opts.OnLoadStart != nil {
			e.opts.OnLoadStart(url)
		}
	})
}

func (e *eventSink) OnLoadEnd(url string) {
	e.inst.h.Guard().Post(affinity.ClassUI, func() {
		if State(e.inst.state.Load()) != StateLoading {
			return
		}
		e.inst.state.Store(int32(StateReady))
		if e.opts.OnLoadEnd != nil {
			e.opts.OnLoadEnd(url)
		}
	})
}

func (e *eventSink) OnClosed(reason browserbridge.CloseReason) {
	e.inst.h.Guard().Post(affinity.ClassUI, func() {
		e.inst.finishClose(reason)
	})
}
