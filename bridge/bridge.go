package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/browser"
	"github.com/embedkit/browser-bridge/engine"
	"github.com/embedkit/browser-bridge/frame"
	"github.com/embedkit/browser-bridge/input"
)

// Bridge is the host-facing façade over one initialized engine.
type Bridge struct {
	h   *engine.Handle
	log *zap.Logger
	m   *metrics

	mu    sync.Mutex
	views map[string]*View
}

// New validates cfg, initializes the engine, and returns the bridge.
// Collectors attach to cfg.Metrics only once initialization has succeeded,
// so a failed New leaves the registry untouched and a retry is clean.
func New(eng browserbridge.Engine, cfg engine.Config) (*Bridge, error) {
	h, err := engine.Initialize(eng, cfg)
	if err != nil {
		return nil, err
	}
	m := newMetrics(cfg.Metrics)
	return &Bridge{
		h:     h,
		log:   h.Log().Named("bridge"),
		m:     m,
		views: make(map[string]*View),
	}, nil
}

// PumpStep steps the engine under the cooperative policy; see
// engine.Handle.PumpStep. Hosts that Poll every frame never need to call
// this directly.
func (b *Bridge) PumpStep() int {
	return b.h.PumpStep()
}

// Handle exposes the underlying engine handle.
func (b *Bridge) Handle() *engine.Handle { return b.h }

// OpenBrowser creates a browsing context and returns its view.
func (b *Bridge) OpenBrowser(opts browser.Options) (*View, error) {
	userFrame := opts.OnFrame
	opts.OnFrame = func(seq uint64, size browserbridge.Size) {
		b.m.framesPublished.Inc()
		if userFrame != nil {
			userFrame(seq, size)
		}
	}
	userDrop := opts.OnFrameDrop
	opts.OnFrameDrop = func() {
		b.m.framesDropped.Inc()
		if userDrop != nil {
			userDrop()
		}
	}

	inst, err := browser.Open(b.h, opts)
	if err != nil {
		return nil, err
	}
	b.m.browsersOpened.Inc()

	v := &View{b: b, inst: inst}
	v.tr = input.New(inst)
	v.tr.OnDrop = func(input.Event) { b.m.inputDropped.Inc() }

	b.mu.Lock()
	b.views[inst.ID()] = v
	b.mu.Unlock()

	// Account the eventual close, whatever triggers it, and drop the view
	// from the registry once it is terminal.
	go func() {
		_ = inst.AwaitClosed(context.Background())
		if reason, ok := inst.CloseReason(); ok {
			b.m.browsersClosed.WithLabelValues(reason.String()).Inc()
			b.log.Debug("view retired", zap.String("id", inst.ID()), zap.Stringer("reason", reason))
		}
		b.mu.Lock()
		delete(b.views, inst.ID())
		b.mu.Unlock()
	}()

	return v, nil
}

// View returns the view with the given id, if it is still open.
func (b *Bridge) View(id string) (*View, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[id]
	return v, ok
}

// CloseAll requests close on every open view and waits for each to reach
// its terminal state or for ctx to expire.
func (b *Bridge) CloseAll(ctx context.Context) error {
	b.mu.Lock()
	open := make([]*View, 0, len(b.views))
	for _, v := range b.views {
		open = append(open, v)
	}
	b.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, v := range open {
		v := v
		g.Go(func() error {
			if err := v.Close(); err != nil {
				return err
			}
			return v.AwaitClosed(ctx)
		})
	}
	return g.Wait()
}

// Shutdown tears the engine down. Every view must be closed first; see
// engine.Handle.Shutdown.
func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.h.Shutdown(ctx)
}

// View is the host's handle on one browsing context.
type View struct {
	b    *Bridge
	inst *browser.Instance
	tr   *input.Translator
}

// ID returns the view's unique identifier.
func (v *View) ID() string { return v.inst.ID() }

// State returns the underlying lifecycle state.
func (v *View) State() browser.State { return v.inst.State() }

// Viewport returns the current render size.
func (v *View) Viewport() browserbridge.Size { return v.inst.Viewport() }

// Navigate loads url in the view.
func (v *View) Navigate(url string) error { return v.inst.Navigate(url) }

// Resize changes the render size.
func (v *View) Resize(size browserbridge.Size) error { return v.inst.Resize(size) }

// Dispatch translates and injects one input event, reporting acceptance.
func (v *View) Dispatch(ev input.Event) bool { return v.tr.Dispatch(ev) }

// Poll returns the latest complete frame, or false if none is available.
// Under the cooperative pump policy it also steps the engine's message
// loop, so calling Poll once per host frame keeps the engine serviced. The
// caller must Release the returned buffer.
func (v *View) Poll() (*frame.Buffer, bool) {
	v.b.m.polls.Inc()
	v.b.h.PumpStep()
	return v.inst.Latest()
}

// Close requests teardown; AwaitClosed blocks on the confirmation.
func (v *View) Close() error { return v.inst.Close() }

// AwaitClosed blocks until the view is terminal or ctx is done.
func (v *View) AwaitClosed(ctx context.Context) error { return v.inst.AwaitClosed(ctx) }

// CloseReason reports why the view closed, once terminal.
func (v *View) CloseReason() (browserbridge.CloseReason, bool) { return v.inst.CloseReason() }
