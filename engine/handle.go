package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/affinity"
	"github.com/embedkit/browser-bridge/errors"
)

// live guards the one-handle-per-process rule. The engine's process tree
// cannot be started twice in one host process, so neither can the handle.
var live atomic.Bool

// maxPumpTasks bounds how much queued work one cooperative PumpStep drains,
// so a burst of posted tasks cannot stall the host's frame.
const maxPumpTasks = 64

// Handle is the process-wide engine handle. It owns the engine's process
// tree, the thread-affinity guard, and the message pump, and it counts open
// browsing contexts so Shutdown can refuse to tear down under them.
type Handle struct {
	eng   browserbridge.Engine
	cfg   Config
	guard *affinity.Guard
	log   *zap.Logger

	open atomic.Int64
	down atomic.Bool

	// dedicated pump goroutine lifetime; nil under the cooperative policy
	pumpStop chan struct{}
	pumpDone chan struct{}
}

// Initialize validates cfg, starts the engine's process tree, and brings up
// the thread classes and the message pump. It is the first bridge call a
// host makes; a second Initialize before Shutdown fails with
// already_initialized.
//
// Startup is bounded by cfg.InitTimeout. On any failure the claim is
// released so a corrected retry can succeed.
func Initialize(eng browserbridge.Engine, cfg Config) (*Handle, error) {
	if eng == nil {
		return nil, errors.Config("engine implementation is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !live.CompareAndSwap(false, true) {
		return nil, errors.AlreadyInitialized()
	}

	log := cfg.Logger.Named("engine")
	setLogger(cfg.Logger)

	log.Info("starting engine",
		zap.String("cache_path", cfg.CachePath),
		zap.Bool("gpu", cfg.GPUAcceleration),
		zap.Stringer("pump", cfg.PumpPolicy))

	startErr := make(chan error, 1)
	go func() { startErr <- eng.Start(cfg.startConfig()) }()

	select {
	case err := <-startErr:
		if err != nil {
			live.Store(false)
			return nil, errors.EngineInit("engine process tree failed to start", err)
		}
	case <-time.After(cfg.InitTimeout):
		live.Store(false)
		return nil, errors.Timeout(errors.PhaseInit, "engine did not come up within "+cfg.InitTimeout.String())
	}

	mode := affinity.Dedicated
	if cfg.PumpPolicy == PumpCooperative {
		mode = affinity.Cooperative
	}

	h := &Handle{
		eng:   eng,
		cfg:   cfg,
		guard: affinity.New(mode),
		log:   log,
	}

	if cfg.PumpPolicy == PumpDedicated {
		h.pumpStop = make(chan struct{})
		h.pumpDone = make(chan struct{})
		go h.runPump()
	}

	log.Info("engine up")
	return h, nil
}

// runPump ticks the engine's message loop on the UI class until Shutdown.
func (h *Handle) runPump() {
	defer close(h.pumpDone)

	t := time.NewTicker(h.cfg.PumpInterval)
	defer t.Stop()

	for {
		select {
		case <-h.pumpStop:
			return
		case <-t.C:
			h.guard.Post(affinity.ClassUI, h.eng.DoMessageLoopWork)
		}
	}
}

// PumpStep drains pending UI-class work on the calling goroutine and steps
// the engine's message loop once, adopting the caller as the UI thread
// class. Cooperative hosts call this every frame of their own event loop.
// It returns the number of bridge tasks run; under the dedicated policy (or
// after Shutdown) it is a no-op.
func (h *Handle) PumpStep() int {
	if h.cfg.PumpPolicy != PumpCooperative || h.down.Load() {
		return 0
	}
	n := h.guard.PumpStep(maxPumpTasks)
	h.eng.DoMessageLoopWork()
	return n
}

// Guard returns the handle's thread-affinity guard.
func (h *Handle) Guard() *affinity.Guard { return h.guard }

// Engine returns the embedded engine implementation.
func (h *Handle) Engine() browserbridge.Engine { return h.eng }

// Config returns the validated configuration the handle was created with.
func (h *Handle) Config() Config { return h.cfg }

// Log returns the handle's logger.
func (h *Handle) Log() *zap.Logger { return h.log }

// Live reports whether the handle is usable (initialized and not shut down).
func (h *Handle) Live() bool { return !h.down.Load() }

// RetainInstance records a newly opened browsing context.
func (h *Handle) RetainInstance() { h.open.Add(1) }

// ReleaseInstance records a browsing context reaching its terminal state.
func (h *Handle) ReleaseInstance() { h.open.Add(-1) }

// OpenInstances returns the number of browsing contexts not yet closed.
func (h *Handle) OpenInstances() int64 { return h.open.Load() }

// Shutdown stops the message pump, tears down the engine's process tree,
// and releases the process-wide claim so a later Initialize can succeed.
//
// Shutdown refuses to run while any browsing context is still open: the
// engine's background threads would tear the contexts down underneath their
// callbacks. Close every instance and await its terminal state first.
//
// The wait for the engine's threads is bounded by ctx and by
// cfg.ShutdownTimeout, whichever is shorter.
func (h *Handle) Shutdown(ctx context.Context) error {
	if n := h.open.Load(); n > 0 {
		return errors.InstancesStillOpen(n)
	}
	if !h.down.CompareAndSwap(false, true) {
		return errors.InvalidState(errors.PhaseShutdown, "down")
	}

	h.log.Info("shutting down engine")

	sctx, cancel := context.WithTimeout(ctx, h.cfg.ShutdownTimeout)
	defer cancel()

	g, _ := errgroup.WithContext(sctx)
	g.Go(func() error { return h.eng.Stop(sctx) })
	if h.pumpDone != nil {
		close(h.pumpStop)
		g.Go(func() error {
			<-h.pumpDone
			return nil
		})
	}

	joined := make(chan error, 1)
	go func() { joined <- g.Wait() }()

	var err error
	select {
	case werr := <-joined:
		if werr != nil {
			err = errors.Engine(errors.PhaseShutdown, "engine stop failed", werr)
		}
	case <-sctx.Done():
		err = errors.Timeout(errors.PhaseShutdown, "engine threads did not exit in time")
	}

	h.guard.Close()
	live.Store(false)

	if err != nil {
		h.log.Warn("engine shutdown incomplete", zap.Error(err))
		return err
	}
	h.log.Info("engine down")
	return nil
}
