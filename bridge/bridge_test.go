package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	browserbridge "github.com/embedkit/browser-bridge"
	"github.com/embedkit/browser-bridge/browser"
	"github.com/embedkit/browser-bridge/engine"
	"github.com/embedkit/browser-bridge/enginesim"
	"github.com/embedkit/browser-bridge/errors"
	"github.com/embedkit/browser-bridge/input"
)

func policies(t *testing.T, run func(t *testing.T, policy engine.PumpPolicy)) {
	t.Helper()
	t.Run("dedicated", func(t *testing.T) { run(t, engine.PumpDedicated) })
	t.Run("cooperative", func(t *testing.T) { run(t, engine.PumpCooperative) })
}

func newBridge(t *testing.T, policy engine.PumpPolicy, simOpts enginesim.Options) (*Bridge, *enginesim.Engine) {
	t.Helper()
	if simOpts.FrameInterval == 0 {
		simOpts.FrameInterval = time.Millisecond
	}
	sim := enginesim.New(simOpts)

	cfg := engine.Config{CachePath: t.TempDir(), PumpPolicy: policy}
	if policy == engine.PumpDedicated {
		cfg.PumpInterval = time.Millisecond
	}
	b, err := New(sim, cfg)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	return b, sim
}

// pollUntil drives the bridge the way a host render loop would: one Poll
// per iteration (which pumps under the cooperative policy) until cond holds.
func pollUntil(t *testing.T, v *View, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		if buf, ok := v.Poll(); ok {
			buf.Release()
		}
		time.Sleep(time.Millisecond)
	}
}

func closeView(t *testing.T, v *View) {
	t.Helper()
	if err := v.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	pollUntil(t, v, "close confirmation", func() bool { return v.State() == browser.StateClosed })
}

func shutdownBridge(t *testing.T, b *Bridge) {
	t.Helper()
	if err := b.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestEndToEnd(t *testing.T) {
	policies(t, func(t *testing.T, policy engine.PumpPolicy) {
		b, _ := newBridge(t, policy, enginesim.Options{})

		size := browserbridge.Size{Width: 800, Height: 600}
		v, err := b.OpenBrowser(browser.Options{Viewport: size, URL: "https://example.com"})
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		pollUntil(t, v, "page ready", func() bool { return v.State() == browser.StateReady })

		var seq uint64
		pollUntil(t, v, "first frame", func() bool {
			buf, ok := v.Poll()
			if !ok {
				return false
			}
			defer buf.Release()
			seq = buf.Seq()
			if !buf.Size().Eq(size) {
				t.Fatalf("frame size = %v, want %v", buf.Size(), size)
			}
			// Test card border.
			if pix := buf.BGRA(); pix[0] != 0xFF || pix[1] != 0xFF || pix[2] != 0xFF {
				t.Fatalf("corner pixel = %v, want white", pix[:4])
			}
			return true
		})
		if seq == 0 {
			t.Error("frame sequence must start at 1")
		}

		closeView(t, v)
		if reason, ok := v.CloseReason(); !ok || reason != browserbridge.CloseRequested {
			t.Errorf("close reason = %v/%v, want requested", reason, ok)
		}
		if _, ok := v.Poll(); ok {
			t.Error("poll after close must report no frame")
		}

		shutdownBridge(t, b)
	})
}

func TestResizeSupersede(t *testing.T) {
	policies(t, func(t *testing.T, policy engine.PumpPolicy) {
		b, _ := newBridge(t, policy, enginesim.Options{})

		v, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 800, Height: 600}})
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		pollUntil(t, v, "first frame", func() bool {
			buf, ok := v.Poll()
			if ok {
				buf.Release()
			}
			return ok
		})

		newSize := browserbridge.Size{Width: 400, Height: 300}
		if err := v.Resize(newSize); err != nil {
			t.Fatalf("resize: %v", err)
		}

		// Frames at the stale size may still arrive; eventually the latest
		// frame is at the new size and stays there.
		pollUntil(t, v, "resized frame", func() bool {
			buf, ok := v.Poll()
			if !ok {
				return false
			}
			defer buf.Release()
			return buf.Size().Eq(newSize)
		})

		closeView(t, v)
		shutdownBridge(t, b)
	})
}

func TestCrashReachesClosed(t *testing.T) {
	policies(t, func(t *testing.T, policy engine.PumpPolicy) {
		b, sim := newBridge(t, policy, enginesim.Options{})

		v, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 64, Height: 64}})
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		sim.Last().Crash()
		pollUntil(t, v, "crash to closed", func() bool { return v.State() == browser.StateClosed })

		if reason, ok := v.CloseReason(); !ok || reason != browserbridge.CloseCrashed {
			t.Errorf("close reason = %v/%v, want crashed", reason, ok)
		}

		shutdownBridge(t, b)
	})
}

func TestShutdownRefusedUnderOpenView(t *testing.T) {
	b, _ := newBridge(t, engine.PumpDedicated, enginesim.Options{})

	v, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 64, Height: 64}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := b.Shutdown(context.Background()); !errors.IsInstancesStillOpen(err) {
		t.Fatalf("shutdown with open view: %v, want instances_still_open", err)
	}

	closeView(t, v)
	shutdownBridge(t, b)
}

func TestInputEndToEnd(t *testing.T) {
	policies(t, func(t *testing.T, policy engine.PumpPolicy) {
		b, sim := newBridge(t, policy, enginesim.Options{})

		v, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 100, Height: 50}})
		if err != nil {
			t.Fatalf("open: %v", err)
		}

		if !v.Dispatch(input.PointerEvent{X: 1.0, Y: 0.0, Button: browserbridge.MouseLeft, Action: browserbridge.MouseDown}) {
			t.Fatal("dispatch refused on a live view")
		}

		sb := sim.Last()
		pollUntil(t, v, "input injection", func() bool { return len(sb.Inputs()) == 1 })

		msg := sb.Inputs()[0].(browserbridge.MouseMessage)
		if msg.Pos.X != 99 || msg.Pos.Y != 0 {
			t.Errorf("injected pos = %+v, want 99,0", msg.Pos)
		}

		closeView(t, v)

		// Input against the closed view drops silently.
		if v.Dispatch(input.KeyEvent{Rune: 'a', Down: true}) {
			t.Error("dispatch against a closed view must report false")
		}

		shutdownBridge(t, b)
	})
}

func TestCloseAll(t *testing.T) {
	b, _ := newBridge(t, engine.PumpDedicated, enginesim.Options{})

	for i := 0; i < 3; i++ {
		if _, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 32, Height: 32}}); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if b.Handle().OpenInstances() != 3 {
		t.Fatalf("open instances = %d, want 3", b.Handle().OpenInstances())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.CloseAll(ctx); err != nil {
		t.Fatalf("close all: %v", err)
	}
	if b.Handle().OpenInstances() != 0 {
		t.Errorf("open instances = %d after close all", b.Handle().OpenInstances())
	}

	shutdownBridge(t, b)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	sim := enginesim.New(enginesim.Options{FrameInterval: time.Millisecond})

	b, err := New(sim, engine.Config{
		CachePath:    t.TempDir(),
		PumpPolicy:   engine.PumpDedicated,
		PumpInterval: time.Millisecond,
		Metrics:      reg,
	})
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}

	v, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 16, Height: 16}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pollUntil(t, v, "first frame", func() bool {
		buf, ok := v.Poll()
		if ok {
			buf.Release()
		}
		return ok
	})
	closeView(t, v)

	gather := func() map[string]float64 {
		mfs, err := reg.Gather()
		if err != nil {
			t.Fatalf("gather: %v", err)
		}
		got := map[string]float64{}
		for _, mf := range mfs {
			for _, m := range mf.GetMetric() {
				got[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
		return got
	}

	// The close accounting runs on its own goroutine after the confirmation.
	deadline := time.Now().Add(2 * time.Second)
	got := gather()
	for got["browserbridge_browsers_closed_total"] != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("closed counter = %v, want 1", got["browserbridge_browsers_closed_total"])
		}
		time.Sleep(time.Millisecond)
		got = gather()
	}

	if got["browserbridge_browsers_opened_total"] != 1 {
		t.Errorf("opened counter = %v, want 1", got["browserbridge_browsers_opened_total"])
	}
	if got["browserbridge_frames_published_total"] < 1 {
		t.Errorf("published counter = %v, want at least 1", got["browserbridge_frames_published_total"])
	}

	shutdownBridge(t, b)
}

func TestMetricsRegistrySurvivesRebuild(t *testing.T) {
	reg := prometheus.NewRegistry()

	// A rejected config must leave the registry untouched, so the corrected
	// retry below can attach its collectors.
	_, err := New(enginesim.New(enginesim.Options{}), engine.Config{Metrics: reg})
	if !errors.IsConfig(err) {
		t.Fatalf("new with empty cache path: %v, want config error", err)
	}

	open := func() *Bridge {
		b, err := New(enginesim.New(enginesim.Options{FrameInterval: time.Millisecond}), engine.Config{
			CachePath:    t.TempDir(),
			PumpPolicy:   engine.PumpDedicated,
			PumpInterval: time.Millisecond,
			Metrics:      reg,
		})
		if err != nil {
			t.Fatalf("new bridge: %v", err)
		}
		v, err := b.OpenBrowser(browser.Options{Viewport: browserbridge.Size{Width: 16, Height: 16}})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		closeView(t, v)
		return b
	}

	shutdownBridge(t, open())

	// Rebuilding against the same registry reuses the collectors already
	// registered by the first bridge.
	shutdownBridge(t, open())

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var opened float64
	for _, mf := range mfs {
		if mf.GetName() == "browserbridge_browsers_opened_total" {
			for _, m := range mf.GetMetric() {
				opened += m.GetCounter().GetValue()
			}
		}
	}
	if opened != 2 {
		t.Errorf("opened counter = %v, want 2 across both bridges", opened)
	}
}
