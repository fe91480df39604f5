package enginesim

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	browserbridge "github.com/embedkit/browser-bridge"
)

// Browser is one simulated browsing context.
type Browser struct {
	eng    *Engine
	sink   browserbridge.FrameSink
	events browserbridge.BrowserEvents

	closed atomic.Bool
	stop   chan struct{}

	mu      sync.Mutex
	size    browserbridge.Size
	url     string
	inputs  []browserbridge.InputMessage
	scratch []byte
}

// Navigate records the new URL and schedules a load cycle.
func (b *Browser) Navigate(url string) error {
	if b.closed.Load() {
		return fmt.Errorf("enginesim: browser is closed")
	}
	b.mu.Lock()
	b.url = url
	b.mu.Unlock()
	b.scheduleLoad(url)
	return nil
}

// Resize takes effect at the next paint: frames already being rendered
// deliver at the old size.
func (b *Browser) Resize(size browserbridge.Size) error {
	if b.closed.Load() {
		return fmt.Errorf("enginesim: browser is closed")
	}
	b.mu.Lock()
	b.size = size
	b.mu.Unlock()
	return nil
}

// InjectInput records the message. Use Inputs to inspect what arrived.
func (b *Browser) InjectInput(msg browserbridge.InputMessage) error {
	if b.closed.Load() {
		return fmt.Errorf("enginesim: browser is closed")
	}
	b.mu.Lock()
	b.inputs = append(b.inputs, msg)
	b.mu.Unlock()
	return nil
}

// Close confirms asynchronously through the task queue, so the confirmation
// only arrives once the host pumps.
func (b *Browser) Close() {
	b.eng.post(func() { b.finish(browserbridge.CloseRequested) })
}

// Crash simulates the renderer process dying: the compositor stops and the
// close confirmation arrives with CloseCrashed, without any host Close.
func (b *Browser) Crash() {
	b.eng.post(func() { b.finish(browserbridge.CloseCrashed) })
}

// Inputs returns a copy of every injected message, in order.
func (b *Browser) Inputs() []browserbridge.InputMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]browserbridge.InputMessage(nil), b.inputs...)
}

func (b *Browser) finish(reason browserbridge.CloseReason) {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	close(b.stop)
	b.eng.forget(b)
	b.events.OnClosed(reason)
}

// scheduleLoad queues the load-start event, and the load-end event after
// the configured delay.
func (b *Browser) scheduleLoad(url string) {
	b.eng.post(func() {
		if b.closed.Load() {
			return
		}
		b.events.OnLoadStart(url)
	})

	end := func() {
		b.eng.post(func() {
			if b.closed.Load() {
				return
			}
			b.events.OnLoadEnd(url)
		})
	}
	if d := b.eng.opts.LoadDelay; d > 0 {
		time.AfterFunc(d, end)
	} else {
		end()
	}
}

// composite is the simulated render-delivery thread: it paints a test card
// at the current size on every tick and hands the sink a buffer that will
// be overwritten by the next paint.
func (b *Browser) composite(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			b.paint()
		}
	}
}

func (b *Browser) paint() {
	b.mu.Lock()
	size := b.size
	url := b.url
	if size.Width <= 0 || size.Height <= 0 {
		b.mu.Unlock()
		return
	}

	n := size.Width * size.Height * 4
	if cap(b.scratch) < n {
		b.scratch = make([]byte, n)
	}
	pix := b.scratch[:n]

	cb, cg, cr := cardColor(url)
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			i := (y*size.Width + x) * 4
			if x == 0 || y == 0 || x == size.Width-1 || y == size.Height-1 {
				pix[i], pix[i+1], pix[i+2] = 0xFF, 0xFF, 0xFF
			} else {
				pix[i], pix[i+1], pix[i+2] = cb, cg, cr
			}
			pix[i+3] = 0xFF
		}
	}
	b.mu.Unlock()

	b.sink.OnFrameReady(pix, size)
}

// cardColor derives a stable BGR fill from the URL, so distinct pages are
// visually distinct and repeat runs render identically.
func cardColor(url string) (b, g, r byte) {
	h := fnv.New32a()
	h.Write([]byte(url))
	s := h.Sum32()
	return byte(s), byte(s >> 8), byte(s >> 16)
}
