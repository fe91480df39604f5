package frame

import (
	"sync"
	"sync/atomic"

	browserbridge "github.com/embedkit/browser-bridge"
)

// Hooks observe relay traffic. Both callbacks run on the publishing
// (compositor) thread and must be cheap; heavy work belongs on the
// compositor class of the affinity guard.
type Hooks struct {
	// OnPublish fires after a frame was committed to the slot.
	OnPublish func(seq uint64, size browserbridge.Size)

	// OnDrop fires when a delivered frame was discarded (relay closed, or
	// malformed pixel data).
	OnDrop func()
}

// Relay is the frame slot for one browsing context: written by the engine's
// compositor thread, read by the host's render loop.
type Relay struct {
	cur    atomic.Pointer[Buffer]
	seq    atomic.Uint64
	closed atomic.Bool

	published atomic.Uint64
	dropped   atomic.Uint64

	pool  sync.Pool
	hooks Hooks
}

// NewRelay creates an empty relay. Latest reports no frame until the first
// Publish.
func NewRelay(hooks Hooks) *Relay {
	r := &Relay{hooks: hooks}
	r.pool.New = func() any {
		return &Buffer{relay: r}
	}
	return r
}

// Publish commits one delivered frame. It runs on the engine's
// render-delivery thread and is bounded: one copy of the pixel data, an
// atomic swap, no locks held across the copy, no format conversion.
//
// Malformed deliveries (pixel length not matching 4*w*h) and deliveries
// after Close are dropped: a missing frame is preferable to failing the
// render path.
func (r *Relay) Publish(pixels []byte, size browserbridge.Size) {
	if r.closed.Load() || size.IsZero() || len(pixels) != size.Width*size.Height*4 {
		r.drop()
		return
	}

	b := r.pool.Get().(*Buffer)
	if cap(b.pix) < len(pixels) {
		b.pix = make([]byte, len(pixels))
	}
	b.pix = b.pix[:len(pixels)]
	copy(b.pix, pixels)
	b.size = size
	b.seq = r.seq.Add(1)
	b.refs.Store(1) // the relay's own reference; publishes the copy

	old := r.cur.Swap(b)

	// Closing raced with this publish: take the frame back out. The swap
	// above was still atomic, so no reader saw a torn frame either way.
	if r.closed.Load() {
		if again := r.cur.Swap(nil); again != nil {
			again.Release()
		}
		if old != nil {
			old.Release()
		}
		r.drop()
		return
	}

	if old != nil {
		old.Release()
	}

	r.published.Add(1)
	if r.hooks.OnPublish != nil {
		r.hooks.OnPublish(b.seq, size)
	}
}

// Latest returns the most recent complete frame, or false if none has
// arrived (or the relay is closed). Non-blocking; never returns a torn
// frame. The caller must Release the buffer after use.
func (r *Relay) Latest() (*Buffer, bool) {
	for {
		b := r.cur.Load()
		if b == nil {
			return nil, false
		}
		if b.acquire() {
			return b, true
		}
		// The buffer was recycled between the load and the acquire; the
		// slot has necessarily moved on. Reload.
	}
}

// Close drops the current frame and makes all later publishes no-ops. Called
// when the browsing context reaches its terminal state; frames that raced in
// after close was requested are accepted and then discarded here.
func (r *Relay) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	if old := r.cur.Swap(nil); old != nil {
		old.Release()
	}
}

// Published returns the number of frames committed to the slot.
func (r *Relay) Published() uint64 {
	return r.published.Load()
}

// Dropped returns the number of deliveries discarded.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Relay) drop() {
	r.dropped.Add(1)
	if r.hooks.OnDrop != nil {
		r.hooks.OnDrop()
	}
}
