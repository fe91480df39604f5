package frame

import (
	"image"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/image/bmp"

	browserbridge "github.com/embedkit/browser-bridge"
)

// Buffer is one complete rendered frame. Pixels are tightly packed 32-bit
// BGRA, immutable for as long as the holder keeps its reference.
//
// Buffers are obtained from Relay.Latest and must be released exactly once.
// After Release the pixel data may be recycled for a future frame.
type Buffer struct {
	pix  []byte
	size browserbridge.Size
	seq  uint64

	refs  atomic.Int32
	relay *Relay

	// consumer-side conversion cache; reset when the buffer is recycled
	convMu sync.Mutex
	rgba   *image.RGBA
}

// Size returns the frame's pixel dimensions.
func (b *Buffer) Size() browserbridge.Size {
	return b.size
}

// Seq returns the frame's sequence number. Sequence numbers are strictly
// increasing per browsing context, starting at 1; the host may skip redraws
// when the number has not changed.
func (b *Buffer) Seq() uint64 {
	return b.seq
}

// Stride returns the bytes per row of the BGRA data.
func (b *Buffer) Stride() int {
	return b.size.Width * 4
}

// BGRA exposes the frame's backing pixels without copying, for hosts whose
// renderer binds BGRA surfaces directly. The slice must be treated as
// read-only and not retained past Release.
func (b *Buffer) BGRA() []byte {
	return b.pix
}

// RGBA converts the frame for hosts that consume image.RGBA. The conversion
// runs once per buffer lifetime and is cached; it happens on the caller's
// thread, never the compositor's. The returned image must not be retained
// past Release.
func (b *Buffer) RGBA() *image.RGBA {
	b.convMu.Lock()
	defer b.convMu.Unlock()

	if b.rgba != nil {
		return b.rgba
	}

	img := image.NewRGBA(image.Rect(0, 0, b.size.Width, b.size.Height))
	for i := 0; i+3 < len(b.pix); i += 4 {
		img.Pix[i+0] = b.pix[i+2] // R <- B slot
		img.Pix[i+1] = b.pix[i+1]
		img.Pix[i+2] = b.pix[i+0] // B <- R slot
		img.Pix[i+3] = b.pix[i+3]
	}
	b.rgba = img
	return img
}

// EncodeBMP writes the frame to w as a BMP. Encoding goes through the
// cached RGBA conversion, so repeated exports of one buffer swizzle only
// once.
func (b *Buffer) EncodeBMP(w io.Writer) error {
	return bmp.Encode(w, b.RGBA())
}

// Release drops the holder's reference. When the last reference drops the
// buffer returns to its relay's pool for reuse.
func (b *Buffer) Release() {
	if n := b.refs.Add(-1); n == 0 {
		b.convMu.Lock()
		b.rgba = nil
		b.convMu.Unlock()
		if b.relay != nil {
			b.relay.pool.Put(b)
		}
	} else if n < 0 {
		panic("frame: buffer released more times than acquired")
	}
}

// acquire takes a reference if the buffer is still live. It fails when the
// count has already hit zero: the buffer is back in the pool and may be
// rewritten at any moment.
func (b *Buffer) acquire() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}
