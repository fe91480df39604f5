// Package frame moves rendered frames from the engine's compositor thread
// to the host's render loop without locks held across pixel copies.
//
// A Relay owns one atomic "current frame" slot per browsing context. The
// compositor side calls Publish, which does exactly one bounded memcpy into
// a pooled buffer and swaps the slot pointer. The host side calls Latest,
// which is non-blocking and either acquires a reference on a complete frame
// or reports that none has arrived.
//
// Buffers are reference counted: the relay holds one reference while a
// buffer is current, and every Latest adds one that the caller must Release
// after drawing. A buffer returns to the pool only when the last reference
// drops, so a reader can never observe in-place mutation of pixels it is
// still reading.
//
// Frames are stored as delivered (32-bit BGRA). Conversion happens on the
// consumer side, where it cannot stall compositing: RGBA() swizzles lazily
// and caches, EncodeBMP writes the frame to an io.Writer.
package frame
