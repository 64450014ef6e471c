// Package page implements the page channel (C2): fixed-size page I/O,
// allocation against the global free-pages usage map, and the pluggable
// encode/decode hook used for lightweight file obfuscation. It mirrors
// the read/write/allocate surface the teacher exposes through
// buffer_pool.BufferPool and manager.DefaultPageManager, collapsed onto
// a single file handle since this engine has no multi-tablespace
// concept.
package page

import "github.com/zhukovaskychina/jetdb/format"

// Number is a 32-bit page number. Page numbers are never negative.
// Invalid and Last occupy the top of the range so ordinary allocation
// never collides with them; First is 0, which is also the header page's
// number.
type Number uint32

const (
	// Invalid marks "no page" (a null pointer field).
	Invalid Number = 0xFFFFFFFF
	// First is a before-the-beginning cursor sentinel.
	First Number = 0
	// Last is an after-the-end cursor sentinel; never a real page.
	Last Number = 0xFFFFFFFE
)

// Buffer is a single page's worth of bytes plus the page number it was
// last read from or written to. Buffers are obtained from a Channel's
// pool via WrapAsBuffer or ReadPage and must be returned with Release
// before another read on the same channel, per spec.md §5 resource
// scoping.
type Buffer struct {
	PageNumber Number
	Type       format.PageType
	Data       []byte

	ch *Channel
}

// Release returns the buffer's backing array to the channel's scratch
// pool. Safe to call on a zero-value Buffer (no-op).
func (b *Buffer) Release() {
	if b == nil || b.ch == nil || b.Data == nil {
		return
	}
	b.ch.putScratch(b.Data)
	b.Data = nil
	b.ch = nil
}

// SetType rewrites the page's one-byte type tag in the buffer (not yet
// persisted until WritePage).
func (b *Buffer) SetType(t format.PageType) {
	b.Type = t
	if len(b.Data) > 0 {
		b.Data[0] = byte(t)
	}
}
