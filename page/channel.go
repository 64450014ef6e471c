package page

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/jetdb/format"
)

// freePageSet is the minimal view of the global free-pages usage map a
// Channel needs. It is satisfied by *usagemap.Map without page importing
// usagemap, keeping this package free of a dependency cycle. A caller
// attaches one with SetFreeMap; catalog.Database does not attach one, so
// a database it opens allocates by extending the file and FreePage only
// zero-fills the page.
type freePageSet interface {
	Contains(pn Number) bool
	Add(pn Number, force bool) error
	PopAny() (Number, bool, error)
}

// Channel is the single-owner page I/O surface (C2). It is not safe for
// concurrent use from multiple goroutines, matching spec.md §5's
// single-threaded-per-handle model.
type Channel struct {
	rw       io.ReadWriteSeeker
	format   *format.Format
	codec    Codec
	autoSync bool
	log      *logrus.Logger

	freeMap freePageSet

	scratch sync.Pool

	fileLength int64 // cached page-aligned length
}

// NewChannel builds a Channel over rw for the given format, with no free
// map; AllocatePage extends the file until one is attached via
// SetFreeMap.
func NewChannel(rw io.ReadWriteSeeker, f *format.Format, codec Codec, autoSync bool, log *logrus.Logger) (*Channel, error) {
	if codec == nil {
		codec = Identity
	}
	length, err := rw.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	ch := &Channel{rw: rw, format: f, codec: codec, autoSync: autoSync, log: log, fileLength: length}
	ch.scratch.New = func() interface{} { return make([]byte, f.PageSize) }
	return ch, nil
}

// SetFreeMap attaches the global free-pages map. catalog.Database does
// not call it.
func (c *Channel) SetFreeMap(m freePageSet) { c.freeMap = m }

// Format returns the static descriptor this channel was opened with.
func (c *Channel) Format() *format.Format { return c.format }

func (c *Channel) getScratch() []byte {
	return c.scratch.Get().([]byte)
}

func (c *Channel) putScratch(buf []byte) {
	if len(buf) != c.format.PageSize {
		return
	}
	for i := range buf {
		buf[i] = 0
	}
	c.scratch.Put(buf)
}

func (c *Channel) pageCount() Number {
	return Number(c.fileLength / int64(c.format.PageSize))
}

// ReadPage loads page pn, applying the decode hook. Fails with an
// out-of-range error if pn is Invalid or beyond EOF; that error is
// package page's own, not jetdb.ErrPageOutOfRange.
func (c *Channel) ReadPage(pn Number) (*Buffer, error) {
	if pn == Invalid || Number(pn) >= c.pageCount() {
		return nil, c.errPageOutOfRange(pn)
	}
	buf := c.getScratch()
	off := int64(pn) * int64(c.format.PageSize)
	if _, err := c.rw.Seek(off, io.SeekStart); err != nil {
		return nil, c.errIO(err)
	}
	if _, err := io.ReadFull(c.rw, buf); err != nil {
		return nil, c.errIO(err)
	}
	if err := c.codec.Decode(buf, pn); err != nil {
		return nil, c.errIO(err)
	}
	return &Buffer{PageNumber: pn, Type: format.PageType(buf[0]), Data: buf, ch: c}, nil
}

// WritePage writes the whole page. WritePageFrom writes only the slice
// from offset to the page's end, used when the caller has only touched
// the tail of a table-def row (spec.md §4.2).
func (c *Channel) WritePage(buf *Buffer) error {
	return c.writePageRange(buf, 0)
}

// WritePageFrom writes buf.Data[offset:] starting at file offset
// pageOffset+offset, leaving the untouched prefix on disk as-is.
func (c *Channel) WritePageFrom(buf *Buffer, offset int) error {
	return c.writePageRange(buf, offset)
}

func (c *Channel) writePageRange(buf *Buffer, offset int) error {
	if buf == nil || len(buf.Data) != c.format.PageSize {
		return c.errCorrupt("write_page called with a non-page-sized buffer")
	}
	buf.Data[0] = byte(buf.Type)
	encoded := buf.Data
	if offset == 0 {
		tmp := make([]byte, len(buf.Data))
		copy(tmp, buf.Data)
		if err := c.codec.Encode(tmp, buf.PageNumber); err != nil {
			return c.errIO(err)
		}
		encoded = tmp
	} else {
		tmp := make([]byte, len(buf.Data)-offset)
		copy(tmp, buf.Data[offset:])
		// The encode hook is defined over whole pages; a partial write
		// still goes through it so an encrypting codec stays consistent
		// for its stream-cipher position, then only the tail is sent.
		full := make([]byte, len(buf.Data))
		copy(full, buf.Data)
		if err := c.codec.Encode(full, buf.PageNumber); err != nil {
			return c.errIO(err)
		}
		copy(tmp, full[offset:])
		encoded = tmp
	}
	off := int64(buf.PageNumber)*int64(c.format.PageSize) + int64(offset)
	if _, err := c.rw.Seek(off, io.SeekStart); err != nil {
		return c.errIO(err)
	}
	if _, err := c.rw.Write(encoded); err != nil {
		return c.errIO(err)
	}
	if int64(buf.PageNumber)+1 > c.fileLength/int64(c.format.PageSize) {
		c.fileLength = (int64(buf.PageNumber) + 1) * int64(c.format.PageSize)
	}
	if c.autoSync {
		return c.Flush()
	}
	return nil
}

// AllocatePage returns a fresh page whose header byte is set to t.
// Prefers popping from the free map; only extends the file length when
// the free map is empty or absent.
func (c *Channel) AllocatePage(t byte) (*Buffer, error) {
	if c.freeMap != nil {
		if pn, ok, err := c.freeMap.PopAny(); err != nil {
			return nil, err
		} else if ok {
			buf, err := c.ReadPage(pn)
			if err != nil {
				return nil, err
			}
			buf.SetType(format.PageType(t))
			return buf, nil
		}
	}
	pn := c.pageCount()
	buf := &Buffer{PageNumber: pn, Type: format.PageType(t), Data: make([]byte, c.format.PageSize), ch: c}
	buf.Data[0] = t
	if err := c.WritePage(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// FreePage zero-fills the page except its one-byte type tag, which
// WritePage restamps from the buffer's Type, and adds it to the free map
// when one is attached.
func (c *Channel) FreePage(pn Number) error {
	buf, err := c.ReadPage(pn)
	if err != nil {
		return err
	}
	defer buf.Release()
	for i := range buf.Data {
		buf.Data[i] = 0
	}
	if err := c.WritePage(buf); err != nil {
		return err
	}
	if c.freeMap == nil {
		return nil
	}
	return c.freeMap.Add(pn, false)
}

// WrapAsBuffer allocates a same-sized working buffer from the channel's
// pool, not yet associated with any page number on disk.
func (c *Channel) WrapAsBuffer(t format.PageType) *Buffer {
	buf := c.getScratch()
	buf[0] = byte(t)
	return &Buffer{PageNumber: Invalid, Type: t, Data: buf, ch: c}
}

// Flush forces the underlying storage. In auto-sync mode the channel
// calls this after every successful WritePage.
func (c *Channel) Flush() error {
	type syncer interface{ Sync() error }
	if s, ok := c.rw.(syncer); ok {
		return c.errIO(s.Sync())
	}
	return nil
}

// errIO wraps a storage read/write failure and logs it at Warn, per
// SPEC_FULL.md's ambient-stack claim that the page channel logs I/O
// errors through the injected logger rather than letting them pass
// silently up to the caller.
func (c *Channel) errIO(err error) error {
	if err == nil {
		return nil
	}
	if c.log != nil {
		c.log.WithError(err).Warn("page channel I/O error")
	}
	return &chErr{kind: "IO", err: err}
}

func (c *Channel) errCorrupt(msg string) error {
	if c.log != nil {
		c.log.WithField("detail", msg).Warn("page channel corrupt-format error")
	}
	return &chErr{kind: "CorruptFormat", err: nil, msg: msg}
}

func (c *Channel) errPageOutOfRange(pn Number) error {
	if c.log != nil {
		c.log.WithField("page", uint32(pn)).Warn("page number out of range")
	}
	return &chErr{kind: "IO", msg: "page number out of range"}
}

// chErr is a minimal local error carrier; package jetdb's error
// taxonomy wraps these into jetdb.Error at the facade boundary so this
// low-level package has no import-cycle dependency on the root package.
type chErr struct {
	kind string
	msg  string
	err  error
}

func (e *chErr) Error() string {
	if e.err != nil {
		return e.kind + ": " + e.msg + ": " + e.err.Error()
	}
	return e.kind + ": " + e.msg
}

func (e *chErr) Unwrap() error { return e.err }

// Kind returns the taxonomy category name ("IO" or "CorruptFormat") this
// low-level error belongs to.
func (e *chErr) Kind() string { return e.kind }
