// Package usagemap implements the persistent page-number bitmap (C3):
// inline (embedded in a table-def row) and reference (array of pointers
// to dedicated USAGE_MAP pages) variants, unified behind one interface
// so callers never branch on which storage a given map uses. Promotion
// from inline to reference is the single state transition spec.md's
// design notes call out ("a single variant := Reference(...) transition
// that writes once"), modeled here as UsageMap.promote.
package usagemap

import (
	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/jetdb/page"
)

// PageAccessor is the slice of the page channel a reference-variant map
// needs: read/write an existing page, and allocate a fresh one when a
// pointer slot is still zero. Kept as a narrow interface (rather than
// importing package page's concrete Channel) so usagemap has no
// dependency on the channel's allocation policy beyond this contract.
type PageAccessor interface {
	ReadPage(pn page.Number) (*page.Buffer, error)
	WritePage(buf *page.Buffer) error
	AllocatePage(t byte) (*page.Buffer, error)
}

// Map is a logical set of page numbers with forward/reverse cursor
// traversal (spec.md §4.3).
type Map struct {
	accessor PageAccessor

	// assumeOutOfRangeOn makes Contains report true for any page number
	// outside the current inline range, used by some system maps
	// (spec.md Open Question #1: the exact call sites are not
	// reproducible from the interfaces alone, so this engine exposes it
	// as an explicit constructor flag rather than guessing which system
	// maps set it).
	assumeOutOfRangeOn bool

	modCount uint64

	// pagesPerSub is the number of pages one USAGE_MAP sub-page's bitmap
	// covers; carried forward across a promote so the new reference map
	// knows its own fan-out.
	pagesPerSub int

	inline *inlineState
	ref    *referenceState

	log *logrus.Logger
}

// SetLogger attaches a logger a promote() call logs to. A nil logger (the
// default for maps built directly via NewInline/NewReference) makes
// promote a silent no-log operation.
func (m *Map) SetLogger(log *logrus.Logger) { m.log = log }

// NewInline builds an inline-backed map starting at startPage, with
// maxBits worth of bitmap capacity before a promote is required.
// pagesPerSub is the fan-out a promote to reference storage should use,
// normally (pageSize-4)*8.
func NewInline(accessor PageAccessor, startPage page.Number, maxBits int, assumeOutOfRangeOn bool, pagesPerSub int) *Map {
	return &Map{
		accessor:           accessor,
		assumeOutOfRangeOn: assumeOutOfRangeOn,
		pagesPerSub:        pagesPerSub,
		inline: &inlineState{
			startPage: startPage,
			bits:      make([]byte, ceilDiv(maxBits, 8)),
			maxBits:   maxBits,
		},
	}
}

// NewReference builds a reference-backed map directly (used when
// decoding an already-promoted on-disk map).
func NewReference(accessor PageAccessor, pagesPerSub int, pointers []page.Number) *Map {
	return &Map{
		accessor:    accessor,
		pagesPerSub: pagesPerSub,
		ref: &referenceState{
			pagesPerSub: pagesPerSub,
			pointers:    pointers,
			subPages:    make(map[int]*page.Buffer),
		},
	}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// ModCount returns the map's current modification counter, consulted by
// Cursor to detect staleness.
func (m *Map) ModCount() uint64 { return m.modCount }

// Contains reports whether pn belongs to the set.
func (m *Map) Contains(pn page.Number) bool {
	if m.inline != nil {
		return m.inline.contains(pn, m.assumeOutOfRangeOn)
	}
	return m.ref.contains(pn)
}

// Add inserts pn into the set. force bypasses the duplicate-add check.
func (m *Map) Add(pn page.Number, force bool) error {
	if !force && m.Contains(pn) {
		return errDuplicateAdd
	}
	if m.inline != nil {
		if m.inline.fits(pn) {
			m.inline.set(pn)
			m.modCount++
			return nil
		}
		if m.inline.canShiftToFit(pn) {
			m.inline.shiftToFit(pn)
			m.inline.set(pn)
			m.modCount++
			return nil
		}
		if err := m.promote(); err != nil {
			return err
		}
	}
	if err := m.ref.set(m.accessor, pn); err != nil {
		return err
	}
	m.modCount++
	return nil
}

// Remove clears pn from the set. When the map is inline and
// assumeOutOfRangeOn is set and pn is beyond the current window, the
// window is shifted forward with intermediate pages marked present, so
// pages this map has never been told about are not implicitly freed
// (spec.md §4.3.1).
func (m *Map) Remove(pn page.Number) error {
	if m.inline != nil {
		if m.assumeOutOfRangeOn && uint32(pn) > m.inline.lastSet() && !m.inline.fits(pn) {
			m.inline.shiftForwardFilling(pn)
		}
		if !m.inline.fits(pn) {
			return nil // nothing to remove outside range, and not assume-on
		}
		m.inline.clear(pn)
		m.modCount++
		return nil
	}
	if err := m.ref.clear(m.accessor, pn); err != nil {
		return err
	}
	m.modCount++
	return nil
}

// promote performs the one-time inline -> reference conversion,
// preserving every bit already set.
func (m *Map) promote() error {
	set := m.inline.setPages()
	if m.log != nil {
		m.log.WithFields(logrus.Fields{"start_page": uint32(m.inline.startPage), "pages_set": len(set)}).
			Debug("usage map promoted from inline to reference storage")
	}
	m.ref = newReferenceState(m.pagesPerSub)
	for _, pn := range set {
		if err := m.ref.set(m.accessor, pn); err != nil {
			return err
		}
	}
	m.inline = nil
	return nil
}

// PopAny removes and returns an arbitrary set page number (the first in
// ascending order), used by the page channel's allocator to prefer
// reuse from the free map over extending the file. Returns ok=false
// when the map is empty.
func (m *Map) PopAny() (page.Number, bool, error) {
	c := m.NewCursor()
	pn, ok := c.Next()
	if !ok {
		return 0, false, nil
	}
	if err := m.Remove(pn); err != nil {
		return 0, false, err
	}
	return pn, true, nil
}

var errDuplicateAdd = dupErr{}

type dupErr struct{}

func (dupErr) Error() string { return "page already present in usage map" }

// IsDuplicateAdd reports whether err is the duplicate-add sentinel
// returned by Add.
func IsDuplicateAdd(err error) bool {
	_, ok := err.(dupErr)
	return ok
}
