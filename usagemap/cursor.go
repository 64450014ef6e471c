package usagemap

import "github.com/zhukovaskychina/jetdb/page"

// Cursor is a bidirectional position over a Map's page numbers, in
// strictly increasing order for Next and strictly decreasing for Prev
// (spec.md §4.3.1 ordering guarantee). It carries a copy of the map's
// modification counter and re-validates on every step: if the map
// changed since the cursor's last move and its current page is no
// longer in the set, the cursor falls back to before-first instead of
// returning a page that no longer belongs to the set.
type Cursor struct {
	m        *Map
	modCount uint64
	cur      page.Number
	atStart  bool // before-first
	atEnd    bool // after-last
}

// NewCursor returns a cursor positioned before the first page.
func (m *Map) NewCursor() *Cursor {
	return &Cursor{m: m, modCount: m.modCount, atStart: true}
}

func (c *Cursor) revalidate() {
	if c.modCount == c.m.modCount {
		return
	}
	c.modCount = c.m.modCount
	if c.atStart || c.atEnd {
		return
	}
	if !c.m.Contains(c.cur) {
		// position no longer valid: fall back to before-first, the safe
		// restart point spec.md §4.7 describes for an invalidated
		// cursor position.
		c.atStart = true
	}
}

func (c *Cursor) bounds() (low, high uint32, ok bool) {
	if c.m.inline != nil {
		s := c.m.inline
		return uint32(s.startPage), uint32(s.startPage) + uint32(s.maxBits) - 1, s.maxBits > 0
	}
	r := c.m.ref
	if len(r.pointers) == 0 {
		return 0, 0, false
	}
	return 0, uint32(len(r.pointers)*r.pagesPerSub) - 1, true
}

// Next advances the cursor to the next page number in the set, in
// ascending order. It returns (pn, true) or (page.Invalid, false) at
// end of range.
func (c *Cursor) Next() (page.Number, bool) {
	c.revalidate()
	low, high, ok := c.bounds()
	if !ok {
		c.atEnd = true
		return page.Invalid, false
	}
	start := low
	if !c.atStart {
		if c.atEnd {
			return page.Invalid, false
		}
		start = uint32(c.cur) + 1
	}
	for p := start; p <= high; p++ {
		if c.m.Contains(page.Number(p)) {
			c.cur = page.Number(p)
			c.atStart = false
			c.atEnd = false
			return c.cur, true
		}
	}
	c.atEnd = true
	return page.Invalid, false
}

// Prev moves the cursor to the previous page number in the set, in
// descending order.
func (c *Cursor) Prev() (page.Number, bool) {
	c.revalidate()
	low, high, ok := c.bounds()
	if !ok {
		c.atStart = true
		return page.Invalid, false
	}
	start := high
	if !c.atEnd {
		if c.atStart {
			return page.Invalid, false
		}
		if c.cur == 0 {
			c.atStart = true
			return page.Invalid, false
		}
		start = uint32(c.cur) - 1
	}
	for p := int64(start); p >= int64(low); p-- {
		if c.m.Contains(page.Number(p)) {
			c.cur = page.Number(p)
			c.atStart = false
			c.atEnd = false
			return c.cur, true
		}
	}
	c.atStart = true
	return page.Invalid, false
}

// Reset repositions the cursor before the first page.
func (c *Cursor) Reset() {
	c.atStart = true
	c.atEnd = false
	c.modCount = c.m.modCount
}
