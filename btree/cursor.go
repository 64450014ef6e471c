package btree

import (
	"sort"

	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/rowstore"
)

// Cursor walks an index's leaf chain in key order, forward via each
// leaf's NextLeaf link and backward via PrevLeaf, starting from a Seek,
// First, or Last position. It backs package cursor's index-driven row
// scans (spec.md §4.7).
type Cursor struct {
	ix   *Index
	leaf page.Number
	prev page.Number
	next page.Number

	entries [][]byte
	idx     int // idx == len(entries) means "positioned after this leaf's last entry"
}

func (ix *Index) loadLeafNode(pn page.Number) (*leafNode, error) {
	buf, err := ix.ch.ReadPage(pn)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	return wrapLeaf(buf), nil
}

func (ix *Index) loadLeaf(pn page.Number) (entries [][]byte, prev, next page.Number, err error) {
	n, err := ix.loadLeafNode(pn)
	if err != nil {
		return nil, 0, 0, err
	}
	return n.Entries(), n.PrevLeaf(), n.NextLeaf(), nil
}

// leftmostLeaf descends the leftmost child chain from pn to find the
// index's first leaf.
func (ix *Index) leftmostLeaf(pn page.Number) (page.Number, error) {
	buf, err := ix.ch.ReadPage(pn)
	if err != nil {
		return 0, err
	}
	if ix.pageType(buf) == format.PageTypeLeafIndexData {
		buf.Release()
		return pn, nil
	}
	child := wrapInter(buf).leftmostChild()
	buf.Release()
	return ix.leftmostLeaf(child)
}

// rightmostLeaf descends the rightmost child chain from pn.
func (ix *Index) rightmostLeaf(pn page.Number) (page.Number, error) {
	buf, err := ix.ch.ReadPage(pn)
	if err != nil {
		return 0, err
	}
	if ix.pageType(buf) == format.PageTypeLeafIndexData {
		buf.Release()
		return pn, nil
	}
	entries := wrapInter(buf).Entries()
	child := wrapInter(buf).leftmostChild()
	if len(entries) > 0 {
		child = entries[len(entries)-1].child
	}
	buf.Release()
	return ix.rightmostLeaf(child)
}

// Seek positions a cursor at the first entry whose columns are greater
// than or equal to values, per spec.md's find_closest_by_entry.
func (ix *Index) Seek(values []interface{}) (*Cursor, error) {
	searchKey := BuildSearchKey(ix.columns, values)
	leafPn, err := ix.findLeaf(ix.root, searchKey)
	if err != nil {
		return nil, err
	}
	entries, prev, next, err := ix.loadLeaf(leafPn)
	if err != nil {
		return nil, err
	}
	pos := sort.Search(len(entries), func(i int) bool { return compareBytes(entries[i], searchKey) >= 0 })
	return &Cursor{ix: ix, leaf: leafPn, prev: prev, next: next, entries: entries, idx: pos}, nil
}

// First positions a cursor before the index's very first entry (a
// before-first position: the first Next() call returns entry 0).
func (ix *Index) First() (*Cursor, error) {
	leafPn, err := ix.leftmostLeaf(ix.root)
	if err != nil {
		return nil, err
	}
	entries, prev, next, err := ix.loadLeaf(leafPn)
	if err != nil {
		return nil, err
	}
	return &Cursor{ix: ix, leaf: leafPn, prev: prev, next: next, entries: entries, idx: 0}, nil
}

// Last positions a cursor after the index's very last entry (an
// after-last position: the first Prev() call returns the last entry).
func (ix *Index) Last() (*Cursor, error) {
	leafPn, err := ix.rightmostLeaf(ix.root)
	if err != nil {
		return nil, err
	}
	entries, prev, next, err := ix.loadLeaf(leafPn)
	if err != nil {
		return nil, err
	}
	return &Cursor{ix: ix, leaf: leafPn, prev: prev, next: next, entries: entries, idx: len(entries)}, nil
}

// peek returns the entry the cursor currently sits on without advancing,
// crossing into the next leaf via its forward link if the current one is
// exhausted.
func (c *Cursor) peek() ([]byte, bool, error) {
	for c.idx >= len(c.entries) {
		if c.next == page.Invalid {
			return nil, false, nil
		}
		entries, prev, next, err := c.ix.loadLeaf(c.next)
		if err != nil {
			return nil, false, err
		}
		c.leaf = c.next
		c.entries = entries
		c.prev = prev
		c.next = next
		c.idx = 0
	}
	return c.entries[c.idx], true, nil
}

// peekPrev returns the entry immediately before the cursor's current
// position without moving it, crossing into the previous leaf via its
// backward link if the current one is exhausted in that direction.
func (c *Cursor) peekPrev() ([]byte, bool, error) {
	for c.idx <= 0 {
		if c.prev == page.Invalid {
			return nil, false, nil
		}
		entries, prev, next, err := c.ix.loadLeaf(c.prev)
		if err != nil {
			return nil, false, err
		}
		c.leaf = c.prev
		c.entries = entries
		c.prev = prev
		c.next = next
		c.idx = len(entries)
	}
	return c.entries[c.idx-1], true, nil
}

// advance moves the cursor past its current entry.
func (c *Cursor) advance() error {
	_, ok, err := c.peek()
	if err != nil || !ok {
		return err
	}
	c.idx++
	return nil
}

// retreat moves the cursor back past its current (backward) entry.
func (c *Cursor) retreat() error {
	_, ok, err := c.peekPrev()
	if err != nil || !ok {
		return err
	}
	c.idx--
	return nil
}

// Next returns the cursor's current row and advances past it, in
// ascending key order.
func (c *Cursor) Next() (rowstore.RowId, bool, error) {
	entry, ok, err := c.peek()
	if err != nil || !ok {
		return rowstore.RowId{}, false, err
	}
	rid := rowidFromEntry(entry)
	return rid, true, c.advance()
}

// Prev returns the cursor's current row and moves before it, in
// descending key order.
func (c *Cursor) Prev() (rowstore.RowId, bool, error) {
	entry, ok, err := c.peekPrev()
	if err != nil || !ok {
		return rowstore.RowId{}, false, err
	}
	rid := rowidFromEntry(entry)
	return rid, true, c.retreat()
}

// Contains reports whether rid's entry for values is still present in
// the tree, used by package cursor's revalidation to check a previously
// returned index position is still live.
func (ix *Index) Contains(rid rowstore.RowId, values []interface{}) (bool, error) {
	entry := BuildEntry(ix.columns, values, rid)
	pn, err := ix.findLeaf(ix.root, entry)
	if err != nil {
		return false, err
	}
	n, err := ix.loadLeafNode(pn)
	if err != nil {
		return false, err
	}
	entries := n.Entries()
	pos := sort.Search(len(entries), func(i int) bool { return compareBytes(entries[i], entry) >= 0 })
	return pos < len(entries) && compareBytes(entries[pos], entry) == 0, nil
}
