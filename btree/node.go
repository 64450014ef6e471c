package btree

import (
	"github.com/zhukovaskychina/jetdb/page"
)

// Leaf and intermediate pages both keep their entry region as a plain
// sorted list rather than a slotted table — unlike rowstore's data
// pages, index entries are always kept in key order, so there is no
// benefit to stable slot numbers and every mutation simply rewrites the
// whole region. This trades a little CPU for a much simpler split/merge
// implementation, an explicit simplification from the on-disk format's
// original packed encoding (spec.md Open Question: exact byte-for-byte
// index page format is not required, only that entries round-trip and
// stay ordered).
const (
	leafHeaderLen = 18
	interHeaderLen = 14
)

type leafNode struct {
	buf *page.Buffer
}

func wrapLeaf(buf *page.Buffer) *leafNode { return &leafNode{buf: buf} }

func initLeaf(buf *page.Buffer, owner uint32) *leafNode {
	n := &leafNode{buf: buf}
	n.setEntryCount(0)
	n.setOwner(owner)
	n.SetPrevLeaf(page.Invalid)
	n.SetNextLeaf(page.Invalid)
	return n
}

func (n *leafNode) Buffer() *page.Buffer { return n.buf }

func (n *leafNode) setOwner(v uint32) {
	b := n.buf.Data[4:]
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func (n *leafNode) EntryCount() int {
	b := n.buf.Data[8:]
	return int(uint16(b[0]) | uint16(b[1])<<8)
}

func (n *leafNode) setEntryCount(c int) {
	b := n.buf.Data[8:]
	b[0], b[1] = byte(c), byte(c>>8)
}

func readPageNumber(b []byte) page.Number {
	return page.Number(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func writePageNumber(b []byte, pn page.Number) {
	v := uint32(pn)
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func (n *leafNode) PrevLeaf() page.Number { return readPageNumber(n.buf.Data[10:]) }
func (n *leafNode) SetPrevLeaf(pn page.Number) { writePageNumber(n.buf.Data[10:], pn) }
func (n *leafNode) NextLeaf() page.Number { return readPageNumber(n.buf.Data[14:]) }
func (n *leafNode) SetNextLeaf(pn page.Number) { writePageNumber(n.buf.Data[14:], pn) }

// Entries decodes the leaf's entry list in stored (ascending) order.
func (n *leafNode) Entries() [][]byte {
	count := n.EntryCount()
	out := make([][]byte, 0, count)
	off := leafHeaderLen
	for i := 0; i < count; i++ {
		l := int(uint16(n.buf.Data[off])<<8 | uint16(n.buf.Data[off+1]))
		off += 2
		e := make([]byte, l)
		copy(e, n.buf.Data[off:off+l])
		out = append(out, e)
		off += l
	}
	return out
}

// usedBytes is the byte footprint entries would occupy if written,
// including their length prefixes.
func usedBytes(entries [][]byte) int {
	n := 0
	for _, e := range entries {
		n += 2 + len(e)
	}
	return n
}

// fits reports whether entries can be written into the leaf's page
// capacity.
func (n *leafNode) fits(entries [][]byte) bool {
	return leafHeaderLen+usedBytes(entries) <= len(n.buf.Data)
}

// SetEntries rewrites the entire entry region from entries (already in
// the desired sorted order) and updates the entry count. The caller
// must have verified fits first.
func (n *leafNode) SetEntries(entries [][]byte) {
	off := leafHeaderLen
	for _, e := range entries {
		l := len(e)
		n.buf.Data[off], n.buf.Data[off+1] = byte(l>>8), byte(l)
		off += 2
		copy(n.buf.Data[off:], e)
		off += l
	}
	for i := off; i < len(n.buf.Data); i++ {
		n.buf.Data[i] = 0
	}
	n.setEntryCount(len(entries))
}

type interNode struct {
	buf *page.Buffer
}

func wrapInter(buf *page.Buffer) *interNode { return &interNode{buf: buf} }

func initInter(buf *page.Buffer, owner uint32, leftmost page.Number) *interNode {
	n := &interNode{buf: buf}
	n.setEntryCount(0)
	n.setOwner(owner)
	n.setLeftmost(leftmost)
	return n
}

func (n *interNode) Buffer() *page.Buffer { return n.buf }

func (n *interNode) setOwner(v uint32) {
	b := n.buf.Data[4:]
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func (n *interNode) EntryCount() int {
	b := n.buf.Data[8:]
	return int(uint16(b[0]) | uint16(b[1])<<8)
}

func (n *interNode) setEntryCount(c int) {
	b := n.buf.Data[8:]
	b[0], b[1] = byte(c), byte(c>>8)
}

func (n *interNode) leftmostChild() page.Number { return readPageNumber(n.buf.Data[10:]) }
func (n *interNode) setLeftmost(pn page.Number)  { writePageNumber(n.buf.Data[10:], pn) }

// interEntry pairs a separator key with the child subtree holding keys
// >= it (and < the next separator, if any).
type interEntry struct {
	key   []byte
	child page.Number
}

func (n *interNode) Entries() []interEntry {
	count := n.EntryCount()
	out := make([]interEntry, 0, count)
	off := interHeaderLen
	for i := 0; i < count; i++ {
		l := int(uint16(n.buf.Data[off])<<8 | uint16(n.buf.Data[off+1]))
		off += 2
		key := make([]byte, l)
		copy(key, n.buf.Data[off:off+l])
		off += l
		child := readPageNumber(n.buf.Data[off:])
		off += 4
		out = append(out, interEntry{key: key, child: child})
	}
	return out
}

func usedBytesInter(entries []interEntry) int {
	n := 0
	for _, e := range entries {
		n += 2 + len(e.key) + 4
	}
	return n
}

func (n *interNode) fits(entries []interEntry) bool {
	return interHeaderLen+usedBytesInter(entries) <= len(n.buf.Data)
}

func (n *interNode) SetEntries(entries []interEntry) {
	off := interHeaderLen
	for _, e := range entries {
		l := len(e.key)
		n.buf.Data[off], n.buf.Data[off+1] = byte(l>>8), byte(l)
		off += 2
		copy(n.buf.Data[off:], e.key)
		off += l
		writePageNumber(n.buf.Data[off:], e.child)
		off += 4
	}
	for i := off; i < len(n.buf.Data); i++ {
		n.buf.Data[i] = 0
	}
	n.setEntryCount(len(entries))
}

// childFor returns the child page that may hold key, given this node's
// current entries.
func (n *interNode) childFor(key []byte) page.Number {
	entries := n.Entries()
	child := n.leftmostChild()
	for _, e := range entries {
		if compareBytes(key, e.key) < 0 {
			break
		}
		child = e.child
	}
	return child
}

func compareBytes(a, b []byte) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}
