package btree

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/rowstore"
)

// duplicateKeyError is the type of ErrDuplicateKey, which Insert returns
// when a unique index already carries an entry for the given columns.
// No package in this module translates it into the jetdb.Error
// ConstraintViolation category.
type duplicateKeyError struct{}

func (duplicateKeyError) Error() string { return "btree: duplicate key violates unique index" }

// ErrDuplicateKey is the sentinel Insert returns for a uniqueness
// violation.
var ErrDuplicateKey error = duplicateKeyError{}

// Index is a B-tree over one or more columns of a table, normalized and
// ordered per spec.md §4.6. It implements rowstore.IndexUpdater so a
// Table can keep it in sync without rowstore importing this package.
type Index struct {
	ch   *page.Channel
	home uint32

	root page.Number

	columns     []Column
	unique      bool
	ignoreNulls bool

	log *logrus.Logger
}

// NewIndex wires an index around an already-allocated root page (either
// freshly created empty, or loaded from an existing index's stored root
// pointer).
func NewIndex(ch *page.Channel, home uint32, root page.Number, columns []Column, unique, ignoreNulls bool) *Index {
	return &Index{ch: ch, home: home, root: root, columns: columns, unique: unique, ignoreNulls: ignoreNulls}
}

// SetLogger attaches a logger this index's split paths log to. A nil
// logger (the default for an Index built directly via NewIndex/
// CreateEmpty) makes split logging a no-op.
func (ix *Index) SetLogger(log *logrus.Logger) { ix.log = log }

// CreateEmpty allocates a fresh empty leaf page to serve as an index's
// initial root, for a newly defined index with no rows yet.
func CreateEmpty(ch *page.Channel, home uint32, columns []Column, unique, ignoreNulls bool) (*Index, error) {
	buf, err := ch.AllocatePage(byte(format.PageTypeLeafIndexData))
	if err != nil {
		return nil, err
	}
	initLeaf(buf, home)
	if err := ch.WritePage(buf); err != nil {
		return nil, err
	}
	root := buf.PageNumber
	buf.Release()
	return NewIndex(ch, home, root, columns, unique, ignoreNulls), nil
}

// RootPage returns the index's current root page number. A split at the
// root changes this; callers persisting index metadata (package
// catalog) must re-read it after every mutation.
func (ix *Index) RootPage() page.Number { return ix.root }

func (ix *Index) pageType(buf *page.Buffer) format.PageType { return format.PageType(buf.Data[0]) }

// Insert adds rid under values' normalized key, enforcing uniqueness
// when configured.
func (ix *Index) Insert(rid rowstore.RowId, values []interface{}) error {
	if ix.unique && !(ix.ignoreNulls && containsNull(ix.columns, values)) {
		exists, err := ix.existsByPrefix(values)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateKey
		}
	}
	entry := BuildEntry(ix.columns, values, rid)
	promo, err := ix.insertEntry(ix.root, entry)
	if err != nil {
		return err
	}
	if promo != nil {
		if err := ix.newRoot(promo); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) newRoot(promo *promotion) error {
	buf, err := ix.ch.AllocatePage(byte(format.PageTypeIntermediateIndexData))
	if err != nil {
		return err
	}
	n := initInter(buf, ix.home, ix.root)
	n.SetEntries([]interEntry{{key: promo.key, child: promo.newPage}})
	if err := ix.ch.WritePage(buf); err != nil {
		return err
	}
	oldRoot := ix.root
	ix.root = buf.PageNumber
	if ix.log != nil {
		ix.log.WithFields(logrus.Fields{"home": ix.home, "old_root": uint32(oldRoot), "new_root": uint32(ix.root)}).
			Debug("btree root split")
	}
	buf.Release()
	return nil
}

type promotion struct {
	key     []byte
	newPage page.Number
}

// insertEntry descends to the leaf owning entry, inserts it, and splits
// along the way if a page overflows, returning the separator to install
// in the parent (nil if no split happened at this level).
func (ix *Index) insertEntry(pn page.Number, entry []byte) (*promotion, error) {
	buf, err := ix.ch.ReadPage(pn)
	if err != nil {
		return nil, err
	}
	if ix.pageType(buf) == format.PageTypeLeafIndexData {
		return ix.insertLeaf(buf, entry)
	}
	n := wrapInter(buf)
	child := n.childFor(entry)
	// The recursive call only ever mutates pages reachable from child,
	// never pn's own bytes, so buf stays valid to reuse here.
	promo, err := ix.insertEntry(child, entry)
	if err != nil {
		buf.Release()
		return nil, err
	}
	if promo == nil {
		buf.Release()
		return nil, nil
	}
	return ix.insertIntermediate(n, promo)
}

func (ix *Index) insertLeaf(buf *page.Buffer, entry []byte) (*promotion, error) {
	n := wrapLeaf(buf)
	entries := n.Entries()
	pos := sort.Search(len(entries), func(i int) bool { return compareBytes(entries[i], entry) >= 0 })
	entries = append(entries, nil)
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = entry

	if n.fits(entries) {
		n.SetEntries(entries)
		err := ix.ch.WritePage(buf)
		buf.Release()
		return nil, err
	}

	left, right := splitByBytes(entries)
	newBuf, err := ix.ch.AllocatePage(byte(format.PageTypeLeafIndexData))
	if err != nil {
		buf.Release()
		return nil, err
	}
	newLeaf := initLeaf(newBuf, ix.home)
	newLeaf.SetEntries(right)
	newLeaf.SetNextLeaf(n.NextLeaf())
	newLeaf.SetPrevLeaf(buf.PageNumber)

	oldNext := n.NextLeaf()
	n.SetEntries(left)
	n.SetNextLeaf(newBuf.PageNumber)

	if oldNext != page.Invalid {
		nbuf, err := ix.ch.ReadPage(oldNext)
		if err != nil {
			buf.Release()
			newBuf.Release()
			return nil, err
		}
		wrapLeaf(nbuf).SetPrevLeaf(newBuf.PageNumber)
		if err := ix.ch.WritePage(nbuf); err != nil {
			nbuf.Release()
			buf.Release()
			newBuf.Release()
			return nil, err
		}
		nbuf.Release()
	}

	if err := ix.ch.WritePage(buf); err != nil {
		buf.Release()
		newBuf.Release()
		return nil, err
	}
	if err := ix.ch.WritePage(newBuf); err != nil {
		buf.Release()
		newBuf.Release()
		return nil, err
	}
	key := right[0]
	newPage := newBuf.PageNumber
	if ix.log != nil {
		ix.log.WithFields(logrus.Fields{"home": ix.home, "old_leaf": uint32(buf.PageNumber), "new_leaf": uint32(newPage), "left_entries": len(left), "right_entries": len(right)}).
			Debug("btree leaf split")
	}
	buf.Release()
	newBuf.Release()
	return &promotion{key: key, newPage: newPage}, nil
}

func (ix *Index) insertIntermediate(n *interNode, promo *promotion) (*promotion, error) {
	buf := n.Buffer()
	entries := n.Entries()
	pos := sort.Search(len(entries), func(i int) bool { return compareBytes(entries[i].key, promo.key) >= 0 })
	entries = append(entries, interEntry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = interEntry{key: promo.key, child: promo.newPage}

	if n.fits(entries) {
		n.SetEntries(entries)
		err := ix.ch.WritePage(buf)
		buf.Release()
		return nil, err
	}

	mid := len(entries) / 2
	left := entries[:mid]
	up := entries[mid]
	right := entries[mid+1:]

	newBuf, err := ix.ch.AllocatePage(byte(format.PageTypeIntermediateIndexData))
	if err != nil {
		buf.Release()
		return nil, err
	}
	newInter := initInter(newBuf, ix.home, up.child)
	newInter.SetEntries(right)
	n.SetEntries(left)

	if err := ix.ch.WritePage(buf); err != nil {
		buf.Release()
		newBuf.Release()
		return nil, err
	}
	if err := ix.ch.WritePage(newBuf); err != nil {
		buf.Release()
		newBuf.Release()
		return nil, err
	}
	key := up.key
	newPage := newBuf.PageNumber
	if ix.log != nil {
		ix.log.WithFields(logrus.Fields{"home": ix.home, "old_page": uint32(buf.PageNumber), "new_page": uint32(newPage), "left_entries": len(left), "right_entries": len(right)}).
			Debug("btree intermediate split")
	}
	buf.Release()
	newBuf.Release()
	return &promotion{key: key, newPage: newPage}, nil
}

// splitByBytes partitions entries roughly in half by total byte count
// (spec.md §4.6.2's "50/50 byte-count split" policy), never leaving
// either side empty.
func splitByBytes(entries [][]byte) (left, right [][]byte) {
	total := usedBytes(entries)
	half := total / 2
	acc := 0
	splitIdx := 1
	for i, e := range entries {
		acc += 2 + len(e)
		if acc >= half {
			splitIdx = i + 1
			break
		}
	}
	if splitIdx >= len(entries) {
		splitIdx = len(entries) - 1
	}
	if splitIdx < 1 {
		splitIdx = 1
	}
	return entries[:splitIdx], entries[splitIdx:]
}

// Delete removes rid's entry for values. Missing entries are a no-op.
func (ix *Index) Delete(rid rowstore.RowId, values []interface{}) error {
	entry := BuildEntry(ix.columns, values, rid)
	pn, err := ix.findLeaf(ix.root, entry)
	if err != nil {
		return err
	}
	buf, err := ix.ch.ReadPage(pn)
	if err != nil {
		return err
	}
	n := wrapLeaf(buf)
	entries := n.Entries()
	pos := sort.Search(len(entries), func(i int) bool { return compareBytes(entries[i], entry) >= 0 })
	if pos < len(entries) && compareBytes(entries[pos], entry) == 0 {
		entries = append(entries[:pos], entries[pos+1:]...)
		n.SetEntries(entries)
		err = ix.ch.WritePage(buf)
	}
	buf.Release()
	return err
}

// Update removes oldValues' entry and inserts newValues', when the
// normalized key actually changes; an update that leaves every indexed
// column's value unchanged is a no-op here.
func (ix *Index) Update(rid rowstore.RowId, oldValues, newValues []interface{}) error {
	oldKey := BuildSearchKey(ix.columns, oldValues)
	newKey := BuildSearchKey(ix.columns, newValues)
	if compareBytes(oldKey, newKey) == 0 {
		return nil
	}
	if err := ix.Delete(rid, oldValues); err != nil {
		return err
	}
	return ix.Insert(rid, newValues)
}

func (ix *Index) findLeaf(pn page.Number, key []byte) (page.Number, error) {
	buf, err := ix.ch.ReadPage(pn)
	if err != nil {
		return 0, err
	}
	defer buf.Release()
	if ix.pageType(buf) == format.PageTypeLeafIndexData {
		return pn, nil
	}
	child := wrapInter(buf).childFor(key)
	return ix.findLeaf(child, key)
}

func (ix *Index) existsByPrefix(values []interface{}) (bool, error) {
	searchKey := BuildSearchKey(ix.columns, values)
	c, err := ix.Seek(values)
	if err != nil {
		return false, err
	}
	entry, ok, err := c.peek()
	if err != nil || !ok {
		return false, err
	}
	return len(entry) >= len(searchKey) && compareBytes(entry[:len(searchKey)], searchKey) == 0, nil
}

// FindFirstByEntry returns the first row whose indexed columns equal
// values, in index order.
func (ix *Index) FindFirstByEntry(values []interface{}) (rowstore.RowId, bool, error) {
	searchKey := BuildSearchKey(ix.columns, values)
	c, err := ix.Seek(values)
	if err != nil {
		return rowstore.RowId{}, false, err
	}
	entry, ok, err := c.peek()
	if err != nil || !ok {
		return rowstore.RowId{}, false, err
	}
	if len(entry) < len(searchKey) || compareBytes(entry[:len(searchKey)], searchKey) != 0 {
		return rowstore.RowId{}, false, nil
	}
	return rowidFromEntry(entry), true, nil
}

// FindClosestByEntry returns the first row at or after values' key,
// regardless of exact match — used to position a cursor for a range
// scan.
func (ix *Index) FindClosestByEntry(values []interface{}) (rowstore.RowId, bool, error) {
	c, err := ix.Seek(values)
	if err != nil {
		return rowstore.RowId{}, false, err
	}
	entry, ok, err := c.peek()
	if err != nil || !ok {
		return rowstore.RowId{}, false, nil
	}
	return rowidFromEntry(entry), true, nil
}

// EntriesMatching returns every row whose indexed columns equal values.
func (ix *Index) EntriesMatching(values []interface{}) ([]rowstore.RowId, error) {
	searchKey := BuildSearchKey(ix.columns, values)
	c, err := ix.Seek(values)
	if err != nil {
		return nil, err
	}
	var out []rowstore.RowId
	for {
		entry, ok, err := c.peek()
		if err != nil {
			return nil, err
		}
		if !ok || len(entry) < len(searchKey) || compareBytes(entry[:len(searchKey)], searchKey) != 0 {
			break
		}
		out = append(out, rowidFromEntry(entry))
		if err := c.advance(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func rowidFromEntry(entry []byte) rowstore.RowId {
	b := entry[len(entry)-4:]
	pn := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	return rowstore.RowId{Page: page.Number(pn), Slot: b[3]}
}
