package rowstore

import (
	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/usagemap"
	"github.com/zhukovaskychina/jetdb/value"
)

// IndexUpdater is the slice of btree.Index's surface the row store needs
// to keep indexes consistent with row mutations, without rowstore
// importing package btree back (spec.md §9 cycle-breaking note: metadata
// structs hold identifiers, not owning references — here that takes the
// shape of a narrow interface rather than a concrete type).
type IndexUpdater interface {
	Insert(rid RowId, values []interface{}) error
	Delete(rid RowId, values []interface{}) error
	Update(rid RowId, oldValues, newValues []interface{}) error
}

// ErrorHandler lets a caller substitute a value and continue instead of
// aborting a row-level operation, per spec.md §7 propagation rules. A
// nil handler means every error rethrows.
type ErrorHandler func(columnIndex int, err error) (substitute interface{}, recovered bool)

// freeSpaceTierCount is the number of fullness buckets a table's insert
// path searches before falling back to a fresh page allocation (spec.md
// SPEC_FULL supplement #2, modeled on the teacher's segment free-list
// tiers).
const freeSpaceTierCount = 4

// Table is the row-store handle for one user or system table: the data
// pages it owns, the free-space locality index over those pages, the
// indexes that must stay in sync, and the auto-number counters for its
// autonumber columns.
type Table struct {
	ch   *page.Channel
	off  format.DataPageOffsets
	fmt  *format.Format
	home uint32 // the owning table-def page number, stamped into every data page

	layouts       []ColumnLayout
	longValueCols map[int]bool

	usage *usagemap.Map
	tiers [freeSpaceTierCount]*usagemap.Map

	// head and tail are the ends of this table's forward-linked chain of
	// data pages (format.DataPageOffsets.NextPage). Persisting only this
	// chain, rather than the usage/tiers bitmaps themselves, is what lets
	// Database.Open rebuild those maps by walking the chain and
	// reclassifying each page from its live FreeSpace, instead of having
	// to serialize usagemap.Map state to the table-def page.
	head, tail page.Number

	indexes    []IndexUpdater
	autoNumber map[int]*value.AutoNumber

	errHandler ErrorHandler

	modCount uint64
}

// NewTable wires a row store around an already-loaded table usage map.
// longValueCols marks which column indexes are MEMO/OLE/OLE-sized
// BINARY and must route through long-value pages instead of the inline
// variable region. head and tail are the current ends of the table's
// data-page chain, as recovered by walking NextPage links (page.Invalid
// for a table with no data pages yet).
func NewTable(ch *page.Channel, home uint32, layouts []ColumnLayout, longValueCols map[int]bool, usage *usagemap.Map, tiers [freeSpaceTierCount]*usagemap.Map, head, tail page.Number) *Table {
	return &Table{
		ch: ch, off: ch.Format().DataPage, fmt: ch.Format(), home: home,
		layouts: layouts, longValueCols: longValueCols,
		usage: usage, tiers: tiers,
		head: head, tail: tail,
		autoNumber: map[int]*value.AutoNumber{},
	}
}

// AutoNumberCurrent returns the live counter value for the autonumber
// column at columnIndex, for a caller persisting the table-def's
// last-autonumber field. ok is false if columnIndex has no registered
// counter.
func (t *Table) AutoNumberCurrent(columnIndex int) (value int64, ok bool) {
	c, ok := t.autoNumber[columnIndex]
	if !ok {
		return 0, false
	}
	return c.Current(), true
}

// HeadPage returns the first page of this table's data-page chain,
// page.Invalid if the table has no data pages yet. A catalog stores this
// in the table-def page's UsageMapPtr slot (repurposed as a chain-head
// pointer, since usage/tier bitmaps are no longer persisted directly) so
// it can reconstruct head/tail on Database.Open.
func (t *Table) HeadPage() page.Number { return t.head }

// TailPage returns the current last page of the data-page chain, the
// page new allocations link onto next. A catalog persists this only as
// a locality hint — Database.Open always confirms it by walking the
// chain from HeadPage, the same "never trust a cached hint without
// verifying" pattern package rowstore's free-space tiers use.
func (t *Table) TailPage() page.Number { return t.tail }

// AddIndex registers idx to be kept in sync with every subsequent
// mutation. Existing rows are not retroactively indexed; callers build a
// new index by streaming existing rows through Insert themselves (spec.md
// §3 Lifecycle).
func (t *Table) AddIndex(idx IndexUpdater) { t.indexes = append(t.indexes, idx) }

// SetErrorHandler installs the per-table row-level ErrorHandler (spec.md §7).
func (t *Table) SetErrorHandler(h ErrorHandler) { t.errHandler = h }

// ModCount returns the table's current modification counter, consulted
// by cursors to detect staleness (spec.md §5, §4.7).
func (t *Table) ModCount() uint64 { return t.modCount }

const tombstoneOverhead = 2 // the row length/flags header alone, once a row is emptied of its body

// longValueInlineThreshold is the largest payload this engine keeps in
// the variable region after its one-byte form tag; larger payloads
// spill to dedicated long-value pages, per spec.md §4.5.3.
func (t *Table) longValueInlineThreshold() int {
	return t.fmt.PageSize/4 - 32
}

// InsertRow validates, encodes, and appends one row, then updates every
// registered index. Auto-number columns are filled from their counters
// unless the row already supplies a value.
func (t *Table) InsertRow(values []interface{}) (RowId, error) {
	values = append([]interface{}{}, values...)
	if err := t.fillAutoNumbers(values); err != nil {
		return RowId{}, err
	}
	payload, err := t.encodeForStorage(values)
	if err != nil {
		return RowId{}, err
	}
	dp, err := t.selectPageForInsert(len(payload) + 2)
	if err != nil {
		return RowId{}, err
	}
	lengthHeader := uint16(len(payload)) & 0x3FFF
	row := make([]byte, 2+len(payload))
	row[0], row[1] = byte(lengthHeader), byte(lengthHeader>>8)
	copy(row[2:], payload)
	slot := dp.writeRow(row, false)
	if err := t.ch.WritePage(dp.Buffer()); err != nil {
		return RowId{}, err
	}
	t.reclassifyTier(dp)
	rid := RowId{Page: dp.Buffer().PageNumber, Slot: uint8(slot)}
	dp.Buffer().Release()
	for _, idx := range t.indexes {
		if err := idx.Insert(rid, values); err != nil {
			return RowId{}, err
		}
	}
	t.modCount++
	return rid, nil
}

// AddRows inserts rows in order, stopping at the first failure. It
// returns the number of rows committed and, on failure, package
// rowstore's own batch error (with Count and Cause accessors, not a
// *jetdb.BatchError) wrapping the cause — previously written rows on the page are not
// rolled back, per spec.md §4.5.1.
func (t *Table) AddRows(rows [][]interface{}) (int, error) {
	for i, r := range rows {
		if _, err := t.InsertRow(r); err != nil {
			return i, &batchError{count: i, cause: err}
		}
	}
	return len(rows), nil
}

type batchError struct {
	count int
	cause error
}

func (e *batchError) Error() string { return "rowstore: batch insert failed: " + e.cause.Error() }
func (e *batchError) Unwrap() error { return e.cause }
func (e *batchError) Count() int    { return e.count }
func (e *batchError) Cause() error  { return e.cause }

// ReadRow decodes the row at rid. ok is false if the slot is tombstoned
// or out of range.
func (t *Table) ReadRow(rid RowId) (values []interface{}, ok bool, err error) {
	raw, ok, err := t.rawRowBytes(rid)
	if err != nil || !ok {
		return nil, ok, err
	}
	values, err = t.decodeFromStorage(raw)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

// rawRowBytes returns a copy of rid's row payload (following a
// forwarding pointer if the slot overflowed), without decoding it. Used
// where only the raw bytes are needed, e.g. to recover a row's
// long-value refs before releasing them.
func (t *Table) rawRowBytes(rid RowId) ([]byte, bool, error) {
	buf, err := t.ch.ReadPage(rid.Page)
	if err != nil {
		return nil, false, err
	}
	defer buf.Release()
	dp := Wrap(buf, t.off)
	if int(rid.Slot) >= dp.RowCount() || dp.IsDeleted(int(rid.Slot)) {
		return nil, false, nil
	}
	if dp.IsOverflow(int(rid.Slot)) {
		fwdPage, fwdSlot := dp.ForwardingPointer(int(rid.Slot))
		return t.rawRowBytes(RowId{Page: fwdPage, Slot: fwdSlot})
	}
	raw := dp.RowBytes(int(rid.Slot))
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, true, nil
}

// UpdateRow validates newValues, rewrites the row in place if it still
// fits the existing slot, or else writes it to a fresh slot and leaves a
// forwarding pointer behind (spec.md §4.5.2). Indexes are updated only
// for the columns whose normalized key changed — IndexUpdater.Update
// itself decides that by comparing old and new values, keeping that
// policy out of the row store.
func (t *Table) UpdateRow(rid RowId, newValues []interface{}) error {
	oldRaw, ok, err := t.rawRowBytes(rid)
	if err != nil {
		return err
	}
	if !ok {
		return errIllegalState("update of a deleted or nonexistent row")
	}
	oldValues, err := t.decodeFromStorage(oldRaw)
	if err != nil {
		return err
	}
	if err := t.releaseLongValues(oldRaw); err != nil {
		return err
	}
	payload, err := t.encodeForStorage(newValues)
	if err != nil {
		return err
	}
	buf, err := t.ch.ReadPage(rid.Page)
	if err != nil {
		return err
	}
	dp := Wrap(buf, t.off)
	existing := dp.RowBytes(int(rid.Slot))
	lengthHeader := uint16(len(payload)) & 0x3FFF
	row := make([]byte, 2+len(payload))
	row[0], row[1] = byte(lengthHeader), byte(lengthHeader>>8)
	copy(row[2:], payload)

	if len(row) <= len(existing)+2 {
		dp.overwriteRow(int(rid.Slot), row)
		if err := t.ch.WritePage(buf); err != nil {
			buf.Release()
			return err
		}
		buf.Release()
	} else {
		buf.Release()
		newDp, err := t.selectPageForInsert(len(row))
		if err != nil {
			return err
		}
		newSlot := newDp.writeRow(row, false)
		if err := t.ch.WritePage(newDp.Buffer()); err != nil {
			return err
		}
		t.reclassifyTier(newDp)
		newDp.Buffer().Release()

		buf2, err := t.ch.ReadPage(rid.Page)
		if err != nil {
			return err
		}
		dp2 := Wrap(buf2, t.off)
		fwd := make([]byte, 7)
		fwd[0], fwd[1] = byte(5), 0 // length=5, overflow bit set below
		fwd[2] = byte(newDp.Buffer().PageNumber)
		fwd[3] = byte(newDp.Buffer().PageNumber >> 8)
		fwd[4] = byte(newDp.Buffer().PageNumber >> 16)
		fwd[5] = byte(newSlot)
		dp2.overwriteRow(int(rid.Slot), fwd)
		dp2.setSlot(int(rid.Slot), dp2.slot(int(rid.Slot))|slotOverflowBit)
		if err := t.ch.WritePage(buf2); err != nil {
			buf2.Release()
			return err
		}
		buf2.Release()
	}
	for _, idx := range t.indexes {
		if err := idx.Update(rid, oldValues, newValues); err != nil {
			return err
		}
	}
	t.modCount++
	return nil
}

// DeleteRow tombstones rid, releases any long-value pages the row
// exclusively owned, and removes every index entry. Deleting an
// already-deleted row is a no-op (spec.md §8 idempotence).
func (t *Table) DeleteRow(rid RowId) error {
	raw, ok, err := t.rawRowBytes(rid)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	values, err := t.decodeFromStorage(raw)
	if err != nil {
		return err
	}
	if err := t.releaseLongValues(raw); err != nil {
		return err
	}
	buf, err := t.ch.ReadPage(rid.Page)
	if err != nil {
		return err
	}
	dp := Wrap(buf, t.off)
	dp.Tombstone(int(rid.Slot))
	if err := t.ch.WritePage(buf); err != nil {
		return err
	}
	tombstonedAll := t.allTombstoned(dp)
	buf.Release()
	if tombstonedAll {
		if err := t.ch.FreePage(rid.Page); err != nil {
			return err
		}
		_ = t.usage.Remove(rid.Page)
		for _, tier := range t.tiers {
			_ = tier.Remove(rid.Page)
		}
	}
	for _, idx := range t.indexes {
		if err := idx.Delete(rid, values); err != nil {
			return err
		}
	}
	t.modCount++
	return nil
}

func (t *Table) allTombstoned(dp *DataPage) bool {
	for i := 0; i < dp.RowCount(); i++ {
		if !dp.IsDeleted(i) {
			return false
		}
	}
	return dp.RowCount() > 0
}

func errIllegalState(msg string) error { return &stateErr{msg: msg} }

type stateErr struct{ msg string }

func (e *stateErr) Error() string { return "rowstore: " + e.msg }
