// Package cursor implements the row-at-a-time iteration protocol used
// by query execution: a Cursor walks a table either in physical page
// order or along one of its indexes, surviving concurrent mutation by
// revalidating its position against the underlying modification
// counter (rowstore.Table.ModCount / catalog.Table.ModCount).
package cursor

import (
	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/btree"
	"github.com/zhukovaskychina/jetdb/catalog"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/rowstore"
)

// Backend supplies a Cursor with an iteration order and the row
// mutation primitives needed for DeleteCurrentRow/UpdateCurrentRow.
// TableScanBackend and IndexScanBackend are the two implementations;
// both route mutation through catalog.Table so foreign-key checks and
// cascades stay in force no matter which way a row was reached.
type Backend interface {
	ModCount() uint64
	First() (rowstore.RowId, []interface{}, bool, error)
	Last() (rowstore.RowId, []interface{}, bool, error)
	Next(cur rowstore.RowId, curValues []interface{}) (rowstore.RowId, []interface{}, bool, error)
	Prev(cur rowstore.RowId, curValues []interface{}) (rowstore.RowId, []interface{}, bool, error)
	ReadRow(rid rowstore.RowId) ([]interface{}, bool, error)
	DeleteRow(rid rowstore.RowId) error
	UpdateRow(rid rowstore.RowId, values []interface{}) error
}

// TableScanBackend walks a table's data-page chain in physical
// (page, slot) order, the order rowstore.Table.Pages/LiveSlots expose.
type TableScanBackend struct {
	table *catalog.Table
}

// NewTableScan returns a Backend that iterates t in storage order.
func NewTableScan(t *catalog.Table) *TableScanBackend {
	return &TableScanBackend{table: t}
}

func (b *TableScanBackend) ModCount() uint64 { return b.table.ModCount() }

func (b *TableScanBackend) ReadRow(rid rowstore.RowId) ([]interface{}, bool, error) {
	return b.table.ReadRow(rid)
}

func (b *TableScanBackend) DeleteRow(rid rowstore.RowId) error { return b.table.DeleteRow(rid) }

func (b *TableScanBackend) UpdateRow(rid rowstore.RowId, values []interface{}) error {
	return b.table.UpdateRow(rid, values)
}

func (b *TableScanBackend) First() (rowstore.RowId, []interface{}, bool, error) {
	pages, err := b.table.Store().Pages()
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	for _, pn := range pages {
		slots, err := b.table.Store().LiveSlots(pn)
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if len(slots) == 0 {
			continue
		}
		values, ok, err := b.table.ReadRow(slots[0])
		if err != nil || !ok {
			return rowstore.RowId{}, nil, false, err
		}
		return slots[0], values, true, nil
	}
	return rowstore.RowId{}, nil, false, nil
}

func (b *TableScanBackend) Last() (rowstore.RowId, []interface{}, bool, error) {
	pages, err := b.table.Store().Pages()
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	for i := len(pages) - 1; i >= 0; i-- {
		slots, err := b.table.Store().LiveSlots(pages[i])
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if len(slots) == 0 {
			continue
		}
		last := slots[len(slots)-1]
		values, ok, err := b.table.ReadRow(last)
		if err != nil || !ok {
			return rowstore.RowId{}, nil, false, err
		}
		return last, values, true, nil
	}
	return rowstore.RowId{}, nil, false, nil
}

// Next returns the first live row after cur in storage order. If cur's
// page is no longer part of the chain (its table-def was rewritten out
// from under this cursor), the scan falls back to restarting from the
// first page rather than failing outright.
func (b *TableScanBackend) Next(cur rowstore.RowId, _ []interface{}) (rowstore.RowId, []interface{}, bool, error) {
	pages, err := b.table.Store().Pages()
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	startIdx := 0
	if idx := indexOfPage(pages, cur.Page); idx >= 0 {
		slots, err := b.table.Store().LiveSlots(cur.Page)
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		for _, s := range slots {
			if s.Slot > cur.Slot {
				values, ok, err := b.table.ReadRow(s)
				if err != nil || !ok {
					return rowstore.RowId{}, nil, false, err
				}
				return s, values, true, nil
			}
		}
		startIdx = idx + 1
	}
	for i := startIdx; i < len(pages); i++ {
		slots, err := b.table.Store().LiveSlots(pages[i])
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if len(slots) == 0 {
			continue
		}
		values, ok, err := b.table.ReadRow(slots[0])
		if err != nil || !ok {
			return rowstore.RowId{}, nil, false, err
		}
		return slots[0], values, true, nil
	}
	return rowstore.RowId{}, nil, false, nil
}

func (b *TableScanBackend) Prev(cur rowstore.RowId, _ []interface{}) (rowstore.RowId, []interface{}, bool, error) {
	pages, err := b.table.Store().Pages()
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	endIdx := len(pages) - 1
	if idx := indexOfPage(pages, cur.Page); idx >= 0 {
		slots, err := b.table.Store().LiveSlots(cur.Page)
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		for i := len(slots) - 1; i >= 0; i-- {
			if slots[i].Slot < cur.Slot {
				values, ok, err := b.table.ReadRow(slots[i])
				if err != nil || !ok {
					return rowstore.RowId{}, nil, false, err
				}
				return slots[i], values, true, nil
			}
		}
		endIdx = idx - 1
	}
	for i := endIdx; i >= 0; i-- {
		slots, err := b.table.Store().LiveSlots(pages[i])
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if len(slots) == 0 {
			continue
		}
		last := slots[len(slots)-1]
		values, ok, err := b.table.ReadRow(last)
		if err != nil || !ok {
			return rowstore.RowId{}, nil, false, err
		}
		return last, values, true, nil
	}
	return rowstore.RowId{}, nil, false, nil
}

func indexOfPage(pages []page.Number, pn page.Number) int {
	for i, p := range pages {
		if p == pn {
			return i
		}
	}
	return -1
}

// IndexScanBackend walks one of a table's btree.Index structures,
// visiting rows in index key order instead of storage order.
type IndexScanBackend struct {
	table *catalog.Table
	index *btree.Index
}

// NewIndexScan returns a Backend iterating t along the named index.
func NewIndexScan(t *catalog.Table, indexName string) (*IndexScanBackend, error) {
	ix, _, ok := t.Index(indexName)
	if !ok {
		return nil, jetdb.New(jetdb.InvalidArgument, "no such index %q on table %q", indexName, t.Name())
	}
	return &IndexScanBackend{table: t, index: ix}, nil
}

func (b *IndexScanBackend) ModCount() uint64 { return b.table.ModCount() }

func (b *IndexScanBackend) ReadRow(rid rowstore.RowId) ([]interface{}, bool, error) {
	return b.table.ReadRow(rid)
}

func (b *IndexScanBackend) DeleteRow(rid rowstore.RowId) error { return b.table.DeleteRow(rid) }

func (b *IndexScanBackend) UpdateRow(rid rowstore.RowId, values []interface{}) error {
	return b.table.UpdateRow(rid, values)
}

func (b *IndexScanBackend) First() (rowstore.RowId, []interface{}, bool, error) {
	c, err := b.index.First()
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	rid, ok, err := c.Next()
	if err != nil || !ok {
		return rowstore.RowId{}, nil, false, err
	}
	values, ok, err := b.table.ReadRow(rid)
	if err != nil || !ok {
		return rowstore.RowId{}, nil, false, err
	}
	return rid, values, true, nil
}

func (b *IndexScanBackend) Last() (rowstore.RowId, []interface{}, bool, error) {
	c, err := b.index.Last()
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	rid, ok, err := c.Prev()
	if err != nil || !ok {
		return rowstore.RowId{}, nil, false, err
	}
	values, ok, err := b.table.ReadRow(rid)
	if err != nil || !ok {
		return rowstore.RowId{}, nil, false, err
	}
	return rid, values, true, nil
}

// Next re-seeks to curValues' key and walks forward past cur's own
// entry. Re-seeking (rather than remembering a live *btree.Cursor)
// means a Next call is correct even when a writer has since split or
// merged the leaf cur lived on. If cur's own entry is gone — its row
// was deleted or its indexed columns changed since this cursor last
// moved — the first surviving entry at or after the old key is taken
// as the resume point, matching this engine's revalidate-by-anchor
// fallback rather than aborting the scan.
func (b *IndexScanBackend) Next(cur rowstore.RowId, curValues []interface{}) (rowstore.RowId, []interface{}, bool, error) {
	c, err := b.index.Seek(curValues)
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	passedCurrent := false
	for {
		rid, ok, err := c.Next()
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if !ok {
			return rowstore.RowId{}, nil, false, nil
		}
		if !passedCurrent && rid == cur {
			passedCurrent = true
			continue
		}
		values, ok, err := b.table.ReadRow(rid)
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if !ok {
			continue
		}
		return rid, values, true, nil
	}
}

// Prev is Next's mirror. For a non-unique index it can skip over
// sibling rows that share cur's key but sort before it.
func (b *IndexScanBackend) Prev(cur rowstore.RowId, curValues []interface{}) (rowstore.RowId, []interface{}, bool, error) {
	c, err := b.index.Seek(curValues)
	if err != nil {
		return rowstore.RowId{}, nil, false, err
	}
	for {
		rid, ok, err := c.Prev()
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if !ok {
			return rowstore.RowId{}, nil, false, nil
		}
		if rid == cur {
			continue
		}
		values, ok, err := b.table.ReadRow(rid)
		if err != nil {
			return rowstore.RowId{}, nil, false, err
		}
		if !ok {
			continue
		}
		return rid, values, true, nil
	}
}
