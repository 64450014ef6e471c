package rowstore

import (
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/usagemap"
)

// Pages returns every data page in this table's chain, head to tail, by
// walking format.DataPageOffsets.NextPage links. Package cursor's
// table-scan backend uses this as its traversal order (spec.md §4.7);
// it is rebuilt on every call rather than cached, since a concurrent
// mutation can extend the chain between scans.
func (t *Table) Pages() ([]page.Number, error) {
	var out []page.Number
	for pn := t.head; pn != page.Invalid; {
		out = append(out, pn)
		buf, err := t.ch.ReadPage(pn)
		if err != nil {
			return nil, err
		}
		dp := Wrap(buf, t.off)
		next := dp.NextPage()
		buf.Release()
		pn = next
	}
	return out, nil
}

// LiveSlots returns the row ids of every non-deleted slot on pn, in slot
// order. A forwarded row (one whose slot carries a forwarding pointer
// rather than its own body) is still reported under its original row id,
// matching how indexes and callers address it.
func (t *Table) LiveSlots(pn page.Number) ([]RowId, error) {
	buf, err := t.ch.ReadPage(pn)
	if err != nil {
		return nil, err
	}
	defer buf.Release()
	dp := Wrap(buf, t.off)
	var out []RowId
	for i := 0; i < dp.RowCount(); i++ {
		if dp.IsDeleted(i) {
			continue
		}
		out = append(out, RowId{Page: pn, Slot: uint8(i)})
	}
	return out, nil
}

// RebuildLocality walks this table's already-loaded data-page chain and
// re-adds every page to the live usage map and its matching free-space
// tier, classifying each from its current on-disk FreeSpace. Database
// calls this once right after constructing a Table from a decoded
// table-def, since only the chain itself (head/tail) is persisted —
// the usage/tier bitmaps are rebuilt from it rather than serialized.
func (t *Table) RebuildLocality() error {
	pages, err := t.Pages()
	if err != nil {
		return err
	}
	if len(pages) > 0 {
		t.tail = pages[len(pages)-1]
	}
	for _, pn := range pages {
		buf, err := t.ch.ReadPage(pn)
		if err != nil {
			return err
		}
		dp := Wrap(buf, t.off)
		if err := t.usage.Add(pn, true); err != nil && !usagemap.IsDuplicateAdd(err) {
			buf.Release()
			return err
		}
		tier := t.classify(int(dp.FreeSpace()))
		if err := t.tiers[tier].Add(pn, true); err != nil && !usagemap.IsDuplicateAdd(err) {
			buf.Release()
			return err
		}
		buf.Release()
	}
	return nil
}

// RowLive reports whether rid still refers to a non-deleted slot,
// without following forwarding pointers or decoding the row, so it checks
// a remembered position without the cost of a full ReadRow.
func (t *Table) RowLive(rid RowId) (bool, error) {
	buf, err := t.ch.ReadPage(rid.Page)
	if err != nil {
		return false, err
	}
	defer buf.Release()
	dp := Wrap(buf, t.off)
	if int(rid.Slot) >= dp.RowCount() {
		return false, nil
	}
	return !dp.IsDeleted(int(rid.Slot)), nil
}
