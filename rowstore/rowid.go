// Package rowstore implements the row store (C5): the slotted data-page
// layout, row insert/update/delete, and long-value overflow pages. It is
// the row-level sibling of package btree (C6); both are driven by
// package catalog (C8), which supplies column layouts without rowstore
// importing catalog back (spec.md §9's "Database ownership of all
// metadata, identifiers not owning references" cycle-breaking note).
package rowstore

import "github.com/zhukovaskychina/jetdb/page"

// RowId identifies a row for the lifetime it exists: (page, slot), slot
// in [0,255]. Equality determines identity (spec.md §3).
type RowId struct {
	Page page.Number
	Slot uint8
}

// FirstRow and LastRow are cursor-boundary sentinels, never real rows.
var (
	FirstRow = RowId{Page: page.First, Slot: 0}
	LastRow  = RowId{Page: page.Last, Slot: 255}
)

// Less reports whether r sorts strictly before o under the (page, slot)
// total order cursors use to compare positions.
func (r RowId) Less(o RowId) bool {
	if r.Page != o.Page {
		return r.Page < o.Page
	}
	return r.Slot < o.Slot
}
