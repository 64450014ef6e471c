package catalog

import (
	"sort"
	"strings"

	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/btree"
	"github.com/zhukovaskychina/jetdb/rowstore"
	"github.com/zhukovaskychina/jetdb/value"
)

// Table is a catalog-loaded user (or system) table: its metadata, the
// row store backing it, and the btree.Index set kept in sync with every
// mutation (spec.md §4.5.1 step 5). Callers reach it through
// Database.Table rather than constructing one directly.
type Table struct {
	db       *Database
	homePage uint32
	name     string

	columns []Column
	indexes []IndexDef

	store  *rowstore.Table
	btrees []*btree.Index // parallel to indexes
}

// Name returns the table's catalog name, in its original case.
func (t *Table) Name() string { return t.name }

// Columns returns the table's columns in the storage or display
// permutation that jetdb.Config.ColumnOrder selects.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	if t.db.cfg.ColumnOrder == jetdb.DisplayColumnOrder {
		sort.SliceStable(out, func(i, j int) bool { return out[i].DisplayIndex < out[j].DisplayIndex })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	}
	return out
}

// Indexes returns the table's index definitions.
func (t *Table) Indexes() []IndexDef {
	out := make([]IndexDef, len(t.indexes))
	copy(out, t.indexes)
	return out
}

// Index returns the named index, case-insensitively.
func (t *Table) Index(name string) (*btree.Index, *IndexDef, bool) {
	for i, ix := range t.indexes {
		if strings.EqualFold(ix.Name, name) {
			return t.btrees[i], &t.indexes[i], true
		}
	}
	return nil, nil, false
}

// Store exposes the underlying row store for package cursor's data-page
// scan backend.
func (t *Table) Store() *rowstore.Table { return t.store }

// ModCount returns the table's live modification counter (spec.md §4.7
// cursor revalidation).
func (t *Table) ModCount() uint64 { return t.store.ModCount() }

func columnLayouts(cols []Column) ([]rowstore.ColumnLayout, map[int]bool) {
	layouts := make([]rowstore.ColumnLayout, len(cols))
	longValue := map[int]bool{}
	for i, c := range cols {
		layouts[i] = rowstore.ColumnLayout{Index: c.Index, Column: c.toValueColumn()}
		if c.Type == value.Memo || c.Type == value.OLE {
			longValue[c.Index] = true
		}
	}
	return layouts, longValue
}

func indexColumns(cols []Column, idxCols []IndexColumn) []btree.Column {
	out := make([]btree.Column, len(idxCols))
	layouts, _ := columnLayouts(cols)
	byIndex := map[int]rowstore.ColumnLayout{}
	for _, l := range layouts {
		byIndex[l.Index] = l
	}
	for i, ic := range idxCols {
		out[i] = btree.Column{Layout: byIndex[ic.ColumnIndex], Ascending: ic.Ascending}
	}
	return out
}

// columnIndexesByName resolves names to their storage column_index,
// case-insensitively. ok is false if any name is not one of t's columns.
func (t *Table) columnIndexesByName(names []string) (out []int, ok bool) {
	byName := map[string]int{}
	for _, c := range t.columns {
		byName[strings.ToLower(c.Name)] = c.Index
	}
	out = make([]int, len(names))
	for i, n := range names {
		ci, found := byName[strings.ToLower(n)]
		if !found {
			return nil, false
		}
		out[i] = ci
	}
	return out, true
}

// InsertRow adds a row and keeps every index in sync.
func (t *Table) InsertRow(values []interface{}) (rowstore.RowId, error) {
	if err := t.checkForeignKeys(values); err != nil {
		return rowstore.RowId{}, err
	}
	rid, err := t.store.InsertRow(values)
	if err != nil {
		return rowstore.RowId{}, err
	}
	if err := t.persist(); err != nil {
		return rid, err
	}
	return rid, nil
}

// AddRows inserts rows in order, stopping at the first failure (foreign
// key violation or storage error) and returning the number actually
// committed.
func (t *Table) AddRows(rows [][]interface{}) (int, error) {
	for i, r := range rows {
		if err := t.checkForeignKeys(r); err != nil {
			return i, err
		}
		if _, err := t.store.InsertRow(r); err != nil {
			return i, err
		}
	}
	if err := t.persist(); err != nil {
		return len(rows), err
	}
	return len(rows), nil
}

// UpdateRow rewrites rid's values, enforcing foreign keys on the new
// values and cascading to any table that references this one through a
// relationship keyed on the columns being changed.
func (t *Table) UpdateRow(rid rowstore.RowId, values []interface{}) error {
	oldValues, ok, err := t.store.ReadRow(rid)
	if err != nil {
		return err
	}
	if !ok {
		return jetdb.New(jetdb.IllegalState, "update of a deleted or nonexistent row")
	}
	if err := t.checkForeignKeys(values); err != nil {
		return err
	}
	if err := t.cascadeOnUpdate(oldValues, values); err != nil {
		return err
	}
	if err := t.store.UpdateRow(rid, values); err != nil {
		return err
	}
	return t.persist()
}

// DeleteRow removes rid, first applying this table's relationship
// cascade rules (restrict, cascade delete, or set-null) to any
// referencing child rows.
func (t *Table) DeleteRow(rid rowstore.RowId) error {
	oldValues, ok, err := t.store.ReadRow(rid)
	if err != nil {
		return err
	}
	if !ok {
		return nil // already gone; DeleteRow is idempotent (spec.md §8)
	}
	if err := t.cascadeOnDelete(oldValues); err != nil {
		return err
	}
	if err := t.store.DeleteRow(rid); err != nil {
		return err
	}
	return t.persist()
}

// ReadRow decodes rid's current values.
func (t *Table) ReadRow(rid rowstore.RowId) ([]interface{}, bool, error) {
	return t.store.ReadRow(rid)
}

// persist rewrites the table's TABLE_DEF page with the row store's
// current chain head/tail and autonumber high-water marks, and every
// index's current root page. Called after each mutating operation
// since this engine makes no durability promise beyond "every public
// call that returns success has reached disk" (spec.md §5).
func (t *Table) persist() error {
	for i := range t.indexes {
		t.indexes[i].RootPage = uint32(t.btrees[i].RootPage())
	}
	for i, c := range t.columns {
		if !c.Flags.Has(ColAutoNumber) {
			continue
		}
		if last, ok := t.store.AutoNumberCurrent(c.Index); ok {
			c.AutoNumberLast = last
			t.columns[i] = c
		}
	}
	body := tableDefBody{
		tableType: 1,
		columns:   t.columns,
		indexes:   t.indexes,
		chainHead: t.store.HeadPage(),
		chainTail: t.store.TailPage(),
	}
	return t.db.writeTableDef(t.homePage, body)
}
