package catalog

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/btree"
	"github.com/zhukovaskychina/jetdb/rowstore"
)

// columnNamesForIndex projects an IndexDef's column_index list back to
// names, using cols to resolve each index. Relationship.FromColumns /
// ToColumns are carried as names (spec.md §3), while IndexDef carries
// positions, so matching the two requires this translation.
func columnNamesForIndex(cols []Column, ix IndexDef) []string {
	byIndex := map[int]string{}
	for _, c := range cols {
		byIndex[c.Index] = c.Name
	}
	names := make([]string, len(ix.Columns))
	for i, ic := range ix.Columns {
		names[i] = byIndex[ic.ColumnIndex]
	}
	return names
}

// findCoveringIndex returns the first index of t whose column list
// equals colNames, in order and case-insensitively — the index a
// relationship's referential-integrity check or cascade needs to look
// up or enumerate matching rows.
func findCoveringIndex(t *Table, colNames []string) (*btree.Index, *IndexDef, bool) {
	for i, ix := range t.indexes {
		names := columnNamesForIndex(t.columns, ix)
		if len(names) != len(colNames) {
			continue
		}
		match := true
		for j := range names {
			if !strings.EqualFold(names[j], colNames[j]) {
				match = false
				break
			}
		}
		if match {
			return t.btrees[i], &t.indexes[i], true
		}
	}
	return nil, nil, false
}

// checkForeignKeys validates values against every relationship where t
// is the child side, before the row reaches storage. A foreign key made
// entirely of nulls is exempt (spec.md §3's "unless ignore-nulls-and-
// all-null" reading applied at the relationship level, since Access
// foreign keys have no independent ignore-nulls flag of their own).
func (t *Table) checkForeignKeys(values []interface{}) error {
	if !t.db.cfg.EnforceForeignKeys {
		return nil
	}
	for _, rel := range t.db.relationships {
		if !strings.EqualFold(rel.FromTable, t.name) || rel.Flags.Has(RelNoReferentialIntegrity) {
			continue
		}
		fkIdx, ok := t.columnIndexesByName(rel.FromColumns)
		if !ok {
			continue
		}
		fkValues := make([]interface{}, len(fkIdx))
		allNull := true
		for i, ci := range fkIdx {
			fkValues[i] = values[ci]
			if values[ci] != nil {
				allNull = false
			}
		}
		if allNull {
			continue
		}
		parent, err := t.db.Table(rel.ToTable)
		if err != nil {
			return err
		}
		parentIdx, _, ok := findCoveringIndex(parent, rel.ToColumns)
		if !ok {
			return jetdb.New(jetdb.ConstraintViolation, "relationship %q: %q has no index covering %v", rel.Name, rel.ToTable, rel.ToColumns)
		}
		_, found, err := parentIdx.FindFirstByEntry(fkValues)
		if err != nil {
			return err
		}
		if !found {
			return jetdb.New(jetdb.ConstraintViolation, "row violates foreign key %q: no matching %q row", rel.Name, rel.ToTable)
		}
	}
	return nil
}

// cascadeOnDelete applies every relationship where t is the parent side
// to oldValues, the row about to be deleted: restrict (the default),
// cascade the delete, or set the child's foreign key columns to null.
// Only one hop deep — the child mutation below goes straight through
// the row store, not back through catalog.Table, so a child that is
// itself a parent of some other relationship is not transitively
// cascaded (spec.md §3: relationships cascade one hop only).
func (t *Table) cascadeOnDelete(oldValues []interface{}) error {
	if !t.db.cfg.EnforceForeignKeys {
		return nil
	}
	for _, rel := range t.db.relationships {
		if !strings.EqualFold(rel.ToTable, t.name) || rel.Flags.Has(RelNoReferentialIntegrity) {
			continue
		}
		toIdx, ok := t.columnIndexesByName(rel.ToColumns)
		if !ok {
			continue
		}
		child, err := t.db.Table(rel.FromTable)
		if err != nil {
			return err
		}
		childIdx, _, ok := findCoveringIndex(child, rel.FromColumns)
		if !ok {
			continue
		}
		keyValues := make([]interface{}, len(toIdx))
		for i, ci := range toIdx {
			keyValues[i] = oldValues[ci]
		}
		rows, err := childIdx.EntriesMatching(keyValues)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		switch {
		case rel.Flags.Has(RelCascadeDeletes):
			t.db.log.WithFields(logrus.Fields{"relationship": rel.Name, "child_table": rel.FromTable, "rows": len(rows)}).
				Debug("cascading delete to child rows")
			for _, rid := range rows {
				if err := child.store.DeleteRow(rid); err != nil {
					return err
				}
			}
		case rel.Flags.Has(RelCascadeSetNull):
			fromIdx, ok := child.columnIndexesByName(rel.FromColumns)
			if !ok {
				continue
			}
			t.db.log.WithFields(logrus.Fields{"relationship": rel.Name, "child_table": rel.FromTable, "rows": len(rows)}).
				Debug("cascading set-null to child rows")
			if err := setChildColumnsNull(child, rows, fromIdx); err != nil {
				return err
			}
		default:
			return jetdb.New(jetdb.ConstraintViolation, "relationship %q: delete blocked by %d referencing row(s) in %q", rel.Name, len(rows), rel.FromTable)
		}
	}
	return nil
}

// cascadeOnUpdate applies every relationship where t is the parent side
// to a row whose referenced-column values are changing: restrict,
// cascade the update into the child's matching foreign key columns, or
// leave mismatched children alone if the key did not actually change.
func (t *Table) cascadeOnUpdate(oldValues, newValues []interface{}) error {
	if !t.db.cfg.EnforceForeignKeys {
		return nil
	}
	for _, rel := range t.db.relationships {
		if !strings.EqualFold(rel.ToTable, t.name) || rel.Flags.Has(RelNoReferentialIntegrity) {
			continue
		}
		toIdx, ok := t.columnIndexesByName(rel.ToColumns)
		if !ok {
			continue
		}
		changed := false
		for _, ci := range toIdx {
			if !fkValueEqual(oldValues[ci], newValues[ci]) {
				changed = true
				break
			}
		}
		if !changed {
			continue
		}
		child, err := t.db.Table(rel.FromTable)
		if err != nil {
			return err
		}
		childIdx, _, ok := findCoveringIndex(child, rel.FromColumns)
		if !ok {
			continue
		}
		oldKey := make([]interface{}, len(toIdx))
		for i, ci := range toIdx {
			oldKey[i] = oldValues[ci]
		}
		rows, err := childIdx.EntriesMatching(oldKey)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		if !rel.Flags.Has(RelCascadeUpdates) {
			return jetdb.New(jetdb.ConstraintViolation, "relationship %q: update of a referenced key blocked by %d row(s) in %q", rel.Name, len(rows), rel.FromTable)
		}
		fromIdx, ok := child.columnIndexesByName(rel.FromColumns)
		if !ok {
			continue
		}
		t.db.log.WithFields(logrus.Fields{"relationship": rel.Name, "child_table": rel.FromTable, "rows": len(rows)}).
			Debug("cascading update to child rows")
		for _, rid := range rows {
			vals, ok, err := child.store.ReadRow(rid)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for i, ci := range fromIdx {
				vals[ci] = newValues[toIdx[i]]
			}
			if err := child.store.UpdateRow(rid, vals); err != nil {
				return err
			}
		}
	}
	return nil
}

// setChildColumnsNull nulls out fromIdx's columns in every row of rows,
// for a set-null cascade.
func setChildColumnsNull(child *Table, rows []rowstore.RowId, fromIdx []int) error {
	for _, rid := range rows {
		vals, ok, err := child.store.ReadRow(rid)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, ci := range fromIdx {
			vals[ci] = nil
		}
		if err := child.store.UpdateRow(rid, vals); err != nil {
			return err
		}
	}
	return nil
}

// fkValueEqual is a cheap equality check over the fixed/text value types
// a foreign key column may hold. It is not a general value comparator —
// long-value columns are never indexable and so never appear here
// (spec.md §4.6.2 Non-goal).
func fkValueEqual(a, b interface{}) bool {
	return a == b
}
