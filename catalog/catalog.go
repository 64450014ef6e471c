// Package catalog implements the catalog / table loader (C8): discovery
// of user tables, their columns, indexes, and relationships from the
// system tables, plus the per-table metadata cache the rest of the
// engine consults. It is the component that wires package rowstore (C5)
// and package btree (C6) together under one Database handle, the way
// the teacher's manager.DictionaryManager sits above its storage and
// buffer-pool layers.
package catalog

import (
	"github.com/zhukovaskychina/jetdb/value"
)

// ColumnFlags packs the boolean attributes spec.md §3's Column entry
// lists beyond type/length/scale.
type ColumnFlags uint16

const (
	ColAutoNumber ColumnFlags = 1 << iota
	ColCompressedUnicode
	ColAppendOnly
	ColHyperlink
	ColCalculated
)

func (f ColumnFlags) Has(bit ColumnFlags) bool { return f&bit != 0 }

// Column is one table column's full catalog metadata, the source that
// rowstore.ColumnLayout and btree.Column are each projected from.
type Column struct {
	Name         string
	Index        int // storage order, per spec.md §3 "column list ordering is by column_index"
	DisplayIndex int // separate user-visible permutation
	Type         value.Type

	Scale     int
	Precision int
	Length    int // TEXT unit count; ignored for other types

	SortOrderID uint16
	Flags       ColumnFlags

	// AutoNumberLast is the persisted high-water mark for an
	// ColAutoNumber column; ignored for every other column.
	AutoNumberLast int64

	// Validator and DefaultExpr are opaque expression text the core
	// never evaluates (spec.md §1 Non-goals: no expression evaluator),
	// carried only so a caller-supplied evaluator can consume them.
	Validator   string
	DefaultExpr string
}

func (c Column) toValueColumn() value.Column {
	return value.Column{
		Type:              c.Type,
		Scale:             c.Scale,
		Precision:         c.Precision,
		SortOrderID:       c.SortOrderID,
		CompressedUnicode: c.Flags.Has(ColCompressedUnicode),
		Length:            c.Length,
	}
}

// IndexColumn is one (column, direction) tuple in an index's key.
type IndexColumn struct {
	ColumnIndex int
	Ascending   bool
}

// IndexFlags packs an index's boolean attributes.
type IndexFlags uint16

const (
	IdxUnique IndexFlags = 1 << iota
	IdxRequired
	IdxIgnoreNulls
	IdxPrimaryKey
	IdxForeignKey
)

func (f IndexFlags) Has(bit IndexFlags) bool { return f&bit != 0 }

// IndexDef is one index's full catalog metadata.
type IndexDef struct {
	Name    string
	Columns []IndexColumn
	Flags   IndexFlags

	// PeerIndexSlot is the 0-based slot, within the same table's index
	// list, of the other side of a foreign-key relationship; -1 if this
	// index is not one side of an FK.
	PeerIndexSlot int

	RootPage uint32
}

// RelationshipFlags packs a Relationship's boolean attributes.
type RelationshipFlags uint16

const (
	RelOneToOne RelationshipFlags = 1 << iota
	RelNoReferentialIntegrity
	RelCascadeUpdates
	RelCascadeDeletes
	RelCascadeSetNull
	RelLeftOuter
	RelRightOuter
)

func (f RelationshipFlags) Has(bit RelationshipFlags) bool { return f&bit != 0 }

// Relationship is one parent/child table link, per spec.md §3.
type Relationship struct {
	Name        string
	FromTable   string
	ToTable     string
	FromColumns []string
	ToColumns   []string
	Flags       RelationshipFlags
}

// LinkResolver opens the Database a linked/external table reference
// names. The core only requires this callback surface (spec.md §4.8);
// resolving a real linked-table file is an external collaborator's job.
type LinkResolver interface {
	ResolveLinked(linkerDB *Database, linkeeFileName string) (*Database, error)
}
