// Package complex implements the complex-column engine (C9): secondary
// table-backed multi-valued columns. A COMPLEX column in a parent row
// holds only an int32 "complex value" group id (value.Complex, encoded
// like an INT32 per spec.md §4.4); the actual rows that group id
// identifies live in a hidden secondary table this package creates,
// reads, and mutates through the same catalog.Table/rowstore.Table
// machinery every ordinary table uses — there is no separate storage
// path, matching how the teacher layers dictionary-driven secondary
// structures (e.g. its index and segment trees) on the same page store
// as user tables rather than inventing a parallel one.
package complex

import (
	"bytes"
	"compress/flate"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/catalog"
	"github.com/zhukovaskychina/jetdb/cursor"
	"github.com/zhukovaskychina/jetdb/rowstore"
	"github.com/zhukovaskychina/jetdb/value"
)

// Kind selects which of the three secondary-table shapes spec.md §4.9
// describes a complex column uses.
type Kind int

const (
	// MultiValue stores one arbitrary-typed "value" column per entry.
	MultiValue Kind = iota
	// Attachment stores {url, name, type, data, time_stamp, flags}.
	Attachment
	// VersionHistory stores {value MEMO, modified_date}; immutable once
	// written (spec.md §4.9).
	VersionHistory
)

// Secondary-table column indexes, fixed by this engine's own schema for
// each Kind (spec.md says only what fields each shape carries, not their
// storage order — this is this engine's design, like the header-field
// offsets catalog/database.go's doc comment already calls out).
const (
	colComplexFK = 0 // the group id a parent row's COMPLEX value names
	colRowID     = 1 // per-entry auto-number id, unique within the table

	// MultiValue
	mvColValue = 2

	// Attachment
	atColURL       = 2
	atColName      = 3
	atColType      = 4
	atColData      = 5 // OLE long value: framed per EncodeAttachmentData
	atColTimeStamp = 6
	atColFlags     = 7

	// VersionHistory
	vhColValue        = 2 // MEMO
	vhColModifiedDate = 3
)

// Column is one secondary-table column the caller supplies for a
// MultiValue column's "value" slot; the id/fk columns are always added
// by Create.
type Column = value.Column

// ComplexColumn is a live handle on one COMPLEX column's secondary
// table: the table doing the actual row storage, this column's Kind,
// and the monotonic group-id counter new complex values are assigned
// from (spec.md §4.4 "Value 0 = unset" reserves 0, so the counter
// starts at 1).
type ComplexColumn struct {
	kind      Kind
	secondary *catalog.Table
	nextGroup int64
}

// Create builds the hidden secondary table backing a COMPLEX column
// named parentColumn on parentTable, with the schema kind implies.
// valueColumn supplies the "value" column's type for MultiValue; it is
// ignored for Attachment and VersionHistory, whose schemas are fixed by
// spec.md §4.9.
func Create(db *catalog.Database, parentTable, parentColumn string, kind Kind, valueColumn Column) (*ComplexColumn, error) {
	name := secondaryTableName(parentTable, parentColumn)
	cols := []catalog.Column{
		{Name: "ComplexValueFK", Index: colComplexFK, Type: value.Int32},
		{Name: "RowID", Index: colRowID, Type: value.Int32, Flags: catalog.ColAutoNumber},
	}
	switch kind {
	case MultiValue:
		cols = append(cols, catalog.Column{Name: "Value", Index: mvColValue, Type: valueColumn.Type,
			Scale: valueColumn.Scale, Precision: valueColumn.Precision, Length: valueColumn.Length,
			SortOrderID: valueColumn.SortOrderID,
			Flags:       flagsFromValueColumn(valueColumn)})
	case Attachment:
		cols = append(cols,
			catalog.Column{Name: "FileURL", Index: atColURL, Type: value.Text, Length: 255},
			catalog.Column{Name: "FileName", Index: atColName, Type: value.Text, Length: 255},
			catalog.Column{Name: "FileType", Index: atColType, Type: value.Text, Length: 255},
			catalog.Column{Name: "FileData", Index: atColData, Type: value.OLE},
			catalog.Column{Name: "FileTimeStamp", Index: atColTimeStamp, Type: value.DateTime},
			catalog.Column{Name: "FileFlags", Index: atColFlags, Type: value.Int32},
		)
	case VersionHistory:
		cols = append(cols,
			catalog.Column{Name: "Value", Index: vhColValue, Type: value.Memo},
			catalog.Column{Name: "ModifiedDate", Index: vhColModifiedDate, Type: value.DateTime},
		)
	default:
		return nil, jetdb.New(jetdb.InvalidArgument, "complex: unknown kind %d", kind)
	}

	t, err := db.CreateTable(name, cols, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "complex: creating secondary table %q", name)
	}
	return &ComplexColumn{kind: kind, secondary: t, nextGroup: 1}, nil
}

// Open re-attaches to an already-created secondary table, e.g. after
// catalog.Database.Open reloads the catalog. highWaterGroup is the
// caller's best-known last-assigned group id (0 if unknown); NextGroup
// always returns at least highWaterGroup+1.
func Open(db *catalog.Database, parentTable, parentColumn string, kind Kind, highWaterGroup int64) (*ComplexColumn, error) {
	name := secondaryTableName(parentTable, parentColumn)
	t, err := db.Table(name)
	if err != nil {
		return nil, err
	}
	return &ComplexColumn{kind: kind, secondary: t, nextGroup: highWaterGroup + 1}, nil
}

func secondaryTableName(parentTable, parentColumn string) string {
	return strings.ToLower(parentTable) + "_" + strings.ToLower(parentColumn) + "_complex"
}

func flagsFromValueColumn(c Column) catalog.ColumnFlags {
	if c.CompressedUnicode {
		return catalog.ColCompressedUnicode
	}
	return 0
}

// NextGroup allocates a fresh complex-value group id for a parent row's
// COMPLEX column, the value the caller stores in the parent row itself.
// Like every other mutating call in this engine, it assumes single-
// threaded use of the owning Database (spec.md §5).
func (cc *ComplexColumn) NextGroup() int32 {
	g := cc.nextGroup
	cc.nextGroup++
	return int32(g)
}

// Kind reports which secondary-table shape this column uses.
func (cc *ComplexColumn) Kind() Kind { return cc.kind }

// AddValue appends one entry to group's collection and returns its
// RowId. fields are the type-specific columns in the order Create laid
// them out (one value for MultiValue; url/name/type/data/timestamp/flags
// for Attachment; value/modified_date for VersionHistory).
func (cc *ComplexColumn) AddValue(group int32, fields ...interface{}) (rowstore.RowId, error) {
	row := append([]interface{}{group, nil}, fields...)
	return cc.secondary.InsertRow(row)
}

// UpdateValue rewrites an existing entry's type-specific fields, in the
// same order AddValue takes them. VersionHistory entries are immutable
// once written (spec.md §4.9) and always fail with ConstraintViolation.
func (cc *ComplexColumn) UpdateValue(rid rowstore.RowId, fields ...interface{}) error {
	if cc.kind == VersionHistory {
		return jetdb.New(jetdb.ConstraintViolation, "complex: version-history entries are append-only")
	}
	old, ok, err := cc.secondary.ReadRow(rid)
	if err != nil {
		return err
	}
	if !ok {
		return jetdb.New(jetdb.IllegalState, "complex: update of a deleted or nonexistent entry")
	}
	row := append([]interface{}{old[colComplexFK], old[colRowID]}, fields...)
	return cc.secondary.UpdateRow(rid, row)
}

// DeleteValue removes one entry. Idempotent, like rowstore.Table.DeleteRow.
func (cc *ComplexColumn) DeleteValue(rid rowstore.RowId) error {
	return cc.secondary.DeleteRow(rid)
}

// GetValues returns every live entry in group, in storage (insertion)
// order, as (RowId, type-specific-fields) pairs — the ComplexValueFK and
// RowID bookkeeping columns are stripped.
func (cc *ComplexColumn) GetValues(group int32) ([]Entry, error) {
	c := cursor.New(cursor.NewTableScan(cc.secondary))
	var out []Entry
	for {
		ok, err := c.MoveNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rid, values, _ := c.Current()
		if values[colComplexFK].(int32) != group {
			continue
		}
		out = append(out, Entry{RowId: rid, Fields: append([]interface{}{}, values[2:]...)})
	}
	return out, nil
}

// Entry is one complex-column secondary-table row, with the
// ComplexValueFK/RowID bookkeeping columns already stripped.
type Entry struct {
	RowId  rowstore.RowId
	Fields []interface{}
}

const attachmentHeaderSize = 20

var attachmentSignature = [4]byte{'J', 'A', 'C', '1'}

// EncodeAttachmentData frames an attachment payload per spec.md §4.9: a
// 20-byte header (signature, filename length, a compressed flag in the
// reserved space, then padding) followed by the filename and, when
// compression helps, the deflate-compressed content; otherwise the raw
// bytes. The package wires the stdlib's compress/flate rather than a
// pack dependency — see DESIGN.md for why no pack library covers RFC
// 1951 deflate bit-exactly.
func EncodeAttachmentData(filename string, raw []byte) ([]byte, error) {
	nameBytes := []byte(filename)
	if len(nameBytes) > 0xFFFF {
		return nil, jetdb.New(jetdb.InvalidArgument, "complex: attachment filename too long")
	}

	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return nil, errors.Wrap(err, "complex: building deflate writer")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, errors.Wrap(err, "complex: deflating attachment content")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "complex: closing deflate writer")
	}

	useCompressed := compressed.Len() < len(raw)
	payload := raw
	compressedFlag := byte(0)
	if useCompressed {
		payload = compressed.Bytes()
		compressedFlag = 1
	}

	header := make([]byte, attachmentHeaderSize)
	copy(header[0:4], attachmentSignature[:])
	header[4] = byte(len(nameBytes))
	header[5] = byte(len(nameBytes) >> 8)
	header[6] = compressedFlag
	// bytes 7-19 reserved, left zero

	out := make([]byte, 0, attachmentHeaderSize+len(nameBytes)+len(payload))
	out = append(out, header...)
	out = append(out, nameBytes...)
	out = append(out, payload...)
	return out, nil
}

// DecodeAttachmentData reverses EncodeAttachmentData.
func DecodeAttachmentData(buf []byte) (filename string, raw []byte, err error) {
	if len(buf) < attachmentHeaderSize {
		return "", nil, jetdb.New(jetdb.CorruptFormat, "complex: attachment header truncated")
	}
	if !bytes.Equal(buf[0:4], attachmentSignature[:]) {
		return "", nil, jetdb.New(jetdb.CorruptFormat, "complex: attachment signature mismatch")
	}
	nameLen := int(buf[4]) | int(buf[5])<<8
	compressed := buf[6] != 0
	pos := attachmentHeaderSize
	if pos+nameLen > len(buf) {
		return "", nil, jetdb.New(jetdb.CorruptFormat, "complex: attachment filename truncated")
	}
	filename = string(buf[pos : pos+nameLen])
	pos += nameLen
	payload := buf[pos:]
	if !compressed {
		raw = append([]byte{}, payload...)
		return filename, raw, nil
	}
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()
	raw, err = io.ReadAll(r)
	if err != nil {
		return "", nil, errors.Wrap(err, "complex: inflating attachment content")
	}
	return filename, raw, nil
}
