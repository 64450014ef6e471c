// Package format holds the per-version static layout descriptors (C1):
// page size, on-page field offsets, identifier limits, and the type
// predicate used to decide whether a given file can be opened by this
// build. Selection mirrors the teacher's page-type-tag dispatch in
// storage/wrapper/page/page_types.go: one byte read from the header page
// picks the whole descriptor.
package format

import "fmt"

// PageType is the one-byte tag at offset 0 of every page.
type PageType byte

const (
	PageTypeDBHeader              PageType = 0x00
	PageTypeData                  PageType = 0x01
	PageTypeTableDef               PageType = 0x02
	PageTypeIntermediateIndexData PageType = 0x03
	PageTypeLeafIndexData          PageType = 0x04
	PageTypeUsageMap               PageType = 0x05
)

func (t PageType) String() string {
	switch t {
	case PageTypeDBHeader:
		return "DB_HEADER"
	case PageTypeData:
		return "DATA"
	case PageTypeTableDef:
		return "TABLE_DEF"
	case PageTypeIntermediateIndexData:
		return "INTERMEDIATE_INDEX_DATA"
	case PageTypeLeafIndexData:
		return "LEAF_INDEX_DATA"
	case PageTypeUsageMap:
		return "USAGE_MAP"
	default:
		return fmt.Sprintf("PageType(0x%02x)", byte(t))
	}
}

// Version identifies a supported file-format generation.
type Version int

const (
	// VersionJet3 is the oldest supported variant: 2048-byte pages,
	// Windows-125x text, no COMPLEX/EXT_DATETIME column types.
	VersionJet3 Version = iota
	// VersionJet4 is the common "Access 2000-2003" variant: 4096-byte
	// pages, UCS-2 text, 32-bit page numbers.
	VersionJet4
	// VersionAccess2007 adds EXT_DATETIME, extended NUMERIC precision,
	// and COMPLEX columns on top of the Jet4 page layout.
	VersionAccess2007
)

func (v Version) String() string {
	switch v {
	case VersionJet3:
		return "JET3"
	case VersionJet4:
		return "JET4"
	case VersionAccess2007:
		return "ACCESS2007"
	default:
		return "UNKNOWN"
	}
}

// TableDefOffsets locates fixed fields within a TABLE_DEF page chain.
// Offsets are byte positions from the start of the page, counting the
// 1-byte type tag at offset 0.
type TableDefOffsets struct {
	NumRows        int
	NumAutoNumber   int
	TableType      int
	MaxCols        int
	NumVarCols     int
	NumCols        int
	NumIndexSlots  int
	NumIndexes     int
	UsageMapPtr    int
	FreeMapPtr     int
	RealIndexStart int
	ColumnCatStart int
}

// DataPageOffsets locates fixed fields within a DATA page.
type DataPageOffsets struct {
	FreeSpace  int
	OwnerTable int
	NextPage   int // forward link threading a table's data pages into one chain
	RowCount   int
	RowStart   int // offset of the first row-count/slot-table byte
}

// Format is the complete per-version descriptor.
type Format struct {
	Version Version

	PageSize int

	// MaxIdentifierLength bounds table/column/index names, in UCS-2
	// units.
	MaxIdentifierLength int

	// MaxColumns bounds both the fixed-column count and the
	// variable-column bookkeeping table (spec.md §3 "fixed 255;
	// variable-column bookkeeping 255").
	MaxColumns int

	// MaxColumnsPerIndex bounds the (column, ascending) tuples an index
	// may carry.
	MaxColumnsPerIndex int

	// TextUnitSize is the width, in bytes, of one UCS-2 code unit (2 for
	// every supported version; kept explicit for symmetry with the
	// source, which parameterizes it).
	TextUnitSize int

	TableDef TableDefOffsets
	DataPage DataPageOffsets

	// EmptyTemplateID names the embedded empty-database resource used
	// to seed Database.Create.
	EmptyTemplateID string

	// SupportsComplexColumns reports whether COMPLEX/EXT_DATETIME types
	// and the extended NUMERIC precision are legal in this version.
	SupportsComplexColumns bool
}

var jet4 = Format{
	Version:             VersionJet4,
	PageSize:            4096,
	MaxIdentifierLength: 64,
	MaxColumns:          255,
	MaxColumnsPerIndex:  10,
	TextUnitSize:        2,
	TableDef: TableDefOffsets{
		NumRows:        4,
		NumAutoNumber:  20,
		TableType:      40,
		MaxCols:        41,
		NumVarCols:     43,
		NumCols:        45,
		NumIndexSlots:  47,
		NumIndexes:     51,
		UsageMapPtr:    55,
		FreeMapPtr:     59,
		RealIndexStart: 63,
		ColumnCatStart: 63,
	},
	DataPage: DataPageOffsets{
		FreeSpace:  2,
		OwnerTable: 4,
		NextPage:   8,
		RowCount:   12,
		RowStart:   14,
	},
	EmptyTemplateID:        "empty_v2003.accdb",
	SupportsComplexColumns: false,
}

var access2007 = Format{
	Version:             VersionAccess2007,
	PageSize:            4096,
	MaxIdentifierLength: 64,
	MaxColumns:          255,
	MaxColumnsPerIndex:  10,
	TextUnitSize:        2,
	TableDef:            jet4.TableDef,
	DataPage:            jet4.DataPage,
	EmptyTemplateID:     "empty_v2007.accdb",
	SupportsComplexColumns: true,
}

var jet3 = Format{
	Version:             VersionJet3,
	PageSize:            2048,
	MaxIdentifierLength: 64,
	MaxColumns:          255,
	MaxColumnsPerIndex:  10,
	TextUnitSize:        2,
	TableDef: TableDefOffsets{
		NumRows:        4,
		NumAutoNumber:  18,
		TableType:      36,
		MaxCols:        37,
		NumVarCols:     39,
		NumCols:        41,
		NumIndexSlots:  43,
		NumIndexes:     47,
		UsageMapPtr:    51,
		FreeMapPtr:     55,
		RealIndexStart: 59,
		ColumnCatStart: 59,
	},
	DataPage: DataPageOffsets{
		FreeSpace:  2,
		OwnerTable: 4,
		NextPage:   8,
		RowCount:   12,
		RowStart:   14,
	},
	EmptyTemplateID:        "empty_v1997.mdb",
	SupportsComplexColumns: false,
}

// ByVersion returns the static descriptor for v.
func ByVersion(v Version) (*Format, bool) {
	switch v {
	case VersionJet3:
		return &jet3, true
	case VersionJet4:
		return &jet4, true
	case VersionAccess2007:
		return &access2007, true
	default:
		return nil, false
	}
}

// versionByteOffset locates the header-page byte (offset 0x14 in every variant)
// that selects the descriptor.
const versionByteOffset = 0x14

// WriteVersion stamps header's version byte to match v, the inverse of
// the switch DetectVersion reads. Database.Create calls this once when
// formatting a fresh header page.
func WriteVersion(header []byte, v Version) {
	b := byte(0x01)
	switch v {
	case VersionJet3:
		b = 0x00
	case VersionJet4:
		b = 0x01
	case VersionAccess2007:
		b = 0x02
	}
	header[versionByteOffset] = b
}

// DetectVersion reads the version byte out of a decoded header page and
// resolves it to a Format. header must be at least versionByteOffset+1
// bytes.
func DetectVersion(header []byte) (*Format, error) {
	if len(header) <= versionByteOffset {
		return nil, fmt.Errorf("header page too short to carry a version byte")
	}
	switch header[versionByteOffset] {
	case 0x00:
		return &jet3, nil
	case 0x01:
		return &jet4, nil
	case 0x02, 0x03:
		return &access2007, nil
	default:
		return nil, fmt.Errorf("unrecognized database version byte 0x%02x", header[versionByteOffset])
	}
}
