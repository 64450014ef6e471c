package catalog

import (
	"fmt"

	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/value"
)

// tableDefBody is the decoded, still-page-bound form of one table's
// TABLE_DEF page: everything Database.loadTable needs to build a
// rowstore.Table and its btree.Index set. original_source/ kept no
// files for this spec, so the exact byte layout below is this engine's
// own design rather than a transcription of the real Jet format; it
// reuses format.TableDefOffsets' field slots for values with the
// closest matching role, repurposing the two reserved map-pointer
// slots as described on each field (spec.md Open Question: usage-map
// persistence format is not pinned by the distillation).
type tableDefBody struct {
	numRows    uint32
	tableType  byte
	columns    []Column
	indexes    []IndexDef
	chainHead  page.Number
	chainTail  page.Number // cached hint only; Database.loadTable re-derives the true tail by walking
}

// encodeTableDef lays out body into a single TABLE_DEF page. Returns an
// error if the catalog body does not fit — this engine does not
// implement multi-page table-def chains, so a table with very many
// columns/indexes cannot be stored.
func encodeTableDef(f *format.Format, body tableDefBody) ([]byte, error) {
	off := f.TableDef
	buf := make([]byte, f.PageSize)
	buf[0] = byte(format.PageTypeTableDef)

	putU32(buf[off.NumRows:], body.numRows)
	buf[off.TableType] = body.tableType
	putU16(buf[off.MaxCols:], uint16(f.MaxColumns))
	putU16(buf[off.NumVarCols:], uint16(countVariable(body.columns)))
	putU16(buf[off.NumCols:], uint16(len(body.columns)))
	putU32(buf[off.NumIndexSlots:], uint32(len(body.indexes)))
	putU32(buf[off.NumIndexes:], uint32(len(body.indexes)))
	putU32(buf[off.UsageMapPtr:], uint32(body.chainHead))
	putU32(buf[off.FreeMapPtr:], uint32(body.chainTail))

	var out []byte
	for _, c := range body.columns {
		out = appendColumnEntry(out, c)
	}
	for _, ix := range body.indexes {
		out = appendIndexEntry(out, ix)
	}
	if off.ColumnCatStart+len(out) > len(buf) {
		return nil, fmt.Errorf("catalog: table-def body (%d bytes) does not fit in one page", len(out))
	}
	copy(buf[off.ColumnCatStart:], out)
	return buf, nil
}

func countVariable(cols []Column) int {
	n := 0
	for _, c := range cols {
		if !c.Type.IsFixedWidth() {
			n++
		}
	}
	return n
}

// decodeTableDef reverses encodeTableDef.
func decodeTableDef(f *format.Format, buf []byte) (tableDefBody, error) {
	off := f.TableDef
	var body tableDefBody
	body.numRows = getU32(buf[off.NumRows:])
	body.tableType = buf[off.TableType]
	numCols := int(getU16(buf[off.NumCols:]))
	numIndexes := int(getU32(buf[off.NumIndexes:]))
	body.chainHead = page.Number(getU32(buf[off.UsageMapPtr:]))
	body.chainTail = page.Number(getU32(buf[off.FreeMapPtr:]))

	r := buf[off.ColumnCatStart:]
	for i := 0; i < numCols; i++ {
		c, rest, err := readColumnEntry(r)
		if err != nil {
			return body, err
		}
		body.columns = append(body.columns, c)
		r = rest
	}
	for i := 0; i < numIndexes; i++ {
		ix, rest, err := readIndexEntry(r)
		if err != nil {
			return body, err
		}
		body.indexes = append(body.indexes, ix)
		r = rest
	}
	return body, nil
}

func appendColumnEntry(out []byte, c Column) []byte {
	out = append(out, byte(c.Type))
	out = appendU16(out, uint16(c.Flags))
	out = appendU16(out, uint16(c.Length))
	out = append(out, byte(c.Scale), byte(c.Precision))
	out = appendU16(out, c.SortOrderID)
	out = append(out, byte(c.Index), byte(c.DisplayIndex))
	out = appendU64(out, uint64(c.AutoNumberLast))
	out = appendString16(out, c.Name)
	out = appendString16(out, c.Validator)
	out = appendString16(out, c.DefaultExpr)
	return out
}

func readColumnEntry(b []byte) (Column, []byte, error) {
	if len(b) < 19 {
		return Column{}, nil, fmt.Errorf("catalog: truncated column entry")
	}
	var c Column
	c.Type = value.Type(b[0])
	c.Flags = ColumnFlags(getU16(b[1:]))
	c.Length = int(getU16(b[3:]))
	c.Scale = int(b[5])
	c.Precision = int(b[6])
	c.SortOrderID = getU16(b[7:])
	c.Index = int(b[9])
	c.DisplayIndex = int(b[10])
	c.AutoNumberLast = int64(getU64(b[11:]))
	b = b[19:]
	var err error
	c.Name, b, err = readString16(b)
	if err != nil {
		return Column{}, nil, err
	}
	c.Validator, b, err = readString16(b)
	if err != nil {
		return Column{}, nil, err
	}
	c.DefaultExpr, b, err = readString16(b)
	if err != nil {
		return Column{}, nil, err
	}
	return c, b, nil
}

func appendIndexEntry(out []byte, ix IndexDef) []byte {
	out = appendString16(out, ix.Name)
	out = appendU16(out, uint16(ix.Flags))
	out = appendU16(out, uint16(int16(ix.PeerIndexSlot)))
	out = appendU32(out, ix.RootPage)
	out = append(out, byte(len(ix.Columns)))
	for _, c := range ix.Columns {
		asc := byte(0)
		if c.Ascending {
			asc = 1
		}
		out = append(out, byte(c.ColumnIndex), asc)
	}
	return out
}

func readIndexEntry(b []byte) (IndexDef, []byte, error) {
	var ix IndexDef
	var err error
	ix.Name, b, err = readString16(b)
	if err != nil {
		return IndexDef{}, nil, err
	}
	if len(b) < 9 {
		return IndexDef{}, nil, fmt.Errorf("catalog: truncated index entry")
	}
	ix.Flags = IndexFlags(getU16(b))
	ix.PeerIndexSlot = int(int16(getU16(b[2:])))
	ix.RootPage = getU32(b[4:])
	n := int(b[8])
	b = b[9:]
	for i := 0; i < n; i++ {
		if len(b) < 2 {
			return IndexDef{}, nil, fmt.Errorf("catalog: truncated index column list")
		}
		ix.Columns = append(ix.Columns, IndexColumn{ColumnIndex: int(b[0]), Ascending: b[1] != 0})
		b = b[2:]
	}
	return ix, b, nil
}

func appendString16(out []byte, s string) []byte {
	r := []rune(s)
	out = appendU16(out, uint16(len(r)))
	for _, c := range r {
		out = appendU16(out, uint16(c))
	}
	return out
}

func readString16(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, fmt.Errorf("catalog: truncated string length")
	}
	n := int(getU16(b))
	b = b[2:]
	if len(b) < n*2 {
		return "", nil, fmt.Errorf("catalog: truncated string body")
	}
	r := make([]rune, n)
	for i := 0; i < n; i++ {
		r[i] = rune(getU16(b[i*2:]))
	}
	return string(r), b[n*2:], nil
}

func appendU16(out []byte, v uint16) []byte { return append(out, byte(v), byte(v>>8)) }
func appendU32(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func appendU64(out []byte, v uint64) []byte {
	for i := 0; i < 8; i++ {
		out = append(out, byte(v>>(8*uint(i))))
	}
	return out
}

func putU16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func putU32(b []byte, v uint32) { b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24) }
func getU16(b []byte) uint16    { return uint16(b[0]) | uint16(b[1])<<8 }
func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func getU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
