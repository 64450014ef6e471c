// Package btree implements the B-tree index (C6): key normalization,
// the intermediate/leaf page layouts, and lookup/insert/delete with
// split-on-overflow. It is the index-level sibling of package rowstore
// (C5); both are driven by package catalog (C8).
package btree

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/jetdb/collation"
	"github.com/zhukovaskychina/jetdb/rowstore"
	"github.com/zhukovaskychina/jetdb/value"
)

// Column describes one column's participation in an index entry: its
// storage layout, sort direction, and (for text) the collation it
// normalizes under.
type Column struct {
	Layout    rowstore.ColumnLayout
	Ascending bool
}

// normalizeColumn produces the order-preserving byte encoding of v under
// col, per spec.md §4.6.1: unsigned-comparable encodings for every fixed
// numeric type (sign bit flipped so two's-complement order matches
// unsigned byte order), collated weight runs for TEXT, and a trailing
// bitwise complement for descending columns. A nil v (SQL NULL) encodes
// to an empty byte string, which sorts before every non-null value.
func normalizeColumn(col Column, v interface{}) []byte {
	var b []byte
	if v != nil {
		b = normalizeValue(col.Layout.Column, v)
	}
	if !col.Ascending {
		b = complement(b)
	}
	return b
}

func normalizeValue(c value.Column, v interface{}) []byte {
	switch c.Type {
	case value.Bool:
		if v.(bool) {
			return []byte{1}
		}
		return []byte{0}
	case value.Byte:
		return []byte{v.(uint8)}
	case value.Int16:
		return flipSignBit(value.EncodeInt16(v.(int16)), 2)
	case value.Int32, value.Complex:
		return flipSignBit(value.EncodeInt32(v.(int32)), 4)
	case value.Int64:
		return flipSignBit(value.EncodeInt64(v.(int64)), 8)
	case value.Float32:
		return normalizeFloatBits(uint64(math.Float32bits(v.(float32))), 32)
	case value.Float64:
		return normalizeFloatBits(math.Float64bits(v.(float64)), 64)
	case value.Money:
		d := v.(decimal.Decimal)
		return flipSignBit(value.EncodeMoney(d), 8)
	case value.Numeric:
		return normalizeNumeric(v.(decimal.Decimal).Shift(int32(c.Scale)))
	case value.DateTime:
		return normalizeValue(value.Column{Type: value.Float64}, toFloat64Days(v.(time.Time)))
	case value.ExtDateTime:
		return normalizeValue(value.Column{Type: value.Float64}, toFloat64Days(v.(value.ExtDateTime).Time))
	case value.GUID:
		g := v.(value.GUID)
		return value.EncodeGUID(g)
	case value.Text:
		return normalizeText(c, v.(string))
	default:
		// BINARY/MEMO/OLE index columns normalize on their raw bytes;
		// this engine does not support indexing long-value columns
		// directly (spec.md §4.6 Non-goals list long-value key normalization
		// out of scope), so callers must not construct such an index.
		if raw, ok := v.([]byte); ok {
			return raw
		}
		return nil
	}
}

// flipSignBit inverts the top bit of a little-endian n-byte two's
// complement integer after reversing it to big-endian byte order, which
// makes unsigned byte-lexicographic compare agree with signed numeric
// compare.
func flipSignBit(littleEndian []byte, n int) []byte {
	be := reverseCopy(littleEndian)
	be[0] ^= 0x80
	return be
}

func reverseCopy(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// normalizeFloatBits maps IEEE bits to an order-preserving unsigned
// encoding: for positive values flip the sign bit, for negative values
// flip every bit, then emit big-endian.
func normalizeFloatBits(bits uint64, width int) []byte {
	if bits&(1<<(width-1)) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << (width - 1)
	}
	n := width / 8
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		shift := uint((n - 1 - i) * 8)
		out[i] = byte(bits >> shift)
	}
	return out
}

func toFloat64Days(t time.Time) float64 {
	b := value.EncodeDateTime(t)
	return math.Float64frombits(uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56)
}

// normalizeNumeric keys on the decimal's sign and magnitude. It reverses
// value.EncodeNumeric's little-endian magnitude to big-endian (so
// unsigned byte compare agrees with magnitude order) and remaps the sign
// byte (EncodeNumeric: 1 = negative, 0 = positive) to 0 = negative,
// 1 = positive so every negative value sorts before every positive one;
// among negatives the magnitude bytes are then bitwise-inverted so a
// larger magnitude (a more negative number) sorts first.
func normalizeNumeric(d decimal.Decimal) []byte {
	enc := value.EncodeNumeric(d, 0)
	out := make([]byte, len(enc))
	copy(out, enc)
	negative := enc[0] != 0
	magLE := enc[5:17]
	if negative {
		out[0] = 0
		for i := 0; i < 12; i++ {
			out[5+i] = ^magLE[11-i]
		}
	} else {
		out[0] = 1
		for i := 0; i < 12; i++ {
			out[5+i] = magLE[11-i]
		}
	}
	return out
}

// normalizeText runs s through the column's collation table, emitting
// one big-endian uint16 weight per rune, plus an accent-weight tail for
// collations that carry one.
func normalizeText(c value.Column, s string) []byte {
	table := collation.Lookup(collation.SortOrder(c.SortOrderID))
	runes := []rune(s)
	out := make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		w := table.Weight(r)
		out = append(out, byte(w>>8), byte(w))
	}
	if table.HasAccentTail() {
		out = append(out, 0x00, 0x01) // single-weight tail: present, no secondary distinction tracked
		for _, r := range runes {
			out = append(out, byte(r>>8), byte(r))
		}
	}
	return out
}

func complement(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

// rowIDBytes appends rid's (page, slot) as 4 trailing bytes so every
// entry key is unique even when the indexed columns collide, per
// spec.md §4.6 "keys are not required to be unique in isolation — the
// trailing rowid makes every entry unique".
func rowIDBytes(rid rowstore.RowId) []byte {
	return []byte{byte(rid.Page), byte(rid.Page >> 8), byte(rid.Page >> 16), rid.Slot}
}

// BuildEntry constructs the full sortable entry key: each column's
// normalized bytes length-prefixed (2-byte big-endian) so columns of
// differing normalized width remain independently comparable, followed
// by the disambiguating rowid suffix.
func BuildEntry(cols []Column, values []interface{}, rid rowstore.RowId) []byte {
	var out []byte
	for _, c := range cols {
		nb := normalizeColumn(c, values[c.Layout.Index])
		out = append(out, byte(len(nb)>>8), byte(len(nb)))
		out = append(out, nb...)
	}
	out = append(out, rowIDBytes(rid)...)
	return out
}

// BuildSearchKey is BuildEntry without the rowid suffix, used to locate
// the first entry at or after a given set of column values regardless
// of which row produced it.
func BuildSearchKey(cols []Column, values []interface{}) []byte {
	var out []byte
	for _, c := range cols {
		nb := normalizeColumn(c, values[c.Layout.Index])
		out = append(out, byte(len(nb)>>8), byte(len(nb)))
		out = append(out, nb...)
	}
	return out
}

// containsNull reports whether any of the index's columns is null in
// values, used to enforce an ignore-nulls unique index (spec.md §4.6.2).
func containsNull(cols []Column, values []interface{}) bool {
	for _, c := range cols {
		if values[c.Layout.Index] == nil {
			return true
		}
	}
	return false
}
