package btree

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/zhukovaskychina/jetdb/rowstore"
	"github.com/zhukovaskychina/jetdb/value"
)

func numericColumn() value.Column { return value.Column{Type: value.Numeric, Scale: 2} }

func columnLayout(c value.Column) rowstore.ColumnLayout {
	return rowstore.ColumnLayout{Index: 0, Column: c}
}

// assertOrdered checks that normalizeValue's byte encoding sorts the
// same way the values themselves are ordered, the property spec.md
// §4.6.1 keys are built to satisfy.
func assertOrdered(t *testing.T, col value.Column, ascending []interface{}) {
	t.Helper()
	var prev []byte
	for i, v := range ascending {
		enc := normalizeValue(col, v)
		if i > 0 {
			assert.True(t, compareBytes(prev, enc) < 0, "value %d (%v) does not sort after value %d", i, v, i-1)
		}
		prev = enc
	}
}

func TestNormalizeNumericOrdering(t *testing.T) {
	values := []interface{}{
		decimal.RequireFromString("-1000.00"),
		decimal.RequireFromString("-1.50"),
		decimal.RequireFromString("-0.01"),
		decimal.NewFromInt(0),
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("5.00"),
		decimal.RequireFromString("256.00"),
		decimal.RequireFromString("1000.00"),
	}
	assertOrdered(t, numericColumn(), values)
}

func TestNormalizeMoneyOrdering(t *testing.T) {
	col := value.Column{Type: value.Money}
	values := []interface{}{
		decimal.RequireFromString("-1000.00"),
		decimal.RequireFromString("-0.01"),
		decimal.NewFromInt(0),
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(5),
		decimal.NewFromInt(256),
		decimal.RequireFromString("1000.00"),
	}
	assertOrdered(t, col, values)
}

func TestNormalizeInt32Ordering(t *testing.T) {
	col := value.Column{Type: value.Int32}
	values := []interface{}{int32(-100), int32(-1), int32(0), int32(1), int32(256), int32(100000)}
	assertOrdered(t, col, values)
}

func TestNormalizeFloat64Ordering(t *testing.T) {
	col := value.Column{Type: value.Float64}
	values := []interface{}{-100.5, -0.1, 0.0, 0.1, 100.5}
	assertOrdered(t, col, values)
}

func TestNormalizeTextOrdering(t *testing.T) {
	col := value.Column{Type: value.Text}
	values := []interface{}{"apple", "banana", "cherry", "date"}
	assertOrdered(t, col, values)
}

func TestNormalizeColumnDescendingReversesOrder(t *testing.T) {
	asc := Column{Layout: columnLayout(value.Column{Type: value.Int32}), Ascending: true}
	desc := Column{Layout: columnLayout(value.Column{Type: value.Int32}), Ascending: false}

	lo := normalizeColumn(asc, int32(1))
	hi := normalizeColumn(asc, int32(2))
	assert.True(t, compareBytes(lo, hi) < 0)

	loDesc := normalizeColumn(desc, int32(1))
	hiDesc := normalizeColumn(desc, int32(2))
	assert.True(t, compareBytes(loDesc, hiDesc) > 0)
}

func TestBuildEntryAndSearchKeyPrefixMatch(t *testing.T) {
	cols := []Column{{Layout: columnLayout(value.Column{Type: value.Int32}), Ascending: true}}
	values := []interface{}{int32(42)}
	rid := rowstore.RowId{Page: 3, Slot: 1}

	entry := BuildEntry(cols, values, rid)
	search := BuildSearchKey(cols, values)
	assert.Equal(t, search, entry[:len(search)])
}
