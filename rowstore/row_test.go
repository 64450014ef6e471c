package rowstore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/jetdb/value"
)

func testLayouts() []ColumnLayout {
	return []ColumnLayout{
		{Index: 0, Column: value.Column{Type: value.Int32}},
		{Index: 1, Column: value.Column{Type: value.Text, Length: 50}},
		{Index: 2, Column: value.Column{Type: value.Money}},
		{Index: 3, Column: value.Column{Type: value.Bool}},
		{Index: 4, Column: value.Column{Type: value.Complex}},
	}
}

func TestEncodeDecodeRowRoundTrip(t *testing.T) {
	layouts := testLayouts()
	values := []interface{}{
		int32(7),
		"hello",
		decimal.RequireFromString("12.5"),
		true,
		int32(3),
	}
	raw, err := EncodeRow(layouts, values)
	require.NoError(t, err)

	out, err := DecodeRow(layouts, raw)
	require.NoError(t, err)
	require.Len(t, out, len(values))

	assert.Equal(t, int32(7), out[0])
	assert.Equal(t, "hello", out[1])
	assert.True(t, values[2].(decimal.Decimal).Equal(out[2].(decimal.Decimal)))
	assert.Equal(t, true, out[3])
	assert.Equal(t, int32(3), out[4])
}

func TestEncodeDecodeRowWithNulls(t *testing.T) {
	layouts := testLayouts()
	values := []interface{}{int32(1), nil, nil, false, nil}

	raw, err := EncodeRow(layouts, values)
	require.NoError(t, err)

	out, err := DecodeRow(layouts, raw)
	require.NoError(t, err)

	assert.Equal(t, int32(1), out[0])
	assert.Nil(t, out[1])
	assert.Nil(t, out[2])
	assert.Equal(t, false, out[3])
	assert.Nil(t, out[4])
}

func TestEncodeRowRejectsWrongArity(t *testing.T) {
	layouts := testLayouts()
	_, err := EncodeRow(layouts, []interface{}{int32(1)})
	require.Error(t, err)
}

func TestEncodeDecodeExtDateTime(t *testing.T) {
	layouts := []ColumnLayout{{Index: 0, Column: value.Column{Type: value.ExtDateTime}}}
	in := value.ExtDateTime{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), TZOffsetMinutes: 120}

	raw, err := EncodeRow(layouts, []interface{}{in})
	require.NoError(t, err)

	out, err := DecodeRow(layouts, raw)
	require.NoError(t, err)
	got := out[0].(value.ExtDateTime)
	assert.Equal(t, in.TZOffsetMinutes, got.TZOffsetMinutes)
	assert.WithinDuration(t, in.Time, got.Time, time.Second)
}
