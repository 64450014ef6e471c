package value

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedSizeMatchesDispatchWidth(t *testing.T) {
	// Every fixed-width type's declared size must agree with what its
	// own encode function actually produces, otherwise EncodeRow's
	// length check (rowstore) rejects every row of that type.
	cases := []struct {
		typ Type
		enc []byte
	}{
		{Bool, EncodeBool(true)},
		{Byte, EncodeByte(7)},
		{Int16, EncodeInt16(-1)},
		{Int32, EncodeInt32(42)},
		{Complex, EncodeInt32(42)},
		{Int64, EncodeInt64(42)},
		{Float32, EncodeFloat32(1.5)},
		{Float64, EncodeFloat64(1.5)},
		{Money, EncodeMoney(decimal.NewFromFloat(1.5))},
		{DateTime, EncodeDateTime(time.Now())},
		{GUID, EncodeGUID(GUID{})},
	}
	for _, c := range cases {
		assert.Equal(t, c.typ.FixedSize(), len(c.enc), "type %s", c.typ)
	}
	assert.Equal(t, 42, len(EncodeExtDateTime(time.Now(), 0)))
	assert.Equal(t, 17, len(EncodeNumeric(decimal.NewFromFloat(1.5), 2)))
}

func TestDateTimeRoundTrip(t *testing.T) {
	in := time.Date(2023, time.March, 15, 10, 30, 0, 0, time.UTC)
	enc := EncodeDateTime(in)
	out := DecodeDateTime(enc)
	assert.WithinDuration(t, in, out, time.Millisecond)
}

func TestExtDateTimeRoundTrip(t *testing.T) {
	in := time.Date(2023, time.March, 15, 10, 30, 45, 0, time.UTC)
	enc := EncodeExtDateTime(in, -300)
	out, tz, err := DecodeExtDateTime(enc)
	require.NoError(t, err)
	assert.Equal(t, -300, tz)
	assert.WithinDuration(t, in, out, time.Second)
}

func TestMoneyRoundTrip(t *testing.T) {
	in := decimal.RequireFromString("-1234.5678")
	enc := EncodeMoney(in)
	out := DecodeMoney(enc)
	assert.True(t, in.Equal(out), "got %s want %s", out, in)
}

func TestNumericRoundTrip(t *testing.T) {
	in := decimal.RequireFromString("123456789012345.67")
	enc := EncodeNumeric(in, 2)
	out := DecodeNumeric(enc, 2)
	assert.True(t, in.Equal(out), "got %s want %s", out, in)
}

func TestNumericRoundTripNegative(t *testing.T) {
	in := decimal.RequireFromString("-42.5")
	enc := EncodeNumeric(in, 1)
	out := DecodeNumeric(enc, 1)
	assert.True(t, in.Equal(out), "got %s want %s", out, in)
}

func TestTextRoundTripCompressed(t *testing.T) {
	in := "hello jetdb"
	enc := EncodeText(in, true)
	assert.Equal(t, in, DecodeText(enc))
}

func TestTextRoundTripUncompressed(t *testing.T) {
	in := "日本語" // every code point exceeds one byte, forcing the raw form
	enc := EncodeText(in, true)
	assert.Equal(t, in, DecodeText(enc))
}

func TestGUIDRoundTrip(t *testing.T) {
	g, err := ParseGUID("{01234567-89ab-cdef-0123-456789abcdef}")
	require.NoError(t, err)
	enc := EncodeGUID(g)
	assert.Equal(t, g, DecodeGUID(enc))
}

func TestNullMask(t *testing.T) {
	m := NewNullMask(10)
	m.SetNull(3, true)
	assert.True(t, m.IsNull(3))
	assert.False(t, m.IsNull(4))
	m.SetNull(3, false)
	assert.False(t, m.IsNull(3))
}

func TestAutoNumberAdvance(t *testing.T) {
	a := NewAutoNumber(5)
	assert.Equal(t, int64(6), a.Next())
	assert.Equal(t, int64(7), a.Next())
	assert.Equal(t, int64(7), a.Current())
	a.Advance(100)
	assert.Equal(t, int64(101), a.Next())
}

func TestSupported(t *testing.T) {
	assert.False(t, Supported(Complex, false))
	assert.True(t, Supported(Complex, true))
	assert.True(t, Supported(Int32, false))
}

func TestLongValueRefRoundTrip(t *testing.T) {
	ref := LongValueRef{Length: 4096, Kind: LongValueChained, Page: 77}
	enc := EncodeLongValueRef(ref)
	out, err := DecodeLongValueRef(enc)
	require.NoError(t, err)
	assert.Equal(t, ref, out)
}
