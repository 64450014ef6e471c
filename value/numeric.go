package value

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// EncodeMoney writes a MONEY value: a signed 64-bit integer scaled by
// 10^4 (spec.md §4.4). d's exactness is preserved because
// shopspring/decimal carries an arbitrary-precision coefficient rather
// than a float, so the scale-by-4 multiply never rounds.
func EncodeMoney(d decimal.Decimal) []byte {
	scaled := d.Shift(4).Round(0)
	return EncodeInt64(scaled.BigInt().Int64())
}

// DecodeMoney reconstructs the MONEY decimal from its 8-byte scaled
// integer encoding.
func DecodeMoney(b []byte) decimal.Decimal {
	return decimal.New(DecodeInt64(b), -4)
}

// EncodeNumeric writes the 17-byte NUMERIC field: 1 sign byte, 4
// reserved bytes, then a 12-byte little-endian magnitude (spec.md §4.4).
// scale is recorded separately in column metadata, not in the encoded
// bytes.
func EncodeNumeric(d decimal.Decimal, scale int) []byte {
	buf := make([]byte, 17)
	scaled := d.Shift(int32(scale)).Round(0)
	mag := new(big.Int).Abs(scaled.BigInt())
	if scaled.Sign() < 0 {
		buf[0] = 1
	}
	magBytes := mag.Bytes() // big-endian
	// write little-endian into the 12-byte magnitude field
	for i, n := 0, len(magBytes); i < n && i < 12; i++ {
		buf[5+i] = magBytes[n-1-i]
	}
	return buf
}

// DecodeNumeric reconstructs a NUMERIC value from its 17-byte encoding,
// given the column's declared scale.
func DecodeNumeric(b []byte, scale int) decimal.Decimal {
	negative := b[0] != 0
	magLE := b[5:17]
	magBE := make([]byte, 12)
	for i := 0; i < 12; i++ {
		magBE[i] = magLE[11-i]
	}
	mag := new(big.Int).SetBytes(magBE)
	if negative {
		mag.Neg(mag)
	}
	return decimal.NewFromBigInt(mag, -int32(scale))
}
