package value

import (
	"encoding/binary"
	"math"
)

// EncodeBool writes a single byte, 0x00 or 0x01.
func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBool reads a single byte as a boolean (non-zero is true).
func DecodeBool(b []byte) bool { return len(b) > 0 && b[0] != 0 }

// EncodeByte writes an unsigned 8-bit value.
func EncodeByte(v uint8) []byte { return []byte{v} }

// DecodeByte reads an unsigned 8-bit value.
func DecodeByte(b []byte) uint8 { return b[0] }

// EncodeInt16 writes a little-endian signed 16-bit value.
func EncodeInt16(v int16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(v))
	return buf
}

// DecodeInt16 reads a little-endian signed 16-bit value.
func DecodeInt16(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }

// EncodeInt32 writes a little-endian signed 32-bit value.
func EncodeInt32(v int32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// DecodeInt32 reads a little-endian signed 32-bit value.
func DecodeInt32(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }

// EncodeInt64 writes a little-endian signed 64-bit value.
func EncodeInt64(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

// DecodeInt64 reads a little-endian signed 64-bit value.
func DecodeInt64(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }

// EncodeFloat32 writes a little-endian IEEE 754 single.
func EncodeFloat32(v float32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}

// DecodeFloat32 reads a little-endian IEEE 754 single.
func DecodeFloat32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }

// EncodeFloat64 writes a little-endian IEEE 754 double.
func EncodeFloat64(v float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return buf
}

// DecodeFloat64 reads a little-endian IEEE 754 double.
func DecodeFloat64(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }
