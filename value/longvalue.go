package value

import "fmt"

// LongValueKind tags the three forms a long-value (OLE/MEMO) descriptor
// can take, per spec.md §4.4.
type LongValueKind byte

const (
	// LongValueInline means the payload follows the 12-byte descriptor
	// in-row.
	LongValueInline LongValueKind = 0x80
	// LongValueSinglePage means the payload lives entirely on one
	// dedicated long-value page.
	LongValueSinglePage LongValueKind = 0x81
	// LongValueChained means the payload is chained across multiple
	// long-value pages via a next-page pointer.
	LongValueChained LongValueKind = 0x82
)

// LongValueRef is the 12-byte in-row descriptor:
// {length:u32, type:u8, page:u24, row:u8, reserved:u32}.
type LongValueRef struct {
	Length uint32
	Kind   LongValueKind
	Page   uint32 // 24 bits significant
	Row    uint8
}

// EncodeLongValueRef writes the 12-byte descriptor.
func EncodeLongValueRef(r LongValueRef) []byte {
	buf := make([]byte, 12)
	copy(buf[0:4], EncodeInt32(int32(r.Length)))
	buf[4] = byte(r.Kind)
	buf[5] = byte(r.Page)
	buf[6] = byte(r.Page >> 8)
	buf[7] = byte(r.Page >> 16)
	buf[8] = r.Row
	// bytes 9-11 reserved, left zero
	return buf
}

// DecodeLongValueRef reads the 12-byte descriptor.
func DecodeLongValueRef(b []byte) (LongValueRef, error) {
	if len(b) < 12 {
		return LongValueRef{}, fmt.Errorf("value: long-value descriptor shorter than 12 bytes")
	}
	return LongValueRef{
		Length: uint32(DecodeInt32(b[0:4])),
		Kind:   LongValueKind(b[4]),
		Page:   uint32(b[5]) | uint32(b[6])<<8 | uint32(b[7])<<16,
		Row:    b[8],
	}, nil
}
