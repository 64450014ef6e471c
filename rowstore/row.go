package rowstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/jetdb/value"
)

// ColumnLayout is the subset of catalog.Column the row codec needs: its
// storage position and type parameters. catalog builds these once per
// table and passes them in, keeping this package free of a dependency on
// catalog (spec.md §9 cycle-breaking note).
type ColumnLayout struct {
	Index  int // column_index: null-bitmap and encode/decode order
	Column value.Column
}

// EncodeRow lays out values (indexed the same as layouts) into a row
// payload: fixed region (storage order), variable region + its offset
// table, then the null bitmap — per spec.md §4.5.1 step 2. A nil entry
// in values marks that column null.
func EncodeRow(layouts []ColumnLayout, values []interface{}) ([]byte, error) {
	if len(values) != len(layouts) {
		return nil, fmt.Errorf("rowstore: %d values for %d columns", len(values), len(layouts))
	}
	mask := value.NewNullMask(len(layouts))

	var fixed []byte
	var varData []byte
	var varOffsets []uint16

	for _, l := range layouts {
		v := values[l.Index]
		if v == nil {
			mask.SetNull(l.Index, true)
			if l.Column.Type.IsFixedWidth() {
				fixed = append(fixed, make([]byte, l.Column.Type.FixedSize())...)
			}
			continue
		}
		enc, err := encodeValue(l.Column, v)
		if err != nil {
			return nil, err
		}
		if l.Column.Type.IsFixedWidth() {
			if len(enc) != l.Column.Type.FixedSize() {
				return nil, fmt.Errorf("rowstore: column %d encoded to %d bytes, want %d", l.Index, len(enc), l.Column.Type.FixedSize())
			}
			fixed = append(fixed, enc...)
		} else {
			varData = append(varData, enc...)
			varOffsets = append(varOffsets, uint16(len(varData)))
		}
	}

	out := make([]byte, 0, len(fixed)+len(varData)+len(varOffsets)*2+len(mask))
	out = append(out, fixed...)
	out = append(out, varData...)
	for _, o := range varOffsets {
		out = append(out, byte(o), byte(o>>8))
	}
	out = append(out, mask...)
	return out, nil
}

// DecodeRow reverses EncodeRow, given the same layouts used to encode.
func DecodeRow(layouts []ColumnLayout, raw []byte) ([]interface{}, error) {
	maskLen := (len(layouts) + 7) / 8
	if len(raw) < maskLen {
		return nil, fmt.Errorf("rowstore: row shorter than its null bitmap")
	}
	mask := value.NullMask(raw[len(raw)-maskLen:])

	var numVar int
	fixedLen := 0
	for _, l := range layouts {
		if l.Column.Type.IsFixedWidth() {
			fixedLen += l.Column.Type.FixedSize()
		} else {
			numVar++
		}
	}
	offsetTableLen := numVar * 2
	body := raw[:len(raw)-maskLen]
	if len(body) < fixedLen+offsetTableLen {
		return nil, fmt.Errorf("rowstore: row too short for its fixed region and variable offset table")
	}
	varDataEnd := len(body) - offsetTableLen
	fixed := body[:fixedLen]
	varData := body[fixedLen:varDataEnd]
	offsetTable := body[varDataEnd:]

	offsets := make([]uint16, numVar)
	for i := 0; i < numVar; i++ {
		offsets[i] = uint16(offsetTable[2*i]) | uint16(offsetTable[2*i+1])<<8
	}

	out := make([]interface{}, len(layouts))
	fixedPos := 0
	varIdx := 0
	prevVarOffset := uint16(0)
	for _, l := range layouts {
		if mask.IsNull(l.Index) {
			if !l.Column.Type.IsFixedWidth() {
				varIdx++
				prevVarOffset = offsets[varIdx-1]
			} else {
				fixedPos += l.Column.Type.FixedSize()
			}
			out[l.Index] = nil
			continue
		}
		if l.Column.Type.IsFixedWidth() {
			size := l.Column.Type.FixedSize()
			v, err := decodeValue(l.Column, fixed[fixedPos:fixedPos+size])
			if err != nil {
				return nil, err
			}
			out[l.Index] = v
			fixedPos += size
		} else {
			end := offsets[varIdx]
			v, err := decodeValue(l.Column, varData[prevVarOffset:end])
			if err != nil {
				return nil, err
			}
			out[l.Index] = v
			prevVarOffset = end
			varIdx++
		}
	}
	return out, nil
}

func encodeValue(col value.Column, v interface{}) ([]byte, error) {
	switch col.Type {
	case value.Bool:
		return value.EncodeBool(v.(bool)), nil
	case value.Byte:
		return value.EncodeByte(v.(uint8)), nil
	case value.Int16:
		return value.EncodeInt16(v.(int16)), nil
	case value.Int32, value.Complex:
		return value.EncodeInt32(v.(int32)), nil
	case value.Int64:
		return value.EncodeInt64(v.(int64)), nil
	case value.Float32:
		return value.EncodeFloat32(v.(float32)), nil
	case value.Float64:
		return value.EncodeFloat64(v.(float64)), nil
	case value.Money:
		return value.EncodeMoney(v.(decimal.Decimal)), nil
	case value.Numeric:
		return value.EncodeNumeric(v.(decimal.Decimal), col.Scale), nil
	case value.DateTime:
		return value.EncodeDateTime(v.(time.Time)), nil
	case value.ExtDateTime:
		edt := v.(value.ExtDateTime)
		return value.EncodeExtDateTime(edt.Time, edt.TZOffsetMinutes), nil
	case value.GUID:
		return value.EncodeGUID(v.(value.GUID)), nil
	case value.Text:
		return value.EncodeText(v.(string), col.CompressedUnicode), nil
	case value.Binary:
		return v.([]byte), nil
	default:
		return nil, fmt.Errorf("rowstore: column type %s is not encoded inline (long value)", col.Type)
	}
}

func decodeValue(col value.Column, b []byte) (interface{}, error) {
	switch col.Type {
	case value.Bool:
		return value.DecodeBool(b), nil
	case value.Byte:
		return value.DecodeByte(b), nil
	case value.Int16:
		return value.DecodeInt16(b), nil
	case value.Int32, value.Complex:
		return value.DecodeInt32(b), nil
	case value.Int64:
		return value.DecodeInt64(b), nil
	case value.Float32:
		return value.DecodeFloat32(b), nil
	case value.Float64:
		return value.DecodeFloat64(b), nil
	case value.Money:
		return value.DecodeMoney(b), nil
	case value.Numeric:
		return value.DecodeNumeric(b, col.Scale), nil
	case value.DateTime:
		return value.DecodeDateTime(b), nil
	case value.ExtDateTime:
		t, tz, err := value.DecodeExtDateTime(b)
		if err != nil {
			return nil, err
		}
		return value.ExtDateTime{Time: t, TZOffsetMinutes: tz}, nil
	case value.GUID:
		return value.DecodeGUID(b), nil
	case value.Text:
		return value.DecodeText(b), nil
	case value.Binary:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	default:
		return nil, fmt.Errorf("rowstore: column type %s is not decoded inline (long value)", col.Type)
	}
}
