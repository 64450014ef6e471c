package rowstore

import (
	"fmt"

	"github.com/zhukovaskychina/jetdb/value"
)

// Long-value columns (MEMO, OLE, and any BINARY/TEXT column a catalog
// marks as such) are carried through EncodeRow/DecodeRow as a plain
// BINARY slot holding a one-byte form tag followed by either the raw
// payload (inline form) or a 12-byte LongValueRef (overflow form),
// picked by comparing the raw payload against the table's inline
// threshold, per spec.md §4.5.3.
const (
	lvalFormInline   = 0x00
	lvalFormOverflow = 0x01
)

func rawPayloadFor(col value.Column, v interface{}) ([]byte, error) {
	switch col.Type {
	case value.Memo, value.Text:
		return value.EncodeText(v.(string), col.CompressedUnicode), nil
	case value.Binary, value.OLE:
		return v.([]byte), nil
	default:
		return nil, fmt.Errorf("rowstore: column type %s cannot be stored as a long value", col.Type)
	}
}

func payloadToValue(col value.Column, raw []byte) interface{} {
	switch col.Type {
	case value.Memo, value.Text:
		return value.DecodeText(raw)
	default:
		out := make([]byte, len(raw))
		copy(out, raw)
		return out
	}
}

// encodeForStorage builds the on-page row payload for values, routing
// any long-value-capable column through a long-value page when its raw
// payload exceeds the inline threshold.
func (t *Table) encodeForStorage(values []interface{}) ([]byte, error) {
	layouts := make([]ColumnLayout, len(t.layouts))
	copy(layouts, t.layouts)
	vals := make([]interface{}, len(values))
	copy(vals, values)

	for i, l := range t.layouts {
		if !t.longValueCols[l.Index] || values[l.Index] == nil {
			continue
		}
		raw, err := rawPayloadFor(l.Column, values[l.Index])
		if err != nil {
			return nil, err
		}
		var encoded []byte
		if len(raw) <= t.longValueInlineThreshold() {
			encoded = append([]byte{lvalFormInline}, raw...)
		} else {
			ref, err := WriteLongValue(t.ch, raw)
			if err != nil {
				return nil, err
			}
			encoded = append([]byte{lvalFormOverflow}, value.EncodeLongValueRef(ref)...)
		}
		layouts[i].Column.Type = value.Binary
		vals[l.Index] = encoded
	}
	return EncodeRow(layouts, vals)
}

// decodeFromStorage reverses encodeForStorage, dereferencing any
// overflowed long value back into its logical form.
func (t *Table) decodeFromStorage(raw []byte) ([]interface{}, error) {
	layouts := make([]ColumnLayout, len(t.layouts))
	copy(layouts, t.layouts)
	for i, l := range t.layouts {
		if t.longValueCols[l.Index] {
			layouts[i].Column.Type = value.Binary
		}
	}
	vals, err := DecodeRow(layouts, raw)
	if err != nil {
		return nil, err
	}
	for _, l := range t.layouts {
		if !t.longValueCols[l.Index] || vals[l.Index] == nil {
			continue
		}
		enc := vals[l.Index].([]byte)
		if len(enc) == 0 {
			continue
		}
		body := enc[1:]
		if enc[0] == lvalFormOverflow {
			ref, err := value.DecodeLongValueRef(body)
			if err != nil {
				return nil, err
			}
			body, err = ReadLongValue(t.ch, ref)
			if err != nil {
				return nil, err
			}
		}
		vals[l.Index] = payloadToValue(l.Column, body)
	}
	return vals, nil
}

// extractLongValueRefs decodes raw only far enough to recover the
// LongValueRef of each overflowed long-value column, without chasing the
// refs into their pages. Used to release a row's overflow pages on
// update or delete, where what's needed is the ref itself, not the
// payload it points to.
func (t *Table) extractLongValueRefs(raw []byte) map[int]value.LongValueRef {
	layouts := make([]ColumnLayout, len(t.layouts))
	copy(layouts, t.layouts)
	for i, l := range t.layouts {
		if t.longValueCols[l.Index] {
			layouts[i].Column.Type = value.Binary
		}
	}
	vals, err := DecodeRow(layouts, raw)
	if err != nil {
		return nil
	}
	refs := map[int]value.LongValueRef{}
	for _, l := range t.layouts {
		if !t.longValueCols[l.Index] {
			continue
		}
		enc, ok := vals[l.Index].([]byte)
		if !ok || len(enc) == 0 || enc[0] != lvalFormOverflow {
			continue
		}
		ref, err := value.DecodeLongValueRef(enc[1:])
		if err != nil {
			continue
		}
		refs[l.Index] = ref
	}
	return refs
}

// releaseLongValues frees every overflowed long-value page raw
// references. Rewriting a row's long-value columns always supersedes
// their old pages, so both update and delete call this unconditionally
// on the row's previous on-disk bytes before replacing them.
func (t *Table) releaseLongValues(raw []byte) error {
	for _, ref := range t.extractLongValueRefs(raw) {
		if err := FreeLongValue(t.ch, ref); err != nil {
			return err
		}
	}
	return nil
}

// fillAutoNumbers assigns the next counter value to every registered
// autonumber column whose slot in values is nil.
func (t *Table) fillAutoNumbers(values []interface{}) error {
	for idx, counter := range t.autoNumber {
		if idx >= len(values) {
			continue
		}
		if values[idx] == nil {
			values[idx] = int32(counter.Next())
		}
	}
	return nil
}

// RegisterAutoNumber installs the counter backing the autonumber column
// at columnIndex, seeded from the table's current on-disk high-water
// mark (spec.md §4.4.1).
func (t *Table) RegisterAutoNumber(columnIndex int, last int64) {
	t.autoNumber[columnIndex] = value.NewAutoNumber(last)
}
