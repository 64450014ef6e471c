package rowstore

import (
	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/value"
)

// Long-value pages are type=DATA with a one-byte subtag at offset 1
// distinguishing them from ordinary row-storage data pages, per spec.md
// §4.5.3.
const (
	lvalSubtagOffset = 1
	lvalSubtagSingle = 1
	lvalSubtagChain  = 2

	// lvalSingleHeader is {subtag:u8 already counted, length:u32}.
	lvalSingleHeaderLen = 4
	// lvalChainHeader is {length:u32, next_page:u32}.
	lvalChainHeaderLen = 8
)

// WriteLongValue persists payload to one or more long-value pages,
// allocated from ch, and returns the 12-byte descriptor referencing it.
// Form (a) — a single page — is used whenever payload fits; form (b) —
// chained via a next_page pointer — otherwise, per spec.md §4.5.3.
func WriteLongValue(ch *page.Channel, payload []byte) (value.LongValueRef, error) {
	pageSize := ch.Format().PageSize
	singleCap := pageSize - 2 - lvalSingleHeaderLen // 2 for the page-type+subtag bytes already in offset 0/1... subtag is offset1, type offset0, so body starts at offset2
	if len(payload) <= singleCap {
		buf, err := ch.AllocatePage(byte(format.PageTypeData))
		if err != nil {
			return value.LongValueRef{}, err
		}
		buf.Data[lvalSubtagOffset] = lvalSubtagSingle
		writeUint32(buf.Data[2:], uint32(len(payload)))
		copy(buf.Data[2+lvalSingleHeaderLen:], payload)
		if err := ch.WritePage(buf); err != nil {
			return value.LongValueRef{}, err
		}
		return value.LongValueRef{Length: uint32(len(payload)), Kind: value.LongValueSinglePage, Page: uint32(buf.PageNumber)}, nil
	}

	chainCap := pageSize - 2 - lvalChainHeaderLen
	var pages []*page.Buffer
	remaining := payload
	for len(remaining) > 0 {
		buf, err := ch.AllocatePage(byte(format.PageTypeData))
		if err != nil {
			return value.LongValueRef{}, err
		}
		n := chainCap
		if n > len(remaining) {
			n = len(remaining)
		}
		buf.Data[lvalSubtagOffset] = lvalSubtagChain
		writeUint32(buf.Data[2:], uint32(n))
		copy(buf.Data[2+lvalChainHeaderLen:], remaining[:n])
		pages = append(pages, buf)
		remaining = remaining[n:]
	}
	for i := len(pages) - 1; i >= 0; i-- {
		next := uint32(0xFFFFFFFF)
		if i+1 < len(pages) {
			next = uint32(pages[i+1].PageNumber)
		}
		writeUint32(pages[i].Data[6:], next)
		if err := ch.WritePage(pages[i]); err != nil {
			return value.LongValueRef{}, err
		}
	}
	return value.LongValueRef{Length: uint32(len(payload)), Kind: value.LongValueChained, Page: uint32(pages[0].PageNumber)}, nil
}

// ReadLongValue reassembles the payload ref describes.
func ReadLongValue(ch *page.Channel, ref value.LongValueRef) ([]byte, error) {
	switch ref.Kind {
	case value.LongValueSinglePage:
		buf, err := ch.ReadPage(page.Number(ref.Page))
		if err != nil {
			return nil, err
		}
		defer buf.Release()
		n := readUint32(buf.Data[2:])
		out := make([]byte, n)
		copy(out, buf.Data[2+lvalSingleHeaderLen:2+lvalSingleHeaderLen+int(n)])
		return out, nil
	case value.LongValueChained:
		out := make([]byte, 0, ref.Length)
		pn := page.Number(ref.Page)
		for pn != page.Number(0xFFFFFFFF) {
			buf, err := ch.ReadPage(pn)
			if err != nil {
				return nil, err
			}
			n := readUint32(buf.Data[2:])
			next := readUint32(buf.Data[6:])
			out = append(out, buf.Data[2+lvalChainHeaderLen:2+lvalChainHeaderLen+int(n)]...)
			buf.Release()
			pn = page.Number(next)
		}
		return out, nil
	default:
		return nil, nil
	}
}

// FreeLongValue releases every page in ref's chain back to the channel's
// free map, used when the owning row is deleted and no longer
// references this long value (spec.md §4.5.2 delete).
func FreeLongValue(ch *page.Channel, ref value.LongValueRef) error {
	switch ref.Kind {
	case value.LongValueSinglePage:
		return ch.FreePage(page.Number(ref.Page))
	case value.LongValueChained:
		pn := page.Number(ref.Page)
		for pn != page.Number(0xFFFFFFFF) {
			buf, err := ch.ReadPage(pn)
			if err != nil {
				return err
			}
			next := readUint32(buf.Data[6:])
			buf.Release()
			if err := ch.FreePage(pn); err != nil {
				return err
			}
			pn = page.Number(next)
		}
		return nil
	default:
		return nil
	}
}

func writeUint32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func readUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
