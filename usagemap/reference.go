package usagemap

import "github.com/zhukovaskychina/jetdb/page"

// referenceUsageMapHeaderBytes is the 4-byte header on every USAGE_MAP
// sub-page (type tag + 3 reserved bytes) that precedes its bitmap body,
// per spec.md §4.3.
const referenceUsageMapHeaderBytes = 4

// referenceState is the "[row_type=0x01][pad][page_ptrs: i32[n]]"
// layout of spec.md §4.3: each pointer, if non-zero, names a USAGE_MAP
// page whose body covers pagesPerSub consecutive page numbers starting
// at index*pagesPerSub.
type referenceState struct {
	pagesPerSub int
	pointers    []page.Number
	subPages    map[int]*page.Buffer // index -> loaded sub-page, cached
}

func newReferenceState(pagesPerSub int) *referenceState {
	return &referenceState{
		pagesPerSub: pagesPerSub,
		subPages:    make(map[int]*page.Buffer),
	}
}

func (r *referenceState) indexOf(pn page.Number) int {
	return int(uint32(pn)) / r.pagesPerSub
}

func (r *referenceState) bitOf(pn page.Number) int {
	return int(uint32(pn)) % r.pagesPerSub
}

func (r *referenceState) contains(pn page.Number) bool {
	idx := r.indexOf(pn)
	if idx < 0 || idx >= len(r.pointers) || r.pointers[idx] == page.Invalid || r.pointers[idx] == 0 {
		return false
	}
	buf, ok := r.subPages[idx]
	if !ok {
		return false // not loaded: treat as unknown/absent rather than faulting a read here
	}
	return testBit(buf.Data[referenceUsageMapHeaderBytes:], r.bitOf(pn))
}

// load fetches (and caches) the sub-page for idx, allocating a fresh
// USAGE_MAP page via accessor if the pointer slot is still zero.
func (r *referenceState) load(accessor PageAccessor, idx int) (*page.Buffer, error) {
	if buf, ok := r.subPages[idx]; ok {
		return buf, nil
	}
	for len(r.pointers) <= idx {
		r.pointers = append(r.pointers, page.Invalid)
	}
	if r.pointers[idx] == page.Invalid || r.pointers[idx] == 0 {
		buf, err := accessor.AllocatePage(0x05) // PageTypeUsageMap
		if err != nil {
			return nil, err
		}
		r.pointers[idx] = buf.PageNumber
		r.subPages[idx] = buf
		return buf, nil
	}
	buf, err := accessor.ReadPage(r.pointers[idx])
	if err != nil {
		return nil, err
	}
	r.subPages[idx] = buf
	return buf, nil
}

func (r *referenceState) set(accessor PageAccessor, pn page.Number) error {
	idx := r.indexOf(pn)
	buf, err := r.load(accessor, idx)
	if err != nil {
		return err
	}
	setBit(buf.Data[referenceUsageMapHeaderBytes:], r.bitOf(pn), true)
	return accessor.WritePage(buf)
}

func (r *referenceState) clear(accessor PageAccessor, pn page.Number) error {
	idx := r.indexOf(pn)
	if idx >= len(r.pointers) || r.pointers[idx] == page.Invalid || r.pointers[idx] == 0 {
		return nil
	}
	buf, err := r.load(accessor, idx)
	if err != nil {
		return err
	}
	setBit(buf.Data[referenceUsageMapHeaderBytes:], r.bitOf(pn), false)
	return accessor.WritePage(buf)
}

func testBit(b []byte, i int) bool {
	byteIdx, bitIdx := i/8, uint(i%8)
	if byteIdx < 0 || byteIdx >= len(b) {
		return false
	}
	return b[byteIdx]&(1<<bitIdx) != 0
}

func setBit(b []byte, i int, v bool) {
	byteIdx, bitIdx := i/8, uint(i%8)
	if byteIdx < 0 || byteIdx >= len(b) {
		return
	}
	if v {
		b[byteIdx] |= 1 << bitIdx
	} else {
		b[byteIdx] &^= 1 << bitIdx
	}
}
