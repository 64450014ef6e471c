package usagemap

import "github.com/zhukovaskychina/jetdb/page"

// inlineState is the "[row_type=0x00][start_page:i32][bits]" layout of
// spec.md §4.3: a bit-vector with a base offset, embedded directly in
// the owning table-def row rather than on a dedicated page.
type inlineState struct {
	startPage page.Number
	bits      []byte
	maxBits   int
}

func (s *inlineState) endPage() uint32 {
	return uint32(s.startPage) + uint32(s.maxBits)
}

func (s *inlineState) fits(pn page.Number) bool {
	return uint32(pn) >= uint32(s.startPage) && uint32(pn) < s.endPage()
}

func (s *inlineState) bitIndex(pn page.Number) int {
	return int(uint32(pn) - uint32(s.startPage))
}

func (s *inlineState) contains(pn page.Number, assumeOutOfRangeOn bool) bool {
	if !s.fits(pn) {
		return assumeOutOfRangeOn
	}
	return s.testBit(s.bitIndex(pn))
}

func (s *inlineState) testBit(i int) bool {
	byteIdx, bitIdx := i/8, uint(i%8)
	if byteIdx < 0 || byteIdx >= len(s.bits) {
		return false
	}
	return s.bits[byteIdx]&(1<<bitIdx) != 0
}

func (s *inlineState) setBit(i int, v bool) {
	byteIdx, bitIdx := i/8, uint(i%8)
	if byteIdx < 0 || byteIdx >= len(s.bits) {
		return
	}
	if v {
		s.bits[byteIdx] |= 1 << bitIdx
	} else {
		s.bits[byteIdx] &^= 1 << bitIdx
	}
}

func (s *inlineState) set(pn page.Number)   { s.setBit(s.bitIndex(pn), true) }
func (s *inlineState) clear(pn page.Number) { s.setBit(s.bitIndex(pn), false) }

// setPages returns every page number currently set, ascending.
func (s *inlineState) setPages() []page.Number {
	var out []page.Number
	for i := 0; i < s.maxBits; i++ {
		if s.testBit(i) {
			out = append(out, page.Number(uint32(s.startPage)+uint32(i)))
		}
	}
	return out
}

// lastSet returns the highest page number currently set, or startPage-1
// (as uint32, saturating at 0) if the map is empty.
func (s *inlineState) lastSet() uint32 {
	for i := s.maxBits - 1; i >= 0; i-- {
		if s.testBit(i) {
			return uint32(s.startPage) + uint32(i)
		}
	}
	if s.startPage == 0 {
		return 0
	}
	return uint32(s.startPage) - 1
}

// canShiftToFit reports whether shifting the window's start so that pn
// becomes the new high end still keeps every currently-set bit inside
// maxBits worth of capacity.
func (s *inlineState) canShiftToFit(pn page.Number) bool {
	if uint32(pn) < uint32(s.startPage) {
		// shifting left: need span from pn to current high end.
		span := int(s.lastHigh()) - int(uint32(pn)) + 1
		return span <= s.maxBits
	}
	// shifting right: need span from current low end (first set bit, or
	// startPage if empty) to pn.
	low := s.firstSet()
	span := int(uint32(pn)) - int(low) + 1
	return span <= s.maxBits
}

func (s *inlineState) firstSet() uint32 {
	for i := 0; i < s.maxBits; i++ {
		if s.testBit(i) {
			return uint32(s.startPage) + uint32(i)
		}
	}
	return uint32(s.startPage)
}

func (s *inlineState) lastHigh() uint32 {
	last := s.lastSet()
	if last < uint32(s.startPage) {
		return uint32(s.startPage)
	}
	return last
}

// shiftToFit slides the window so pn is representable, preserving every
// set bit (spec.md §4.3.1 add: "shift start_page (preserving set bits)
// and set").
func (s *inlineState) shiftToFit(pn page.Number) {
	set := s.setPages()
	var newStart uint32
	if uint32(pn) < uint32(s.startPage) {
		newStart = uint32(pn)
	} else {
		low := s.firstSet()
		if uint32(pn)-low+1 > uint32(s.maxBits) {
			newStart = uint32(pn) - uint32(s.maxBits) + 1
		} else {
			newStart = low
		}
	}
	for i := range s.bits {
		s.bits[i] = 0
	}
	s.startPage = page.Number(newStart)
	for _, p := range set {
		s.setBit(s.bitIndex(p), true)
	}
}

// shiftForwardFilling slides the window so pn is the new high end,
// marking every page between the old high end and the new one as
// present, per the assume-out-of-range Remove contract.
func (s *inlineState) shiftForwardFilling(pn page.Number) {
	oldHigh := s.lastHigh()
	set := s.setPages()
	newStart := uint32(pn) - uint32(s.maxBits) + 1
	for i := range s.bits {
		s.bits[i] = 0
	}
	s.startPage = page.Number(newStart)
	for _, p := range set {
		if s.fits(p) {
			s.setBit(s.bitIndex(p), true)
		}
	}
	for p := oldHigh + 1; p < uint32(pn); p++ {
		if s.fits(page.Number(p)) {
			s.setBit(s.bitIndex(page.Number(p)), true)
		}
	}
}
