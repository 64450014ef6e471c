package value

// NullMask is the row's null bitmap, one bit per column in column-index
// order, stored at the end of the row. Bit = 1 means non-null — the
// inverse of the textbook convention, per spec.md §4.4.
type NullMask []byte

// NewNullMask allocates a mask for numCols columns, with every bit set
// to non-null (callers clear bits for the columns that are actually
// null).
func NewNullMask(numCols int) NullMask {
	m := make(NullMask, (numCols+7)/8)
	for i := range m {
		m[i] = 0xFF
	}
	return m
}

// IsNull reports whether column col is null.
func (m NullMask) IsNull(col int) bool {
	byteIdx, bitIdx := col/8, uint(col%8)
	if byteIdx >= len(m) {
		return true
	}
	return m[byteIdx]&(1<<bitIdx) == 0
}

// SetNull marks column col null (clears its bit) or non-null (sets it).
func (m NullMask) SetNull(col int, isNull bool) {
	byteIdx, bitIdx := col/8, uint(col%8)
	if byteIdx >= len(m) {
		return
	}
	if isNull {
		m[byteIdx] &^= 1 << bitIdx
	} else {
		m[byteIdx] |= 1 << bitIdx
	}
}
