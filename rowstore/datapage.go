package rowstore

import (
	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
)

// slot bit layout, per spec.md §4.5:
//   bit 15 = deleted (tombstoned)
//   bit 14 = overflow (row body is a forwarding pointer)
//   low 14 bits = offset of the row start within the page
const (
	slotDeletedBit  = uint16(1 << 15)
	slotOverflowBit = uint16(1 << 14)
	slotOffsetMask  = uint16(0x3FFF)
)

// DataPage is a thin view over a page.Buffer holding the DATA layout:
//
//	[u8 type][u8 reserved][u16 free_space][u32 owner_table_page]
//	[u16 row_count]
//	repeat row_count: [u16 slot]
//	... free space ...
//	... rows growing downward from page end ...
type DataPage struct {
	buf *page.Buffer
	off format.DataPageOffsets
}

// Wrap adapts an already-read page buffer of type DATA as a DataPage.
func Wrap(buf *page.Buffer, off format.DataPageOffsets) *DataPage {
	return &DataPage{buf: buf, off: off}
}

// Init formats a freshly allocated page as an empty DATA page owned by
// ownerTablePage.
func Init(buf *page.Buffer, off format.DataPageOffsets, ownerTablePage uint32) *DataPage {
	dp := &DataPage{buf: buf, off: off}
	dp.setFreeSpace(uint16(len(buf.Data) - off.RowStart))
	dp.setOwnerTable(ownerTablePage)
	dp.SetNextPage(page.Invalid)
	dp.setRowCount(0)
	return dp
}

// NextPage returns the next data page in this table's chain, or
// page.Invalid at the tail.
func (d *DataPage) NextPage() page.Number {
	b := d.buf.Data[d.off.NextPage:]
	return page.Number(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

// SetNextPage rewrites the chain's forward link.
func (d *DataPage) SetNextPage(pn page.Number) {
	b := d.buf.Data[d.off.NextPage:]
	v := uint32(pn)
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func (d *DataPage) Buffer() *page.Buffer { return d.buf }

func (d *DataPage) FreeSpace() uint16 {
	return uint16(d.buf.Data[d.off.FreeSpace]) | uint16(d.buf.Data[d.off.FreeSpace+1])<<8
}

func (d *DataPage) setFreeSpace(v uint16) {
	d.buf.Data[d.off.FreeSpace] = byte(v)
	d.buf.Data[d.off.FreeSpace+1] = byte(v >> 8)
}

func (d *DataPage) OwnerTablePage() uint32 {
	b := d.buf.Data[d.off.OwnerTable:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (d *DataPage) setOwnerTable(v uint32) {
	b := d.buf.Data[d.off.OwnerTable:]
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}

func (d *DataPage) RowCount() int {
	b := d.buf.Data[d.off.RowCount:]
	return int(uint16(b[0]) | uint16(b[1])<<8)
}

func (d *DataPage) setRowCount(n int) {
	b := d.buf.Data[d.off.RowCount:]
	b[0], b[1] = byte(n), byte(n>>8)
}

func (d *DataPage) slotTableOffset(i int) int {
	return d.off.RowStart + i*2
}

func (d *DataPage) slot(i int) uint16 {
	o := d.slotTableOffset(i)
	return uint16(d.buf.Data[o]) | uint16(d.buf.Data[o+1])<<8
}

func (d *DataPage) setSlot(i int, v uint16) {
	o := d.slotTableOffset(i)
	d.buf.Data[o], d.buf.Data[o+1] = byte(v), byte(v>>8)
}

// IsDeleted reports whether slot i is tombstoned.
func (d *DataPage) IsDeleted(i int) bool { return d.slot(i)&slotDeletedBit != 0 }

// IsOverflow reports whether slot i holds a forwarding pointer rather
// than row data.
func (d *DataPage) IsOverflow(i int) bool { return d.slot(i)&slotOverflowBit != 0 }

// SlotRowOffset returns the byte offset of slot i's row data within the
// page.
func (d *DataPage) SlotRowOffset(i int) int { return int(d.slot(i) & slotOffsetMask) }

// RowBytes returns the raw row bytes for slot i, excluding its 2-byte
// length/flags header. Tombstoned slots return nil.
func (d *DataPage) RowBytes(i int) []byte {
	if i < 0 || i >= d.RowCount() || d.IsDeleted(i) {
		return nil
	}
	start := d.SlotRowOffset(i)
	length := int(uint16(d.buf.Data[start]) | uint16(d.buf.Data[start+1])<<8)
	length &= 0x3FFF
	return d.buf.Data[start+2 : start+2+length]
}

// ForwardingPointer decodes the 5-byte {page:u24, row:u8, flag:u8}
// forwarding record stored at an overflow slot's row data, per spec.md
// §4.5.2.
func (d *DataPage) ForwardingPointer(i int) (page.Number, uint8) {
	start := d.SlotRowOffset(i) + 2 // skip the row's 2-byte length/flags header
	b := d.buf.Data[start : start+5]
	pn := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	return page.Number(pn), b[3]
}

// Tombstone marks slot i deleted in place. The slot entry is never
// removed from the table so existing RowIds referencing higher slots
// stay valid (spec.md §4.5 "tombstoned in place").
func (d *DataPage) Tombstone(i int) {
	d.setSlot(i, d.slot(i)|slotDeletedBit)
}

// allocSlot grows the slot table by one entry (or reuses a freed one the
// caller has located) and returns its index. Growing the slot table
// itself consumes 2 bytes of free space, which the caller must already
// have reserved.
func (d *DataPage) allocSlot() int {
	i := d.RowCount()
	d.setRowCount(i + 1)
	return i
}

// writeRow writes data (the full row payload including its 2-byte
// length/flags header) to the tail of the free region, updates the slot
// table, and adjusts free space. The caller must have verified
// len(data)+2 (new slot entry) fits in FreeSpace().
func (d *DataPage) writeRow(data []byte, overflow bool) int {
	rowStart := d.off.RowStart + d.RowCount()*2 + int(d.FreeSpace()) - len(data)
	copy(d.buf.Data[rowStart:], data)
	i := d.allocSlot()
	flags := uint16(rowStart) & slotOffsetMask
	if overflow {
		flags |= slotOverflowBit
	}
	d.setSlot(i, flags)
	d.setFreeSpace(d.FreeSpace() - uint16(len(data)) - 2)
	return i
}

// overwriteRow replaces the payload at slot i in place; the caller has
// verified the new payload's length does not exceed the old slot's
// reserved span.
func (d *DataPage) overwriteRow(i int, data []byte) {
	start := d.SlotRowOffset(i)
	copy(d.buf.Data[start:start+len(data)], data)
}
