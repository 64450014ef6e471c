package page_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
)

type memDisk struct {
	buf []byte
	pos int64
}

func (d *memDisk) Read(p []byte) (int, error) {
	if d.pos >= int64(len(d.buf)) {
		return 0, io.EOF
	}
	n := copy(p, d.buf[d.pos:])
	d.pos += int64(n)
	return n, nil
}

func (d *memDisk) Write(p []byte) (int, error) {
	end := d.pos + int64(len(p))
	if end > int64(len(d.buf)) {
		grown := make([]byte, end)
		copy(grown, d.buf)
		d.buf = grown
	}
	n := copy(d.buf[d.pos:end], p)
	d.pos = end
	return n, nil
}

func (d *memDisk) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		d.pos = offset
	case io.SeekCurrent:
		d.pos += offset
	case io.SeekEnd:
		d.pos = int64(len(d.buf)) + offset
	}
	return d.pos, nil
}

func newChannel(t *testing.T) *page.Channel {
	t.Helper()
	f, ok := format.ByVersion(format.VersionJet4)
	require.True(t, ok)
	ch, err := page.NewChannel(&memDisk{}, f, nil, false, nil)
	require.NoError(t, err)
	return ch
}

func TestAllocateReadWriteRoundTrip(t *testing.T) {
	ch := newChannel(t)

	buf, err := ch.AllocatePage(byte(format.PageTypeData))
	require.NoError(t, err)
	pn := buf.PageNumber
	assert.Equal(t, format.PageTypeData, buf.Type)
	buf.Data[10] = 0x42
	require.NoError(t, ch.WritePage(buf))
	buf.Release()

	reread, err := ch.ReadPage(pn)
	require.NoError(t, err)
	assert.Equal(t, format.PageTypeData, reread.Type)
	assert.Equal(t, byte(0x42), reread.Data[10])
	reread.Release()
}

func TestReadPageOutOfRangeFails(t *testing.T) {
	ch := newChannel(t)
	_, err := ch.ReadPage(page.Number(5))
	assert.Error(t, err)
}

func TestReadPageInvalidFails(t *testing.T) {
	ch := newChannel(t)
	_, err := ch.ReadPage(page.Invalid)
	assert.Error(t, err)
}

func TestWritePageFromOnlyTouchesTail(t *testing.T) {
	ch := newChannel(t)
	buf, err := ch.AllocatePage(byte(format.PageTypeTableDef))
	require.NoError(t, err)
	pn := buf.PageNumber
	for i := range buf.Data {
		buf.Data[i] = 0xAA
	}
	require.NoError(t, ch.WritePage(buf))
	buf.Release()

	buf2, err := ch.ReadPage(pn)
	require.NoError(t, err)
	buf2.Data[100] = 0x01
	require.NoError(t, ch.WritePageFrom(buf2, 50))
	buf2.Release()

	final, err := ch.ReadPage(pn)
	require.NoError(t, err)
	// untouched prefix retains its old value
	assert.Equal(t, byte(0xAA), final.Data[10])
	// the written tail carries the new byte
	assert.Equal(t, byte(0x01), final.Data[100])
	final.Release()
}

func TestWrapAsBufferNotYetOnDisk(t *testing.T) {
	ch := newChannel(t)
	buf := ch.WrapAsBuffer(format.PageTypeUsageMap)
	assert.Equal(t, page.Invalid, buf.PageNumber)
	assert.Equal(t, format.PageTypeUsageMap, buf.Type)
	buf.Release()
}

type fakeFreeMap struct {
	pages []page.Number
}

func (m *fakeFreeMap) Contains(pn page.Number) bool { return false }
func (m *fakeFreeMap) Add(pn page.Number, force bool) error {
	m.pages = append(m.pages, pn)
	return nil
}
func (m *fakeFreeMap) PopAny() (page.Number, bool, error) {
	if len(m.pages) == 0 {
		return 0, false, nil
	}
	pn := m.pages[0]
	m.pages = m.pages[1:]
	return pn, true, nil
}

func TestAllocatePagePrefersFreeMapOverExtendingFile(t *testing.T) {
	ch := newChannel(t)

	first, err := ch.AllocatePage(byte(format.PageTypeData))
	require.NoError(t, err)
	firstPN := first.PageNumber
	first.Release()

	fm := &fakeFreeMap{pages: []page.Number{firstPN}}
	ch.SetFreeMap(fm)

	reused, err := ch.AllocatePage(byte(format.PageTypeLeafIndexData))
	require.NoError(t, err)
	assert.Equal(t, firstPN, reused.PageNumber)
	assert.Equal(t, format.PageTypeLeafIndexData, reused.Type)
	reused.Release()
	assert.Empty(t, fm.pages)
}

func TestFreePageZeroesBodyAndRegistersInFreeMap(t *testing.T) {
	ch := newChannel(t)
	buf, err := ch.AllocatePage(byte(format.PageTypeData))
	require.NoError(t, err)
	pn := buf.PageNumber
	buf.Data[20] = 0x55
	require.NoError(t, ch.WritePage(buf))
	buf.Release()

	fm := &fakeFreeMap{}
	ch.SetFreeMap(fm)
	require.NoError(t, ch.FreePage(pn))
	assert.Contains(t, fm.pages, pn)

	reread, err := ch.ReadPage(pn)
	require.NoError(t, err)
	assert.Equal(t, byte(0), reread.Data[20])
	reread.Release()
}
