package btree

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/rowstore"
	"github.com/zhukovaskychina/jetdb/value"
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

func newIndex(t *testing.T, unique bool) *Index {
	t.Helper()
	f, ok := format.ByVersion(format.VersionJet4)
	require.True(t, ok)
	ch, err := page.NewChannel(&memDisk{}, f, nil, false, nil)
	require.NoError(t, err)
	cols := []Column{{Layout: columnLayout(value.Column{Type: value.Int32}), Ascending: true}}
	ix, err := CreateEmpty(ch, 1, cols, unique, false)
	require.NoError(t, err)
	return ix
}

func TestIndexInsertAndFindFirstByEntry(t *testing.T) {
	ix := newIndex(t, false)
	for i := int32(0); i < 5; i++ {
		rid := rowstore.RowId{Page: page.Number(i + 1), Slot: 0}
		require.NoError(t, ix.Insert(rid, []interface{}{i}))
	}

	rid, ok, err := ix.FindFirstByEntry([]interface{}{int32(3)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, page.Number(4), rid.Page)
}

func TestIndexUniqueViolation(t *testing.T) {
	ix := newIndex(t, true)
	require.NoError(t, ix.Insert(rowstore.RowId{Page: 1, Slot: 0}, []interface{}{int32(7)}))
	err := ix.Insert(rowstore.RowId{Page: 2, Slot: 0}, []interface{}{int32(7)})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestIndexSplitsAcrossManyInserts(t *testing.T) {
	ix := newIndex(t, false)
	const n = 400
	for i := int32(0); i < n; i++ {
		rid := rowstore.RowId{Page: page.Number(i + 1), Slot: 0}
		require.NoError(t, ix.Insert(rid, []interface{}{i}))
	}

	c, err := ix.First()
	require.NoError(t, err)
	var got []int32
	for {
		rid, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, int32(rid.Page-1))
	}
	require.Len(t, got, n)
	for i := range got {
		assert.Equal(t, int32(i), got[i], "entries out of order at position %d", i)
	}
}

func TestIndexDeleteRemovesEntry(t *testing.T) {
	ix := newIndex(t, false)
	rid := rowstore.RowId{Page: 1, Slot: 0}
	require.NoError(t, ix.Insert(rid, []interface{}{int32(5)}))

	present, err := ix.Contains(rid, []interface{}{int32(5)})
	require.NoError(t, err)
	assert.True(t, present)

	require.NoError(t, ix.Delete(rid, []interface{}{int32(5)}))

	present, err = ix.Contains(rid, []interface{}{int32(5)})
	require.NoError(t, err)
	assert.False(t, present)
}

func TestIndexEntriesMatchingReturnsAllDuplicates(t *testing.T) {
	ix := newIndex(t, false)
	require.NoError(t, ix.Insert(rowstore.RowId{Page: 1, Slot: 0}, []interface{}{int32(9)}))
	require.NoError(t, ix.Insert(rowstore.RowId{Page: 2, Slot: 0}, []interface{}{int32(9)}))
	require.NoError(t, ix.Insert(rowstore.RowId{Page: 3, Slot: 0}, []interface{}{int32(10)}))

	rids, err := ix.EntriesMatching([]interface{}{int32(9)})
	require.NoError(t, err)
	assert.Len(t, rids, 2)
}

func TestIndexUpdateMovesEntryOnKeyChange(t *testing.T) {
	ix := newIndex(t, false)
	rid := rowstore.RowId{Page: 1, Slot: 0}
	require.NoError(t, ix.Insert(rid, []interface{}{int32(1)}))

	require.NoError(t, ix.Update(rid, []interface{}{int32(1)}, []interface{}{int32(2)}))

	present, err := ix.Contains(rid, []interface{}{int32(1)})
	require.NoError(t, err)
	assert.False(t, present)

	present, err = ix.Contains(rid, []interface{}{int32(2)})
	require.NoError(t, err)
	assert.True(t, present)
}

func TestIndexUpdateNoOpWhenKeyUnchanged(t *testing.T) {
	ix := newIndex(t, false)
	rid := rowstore.RowId{Page: 1, Slot: 0}
	require.NoError(t, ix.Insert(rid, []interface{}{int32(1)}))

	require.NoError(t, ix.Update(rid, []interface{}{int32(1)}, []interface{}{int32(1)}))

	present, err := ix.Contains(rid, []interface{}{int32(1)})
	require.NoError(t, err)
	assert.True(t, present)
}
