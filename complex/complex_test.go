package complex

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/catalog"
	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/value"
)

// memDisk is a growable in-memory io.ReadWriteSeeker standing in for a
// real file, the way the teacher's storage tests back a page/segment
// under test with an in-memory buffer rather than touching disk.
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

func newTestDatabase(t *testing.T) *catalog.Database {
	t.Helper()
	db, err := catalog.Create(&memDisk{}, format.VersionAccess2007, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newParentTable(t *testing.T, db *catalog.Database) *catalog.Table {
	t.Helper()
	tbl, err := db.CreateTable("Assets", []catalog.Column{
		{Name: "id", Index: 0, Type: value.Int32, Flags: catalog.ColAutoNumber},
		{Name: "tags", Index: 1, Type: value.Complex},
	}, nil)
	require.NoError(t, err)
	return tbl
}

func TestMultiValueRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	newParentTable(t, db)

	cc, err := Create(db, "Assets", "tags", MultiValue, value.Column{Type: value.Text, Length: 50})
	require.NoError(t, err)

	group := cc.NextGroup()
	assert.Equal(t, int32(1), group)

	_, err = cc.AddValue(group, "red")
	require.NoError(t, err)
	_, err = cc.AddValue(group, "blue")
	require.NoError(t, err)

	otherGroup := cc.NextGroup()
	_, err = cc.AddValue(otherGroup, "unrelated")
	require.NoError(t, err)

	entries, err := cc.GetValues(group)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "red", entries[0].Fields[0])
	assert.Equal(t, "blue", entries[1].Fields[0])

	otherEntries, err := cc.GetValues(otherGroup)
	require.NoError(t, err)
	require.Len(t, otherEntries, 1)
}

func TestMultiValueDeleteIsIdempotent(t *testing.T) {
	db := newTestDatabase(t)
	newParentTable(t, db)
	cc, err := Create(db, "Assets", "tags", MultiValue, value.Column{Type: value.Int32})
	require.NoError(t, err)

	group := cc.NextGroup()
	rid, err := cc.AddValue(group, int32(42))
	require.NoError(t, err)

	require.NoError(t, cc.DeleteValue(rid))
	require.NoError(t, cc.DeleteValue(rid)) // no-op, spec.md §8

	entries, err := cc.GetValues(group)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVersionHistoryIsAppendOnly(t *testing.T) {
	db := newTestDatabase(t)
	newParentTable(t, db)
	cc, err := Create(db, "Assets", "tags", VersionHistory, value.Column{})
	require.NoError(t, err)

	group := cc.NextGroup()
	rid, err := cc.AddValue(group, "first draft", time.Now())
	require.NoError(t, err)

	err = cc.UpdateValue(rid, "revised draft", time.Now())
	require.Error(t, err)
	kind, ok := jetdb.AsCategory(err)
	require.True(t, ok)
	assert.Equal(t, jetdb.ConstraintViolation, kind)
}

func TestAttachmentDataRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("attachment payload bytes "), 200)
	encoded, err := EncodeAttachmentData("photo.jpg", raw)
	require.NoError(t, err)

	name, decoded, err := DecodeAttachmentData(encoded)
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", name)
	assert.Equal(t, raw, decoded)
}

func TestAttachmentDataRejectsBadSignature(t *testing.T) {
	_, _, err := DecodeAttachmentData(make([]byte, 30))
	require.Error(t, err)
}
