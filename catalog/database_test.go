package catalog_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/catalog"
	"github.com/zhukovaskychina/jetdb/format"
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

func newDB(t *testing.T) *catalog.Database {
	t.Helper()
	db, err := catalog.Create(&memDisk{}, format.VersionAccess2007, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCreateTableInsertReadUpdateDelete(t *testing.T) {
	db := newDB(t)
	tbl, err := db.CreateTable("People", []catalog.Column{
		{Name: "id", Index: 0, Type: value.Int32, Flags: catalog.ColAutoNumber},
		{Name: "name", Index: 1, Type: value.Text, Length: 50},
	}, nil)
	require.NoError(t, err)

	rid, err := tbl.InsertRow([]interface{}{nil, "Ada"})
	require.NoError(t, err)

	values, ok, err := tbl.ReadRow(rid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada", values[1])

	require.NoError(t, tbl.UpdateRow(rid, []interface{}{values[0], "Ada Lovelace"}))
	values, ok, err = tbl.ReadRow(rid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", values[1])

	require.NoError(t, tbl.DeleteRow(rid))
	_, ok, err = tbl.ReadRow(rid)
	require.NoError(t, err)
	assert.False(t, ok)

	// delete is idempotent
	require.NoError(t, tbl.DeleteRow(rid))
}

func TestReopenDatabaseReloadsTables(t *testing.T) {
	disk := &memDisk{}
	db, err := catalog.Create(disk, format.VersionAccess2007, nil)
	require.NoError(t, err)

	tbl, err := db.CreateTable("Widgets", []catalog.Column{
		{Name: "id", Index: 0, Type: value.Int32, Flags: catalog.ColAutoNumber},
		{Name: "sku", Index: 1, Type: value.Text, Length: 20},
	}, nil)
	require.NoError(t, err)
	_, err = tbl.InsertRow([]interface{}{nil, "SKU-1"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := catalog.Open(disk, nil)
	require.NoError(t, err)
	defer reopened.Close()

	reloaded, err := reopened.Table("Widgets")
	require.NoError(t, err)
	assert.Len(t, reloaded.Columns(), 2)
}

func TestCreateRelationshipEnforcesForeignKey(t *testing.T) {
	db := newDB(t)
	parent, err := db.CreateTable("Parent", []catalog.Column{
		{Name: "id", Index: 0, Type: value.Int32, Flags: catalog.ColAutoNumber},
	}, []catalog.IndexDef{
		{Name: "PrimaryKey", Columns: []catalog.IndexColumn{{ColumnIndex: 0, Ascending: true}},
			Flags: catalog.IdxUnique | catalog.IdxPrimaryKey},
	})
	require.NoError(t, err)

	child, err := db.CreateTable("Child", []catalog.Column{
		{Name: "id", Index: 0, Type: value.Int32, Flags: catalog.ColAutoNumber},
		{Name: "parent_id", Index: 1, Type: value.Int32},
	}, []catalog.IndexDef{
		{Name: "ParentFK", Columns: []catalog.IndexColumn{{ColumnIndex: 1, Ascending: true}},
			Flags: catalog.IdxForeignKey},
	})
	require.NoError(t, err)

	_, err = parent.InsertRow([]interface{}{int32(1)})
	require.NoError(t, err)

	require.NoError(t, db.CreateRelationship(catalog.Relationship{
		Name: "Parent_Child", FromTable: "Child", ToTable: "Parent",
		FromColumns: []string{"parent_id"}, ToColumns: []string{"id"},
	}))

	_, err = child.InsertRow([]interface{}{nil, int32(99)})
	require.Error(t, err)
	kind, ok := jetdb.AsCategory(err)
	require.True(t, ok)
	assert.Equal(t, jetdb.ConstraintViolation, kind)

	_, err = child.InsertRow([]interface{}{nil, int32(1)})
	require.NoError(t, err)
}
