package catalog

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhukovaskychina/jetdb"
	"github.com/zhukovaskychina/jetdb/btree"
	"github.com/zhukovaskychina/jetdb/format"
	"github.com/zhukovaskychina/jetdb/page"
	"github.com/zhukovaskychina/jetdb/rowstore"
	"github.com/zhukovaskychina/jetdb/usagemap"
	"github.com/zhukovaskychina/jetdb/value"
)

// Database is the top-level handle a caller opens or creates: the page
// channel, the two bootstrap system tables this engine models itself on
// top of (MSysObjects for table discovery, MSysRelationships for FK
// metadata), and the per-table cache loaded lazily from them. It plays
// the role the teacher's manager.DictionaryManager plays above its own
// storage and buffer-pool layers (see the package doc comment).
type Database struct {
	rw  io.ReadWriteSeeker
	ch  *page.Channel
	fmt *format.Format
	cfg *jetdb.Config
	log *logrus.Logger

	sysObjectsHome page.Number
	sysRelHome     page.Number
	sysObjects     *rowstore.Table
	sysRel         *rowstore.Table

	tables map[string]*Table // keyed by strings.ToLower(name)

	relationships []Relationship
	linkResolver  LinkResolver

	closed bool
}

// header-page field offsets this engine stamps past format's reserved
// version byte (0x14). original_source/ carried no files for this spec
// (catalog/tabledef.go's doc comment explains why), so this layout is
// this engine's own design rather than a transcription of the real Jet
// header page.
const (
	headerSysObjectsHomeOffset = 0x20
	headerSysRelHomeOffset     = 0x24
)

// localityMapMaxBits bounds a table's in-memory free-space locality
// bitmap (usage + the four fullness tiers) before it would need
// promotion to the reference variant. These maps are never persisted —
// only a table's data-page chain is (rowstore.Table's head/tail doc
// comment) — so the bound only needs to comfortably exceed how many
// pages one table occupies, not the whole file.
const localityMapMaxBits = 1 << 16

// sysObjects / sysRel column layouts. These two tables are never
// rediscovered from a decoded TABLE_DEF body the way user tables are —
// Open hardcodes the same layout Create wrote, and only the page chain
// (head/tail) and relationship rows are read back — so there is no
// catalog.Column slice to keep in sync with them.
const (
	sysObjNameCol = 0
	sysObjTypeCol = 1
	sysObjHomeCol = 2

	sysObjTypeTable = byte(1)
)

func sysObjectsLayouts() []rowstore.ColumnLayout {
	return []rowstore.ColumnLayout{
		{Index: sysObjNameCol, Column: value.Column{Type: value.Text, Length: 64}},
		{Index: sysObjTypeCol, Column: value.Column{Type: value.Byte}},
		{Index: sysObjHomeCol, Column: value.Column{Type: value.Int32}},
	}
}

const (
	sysRelNameCol        = 0
	sysRelFromTableCol   = 1
	sysRelToTableCol     = 2
	sysRelFromColumnsCol = 3
	sysRelToColumnsCol   = 4
	sysRelFlagsCol       = 5
)

func sysRelLayouts() []rowstore.ColumnLayout {
	return []rowstore.ColumnLayout{
		{Index: sysRelNameCol, Column: value.Column{Type: value.Text, Length: 64}},
		{Index: sysRelFromTableCol, Column: value.Column{Type: value.Text, Length: 64}},
		{Index: sysRelToTableCol, Column: value.Column{Type: value.Text, Length: 64}},
		{Index: sysRelFromColumnsCol, Column: value.Column{Type: value.Text, Length: 255}},
		{Index: sysRelToColumnsCol, Column: value.Column{Type: value.Text, Length: 255}},
		{Index: sysRelFlagsCol, Column: value.Column{Type: value.Int32}},
	}
}

// Create formats a brand-new database over rw: a header page and the
// two bootstrap system tables, with no user tables yet.
func Create(rw io.ReadWriteSeeker, version format.Version, cfg *jetdb.Config) (*Database, error) {
	cfg = jetdb.Normalize(cfg)
	f, ok := format.ByVersion(version)
	if !ok {
		return nil, jetdb.New(jetdb.Unsupported, "unknown format version %v", version)
	}
	ch, err := page.NewChannel(rw, f, page.Identity, true, cfg.Logger)
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "opening page channel")
	}
	db := &Database{rw: rw, ch: ch, fmt: f, cfg: cfg, log: cfg.Logger, tables: map[string]*Table{}}

	headerBuf, err := ch.AllocatePage(byte(format.PageTypeDBHeader))
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "allocating header page")
	}
	format.WriteVersion(headerBuf.Data, version)

	sysObjBuf, err := ch.AllocatePage(byte(format.PageTypeTableDef))
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "allocating MSysObjects table-def page")
	}
	db.sysObjectsHome = sysObjBuf.PageNumber
	sysObjBuf.Release()

	sysRelBuf, err := ch.AllocatePage(byte(format.PageTypeTableDef))
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "allocating MSysRelationships table-def page")
	}
	db.sysRelHome = sysRelBuf.PageNumber
	sysRelBuf.Release()

	putU32(headerBuf.Data[headerSysObjectsHomeOffset:], uint32(db.sysObjectsHome))
	putU32(headerBuf.Data[headerSysRelHomeOffset:], uint32(db.sysRelHome))
	if err := ch.WritePage(headerBuf); err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "writing header page")
	}
	headerBuf.Release()

	db.sysObjects = db.newBootstrapTable(db.sysObjectsHome, sysObjectsLayouts(), page.Invalid, page.Invalid)
	db.sysRel = db.newBootstrapTable(db.sysRelHome, sysRelLayouts(), page.Invalid, page.Invalid)
	if err := db.persistSysTable(db.sysObjectsHome, db.sysObjects); err != nil {
		return nil, err
	}
	if err := db.persistSysTable(db.sysRelHome, db.sysRel); err != nil {
		return nil, err
	}
	return db, nil
}

// Open loads an existing database off rw. The format version is
// detected directly from the raw header bytes before a page.Channel
// (which needs a page size to do anything) can be constructed.
func Open(rw io.ReadWriteSeeker, cfg *jetdb.Config) (*Database, error) {
	cfg = jetdb.Normalize(cfg)
	head := make([]byte, 256)
	if _, err := rw.Seek(0, io.SeekStart); err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "seeking to header page")
	}
	if _, err := io.ReadFull(rw, head); err != nil {
		return nil, jetdb.Wrap(jetdb.CorruptFormat, err, "reading header page")
	}
	f, err := format.DetectVersion(head)
	if err != nil {
		return nil, jetdb.Wrap(jetdb.CorruptFormat, err, "detecting file format version")
	}
	ch, err := page.NewChannel(rw, f, page.Identity, true, cfg.Logger)
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "opening page channel")
	}
	db := &Database{rw: rw, ch: ch, fmt: f, cfg: cfg, log: cfg.Logger, tables: map[string]*Table{}}

	headerBuf, err := ch.ReadPage(page.First)
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "reading header page")
	}
	db.sysObjectsHome = page.Number(getU32(headerBuf.Data[headerSysObjectsHomeOffset:]))
	db.sysRelHome = page.Number(getU32(headerBuf.Data[headerSysRelHomeOffset:]))
	headerBuf.Release()

	sysObjBody, err := db.readTableDef(db.sysObjectsHome)
	if err != nil {
		return nil, err
	}
	db.sysObjects = db.newBootstrapTable(db.sysObjectsHome, sysObjectsLayouts(), sysObjBody.chainHead, sysObjBody.chainTail)
	if err := db.sysObjects.RebuildLocality(); err != nil {
		return nil, err
	}

	sysRelBody, err := db.readTableDef(db.sysRelHome)
	if err != nil {
		return nil, err
	}
	db.sysRel = db.newBootstrapTable(db.sysRelHome, sysRelLayouts(), sysRelBody.chainHead, sysRelBody.chainTail)
	if err := db.sysRel.RebuildLocality(); err != nil {
		return nil, err
	}

	if err := db.loadRelationships(); err != nil {
		return nil, err
	}
	return db, nil
}

// Close flushes pending writes and, if the underlying handle supports
// it, closes it. Calling Close more than once is a no-op.
func (db *Database) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	if err := db.ch.Flush(); err != nil {
		return jetdb.Wrap(jetdb.IO, err, "flushing on close")
	}
	if c, ok := db.rw.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return jetdb.Wrap(jetdb.IO, err, "closing underlying file")
		}
	}
	return nil
}

// SetLinkResolver installs the callback used to open a linked table's
// external database file (spec.md §4.8).
func (db *Database) SetLinkResolver(r LinkResolver) { db.linkResolver = r }

// Format returns the static layout descriptor this database was
// opened with.
func (db *Database) Format() *format.Format { return db.fmt }

func (db *Database) newUsageMap() *usagemap.Map {
	pagesPerSub := (db.fmt.PageSize - 4) * 8
	m := usagemap.NewInline(db.ch, page.First, localityMapMaxBits, false, pagesPerSub)
	m.SetLogger(db.log)
	return m
}

func (db *Database) newTierMaps() [4]*usagemap.Map {
	var tiers [4]*usagemap.Map
	for i := range tiers {
		tiers[i] = db.newUsageMap()
	}
	return tiers
}

func (db *Database) newBootstrapTable(home page.Number, layouts []rowstore.ColumnLayout, head, tail page.Number) *rowstore.Table {
	return rowstore.NewTable(db.ch, uint32(home), layouts, map[int]bool{}, db.newUsageMap(), db.newTierMaps(), head, tail)
}

func (db *Database) persistSysTable(home page.Number, store *rowstore.Table) error {
	return db.writeTableDef(uint32(home), tableDefBody{
		tableType: 2,
		chainHead: store.HeadPage(),
		chainTail: store.TailPage(),
	})
}

// writeTableDef encodes body onto homePage. catalog.Table.persist and
// Database's own bootstrap-table bookkeeping share this single
// encode/write path.
func (db *Database) writeTableDef(homePage uint32, body tableDefBody) error {
	buf, err := encodeTableDef(db.fmt, body)
	if err != nil {
		return jetdb.Wrap(jetdb.CorruptFormat, err, "encoding table-def page %d", homePage)
	}
	pb := &page.Buffer{PageNumber: page.Number(homePage), Type: format.PageTypeTableDef, Data: buf}
	if err := db.ch.WritePage(pb); err != nil {
		return jetdb.Wrap(jetdb.IO, err, "writing table-def page %d", homePage)
	}
	return nil
}

func (db *Database) readTableDef(home page.Number) (tableDefBody, error) {
	buf, err := db.ch.ReadPage(home)
	if err != nil {
		return tableDefBody{}, jetdb.Wrap(jetdb.IO, err, "reading table-def page %d", home)
	}
	defer buf.Release()
	body, err := decodeTableDef(db.fmt, buf.Data)
	if err != nil {
		return tableDefBody{}, jetdb.Wrap(jetdb.CorruptFormat, err, "decoding table-def page %d", home)
	}
	return body, nil
}

// sysObjectLookup scans MSysObjects for name, case-insensitively.
// Bootstrap tables carry no index of their own (spec.md §4.8 scope: the
// catalog's own directory is small enough that a linear scan per lookup
// is the simplification this engine makes).
func (db *Database) sysObjectLookup(name string) (rid rowstore.RowId, home uint32, ok bool, err error) {
	pages, err := db.sysObjects.Pages()
	if err != nil {
		return rowstore.RowId{}, 0, false, err
	}
	for _, pn := range pages {
		slots, err := db.sysObjects.LiveSlots(pn)
		if err != nil {
			return rowstore.RowId{}, 0, false, err
		}
		for _, r := range slots {
			values, ok, err := db.sysObjects.ReadRow(r)
			if err != nil {
				return rowstore.RowId{}, 0, false, err
			}
			if !ok {
				continue
			}
			rowName, _ := values[sysObjNameCol].(string)
			if strings.EqualFold(rowName, name) {
				h, _ := values[sysObjHomeCol].(int32)
				return r, uint32(h), true, nil
			}
		}
	}
	return rowstore.RowId{}, 0, false, nil
}

// Table returns the named table, case-insensitively, loading and
// caching it from the catalog on first reference.
func (db *Database) Table(name string) (*Table, error) {
	key := strings.ToLower(name)
	if t, ok := db.tables[key]; ok {
		return t, nil
	}
	_, home, ok, err := db.sysObjectLookup(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, jetdb.New(jetdb.InvalidArgument, "no such table %q", name)
	}
	t, err := db.loadTable(page.Number(home), name)
	if err != nil {
		return nil, err
	}
	db.tables[key] = t
	return t, nil
}

// loadTable decodes home's TABLE_DEF page into a Table: its row store,
// rebuilt locality maps, and the btree.Index set wired as
// rowstore.IndexUpdaters.
func (db *Database) loadTable(home page.Number, name string) (*Table, error) {
	body, err := db.readTableDef(home)
	if err != nil {
		return nil, err
	}
	layouts, longValueCols := columnLayouts(body.columns)
	store := rowstore.NewTable(db.ch, uint32(home), layouts, longValueCols, db.newUsageMap(), db.newTierMaps(), body.chainHead, body.chainTail)
	if err := store.RebuildLocality(); err != nil {
		return nil, err
	}
	btrees := make([]*btree.Index, len(body.indexes))
	for i, ix := range body.indexes {
		cols := indexColumns(body.columns, ix.Columns)
		bi := btree.NewIndex(db.ch, uint32(home), page.Number(ix.RootPage), cols, ix.Flags.Has(IdxUnique), ix.Flags.Has(IdxIgnoreNulls))
		bi.SetLogger(db.log)
		btrees[i] = bi
		store.AddIndex(bi)
	}
	return &Table{db: db, homePage: uint32(home), name: name, columns: body.columns, indexes: body.indexes, store: store, btrees: btrees}, nil
}

// CreateTable defines a brand-new table: a fresh TABLE_DEF page, an
// empty root leaf for each index, and an MSysObjects entry recording
// it. Existing rows are never implied — a caller populates the table
// afterward through InsertRow/AddRows.
func (db *Database) CreateTable(name string, columns []Column, indexes []IndexDef) (*Table, error) {
	if db.closed {
		return nil, jetdb.New(jetdb.IllegalState, "database is closed")
	}
	if _, _, exists, err := db.sysObjectLookup(name); err != nil {
		return nil, err
	} else if exists {
		return nil, jetdb.New(jetdb.InvalidArgument, "table %q already exists", name)
	}

	homeBuf, err := db.ch.AllocatePage(byte(format.PageTypeTableDef))
	if err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "allocating table-def page for %q", name)
	}
	home := homeBuf.PageNumber
	homeBuf.Release()

	layouts, longValueCols := columnLayouts(columns)
	store := rowstore.NewTable(db.ch, uint32(home), layouts, longValueCols, db.newUsageMap(), db.newTierMaps(), page.Invalid, page.Invalid)

	btrees := make([]*btree.Index, len(indexes))
	for i := range indexes {
		cols := indexColumns(columns, indexes[i].Columns)
		bi, err := btree.CreateEmpty(db.ch, uint32(home), cols, indexes[i].Flags.Has(IdxUnique), indexes[i].Flags.Has(IdxIgnoreNulls))
		if err != nil {
			return nil, jetdb.Wrap(jetdb.IO, err, "creating index %q on %q", indexes[i].Name, name)
		}
		bi.SetLogger(db.log)
		indexes[i].RootPage = uint32(bi.RootPage())
		btrees[i] = bi
		store.AddIndex(bi)
	}

	t := &Table{db: db, homePage: uint32(home), name: name, columns: columns, indexes: indexes, store: store, btrees: btrees}
	if err := t.persist(); err != nil {
		return nil, err
	}

	if _, err := db.sysObjects.InsertRow([]interface{}{name, sysObjTypeTable, int32(home)}); err != nil {
		return nil, jetdb.Wrap(jetdb.IO, err, "recording table %q in the system catalog", name)
	}
	if err := db.persistSysTable(db.sysObjectsHome, db.sysObjects); err != nil {
		return nil, err
	}

	db.tables[strings.ToLower(name)] = t
	return t, nil
}

// DropTable removes name from the catalog. It refuses while any
// relationship still names the table, on either side, so a dangling FK
// reference can never be created by forgetting to drop the
// relationship first.
func (db *Database) DropTable(name string) error {
	for _, rel := range db.relationships {
		if strings.EqualFold(rel.FromTable, name) || strings.EqualFold(rel.ToTable, name) {
			return jetdb.New(jetdb.ConstraintViolation, "table %q is referenced by relationship %q", name, rel.Name)
		}
	}
	rid, _, ok, err := db.sysObjectLookup(name)
	if err != nil {
		return err
	}
	if !ok {
		return jetdb.New(jetdb.InvalidArgument, "no such table %q", name)
	}
	if err := db.sysObjects.DeleteRow(rid); err != nil {
		return jetdb.Wrap(jetdb.IO, err, "removing table %q from the system catalog", name)
	}
	if err := db.persistSysTable(db.sysObjectsHome, db.sysObjects); err != nil {
		return err
	}
	delete(db.tables, strings.ToLower(name))
	return nil
}

// loadRelationships decodes every row of MSysRelationships into the
// in-memory cache CreateRelationship and the cascade logic consult.
func (db *Database) loadRelationships() error {
	pages, err := db.sysRel.Pages()
	if err != nil {
		return err
	}
	db.relationships = db.relationships[:0]
	for _, pn := range pages {
		slots, err := db.sysRel.LiveSlots(pn)
		if err != nil {
			return err
		}
		for _, rid := range slots {
			values, ok, err := db.sysRel.ReadRow(rid)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			db.relationships = append(db.relationships, relationshipFromRow(values))
		}
	}
	return nil
}

func relationshipFromRow(values []interface{}) Relationship {
	name, _ := values[sysRelNameCol].(string)
	fromTable, _ := values[sysRelFromTableCol].(string)
	toTable, _ := values[sysRelToTableCol].(string)
	fromCols, _ := values[sysRelFromColumnsCol].(string)
	toCols, _ := values[sysRelToColumnsCol].(string)
	flags, _ := values[sysRelFlagsCol].(int32)
	return Relationship{
		Name:        name,
		FromTable:   fromTable,
		ToTable:     toTable,
		FromColumns: splitColumnList(fromCols),
		ToColumns:   splitColumnList(toCols),
		Flags:       RelationshipFlags(flags),
	}
}

func splitColumnList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Relationships returns every relationship currently recorded.
func (db *Database) Relationships() []Relationship {
	out := make([]Relationship, len(db.relationships))
	copy(out, db.relationships)
	return out
}

// CreateRelationship validates rel — both tables exist, the parent side
// is covered by an index (spec.md §3's requirement that referential
// integrity can only be enforced against an indexed key) — persists it
// to MSysRelationships, and adds it to the live cascade/FK-check set.
func (db *Database) CreateRelationship(rel Relationship) error {
	if len(rel.FromColumns) == 0 || len(rel.FromColumns) != len(rel.ToColumns) {
		return jetdb.New(jetdb.InvalidArgument, "relationship %q: column list length mismatch", rel.Name)
	}
	if _, err := db.Table(rel.FromTable); err != nil {
		return jetdb.Wrap(jetdb.InvalidArgument, err, "relationship %q: child table", rel.Name)
	}
	parent, err := db.Table(rel.ToTable)
	if err != nil {
		return jetdb.Wrap(jetdb.InvalidArgument, err, "relationship %q: parent table", rel.Name)
	}
	if _, _, ok := findCoveringIndex(parent, rel.ToColumns); !ok {
		return jetdb.New(jetdb.ConstraintViolation, "relationship %q: %q has no index covering %v", rel.Name, rel.ToTable, rel.ToColumns)
	}

	values := []interface{}{
		rel.Name, rel.FromTable, rel.ToTable,
		strings.Join(rel.FromColumns, ","), strings.Join(rel.ToColumns, ","),
		int32(rel.Flags),
	}
	if _, err := db.sysRel.InsertRow(values); err != nil {
		return jetdb.Wrap(jetdb.IO, err, "recording relationship %q", rel.Name)
	}
	if err := db.persistSysTable(db.sysRelHome, db.sysRel); err != nil {
		return err
	}
	db.relationships = append(db.relationships, rel)
	return nil
}
