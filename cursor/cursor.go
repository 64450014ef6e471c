package cursor

import (
	"github.com/pkg/errors"
	"github.com/zhukovaskychina/jetdb/rowstore"
)

type position int

const (
	posBeforeFirst position = iota
	posOn
	posAfterLast
)

// Cursor tracks a live position over a Backend and survives concurrent
// mutation of the underlying table by revalidating against its
// modification counter before every move (spec.md §4.7).
type Cursor struct {
	backend  Backend
	pos      position
	rid      rowstore.RowId
	values   []interface{}
	modCount uint64
}

// New returns a Cursor positioned before the first row of b.
func New(b Backend) *Cursor {
	return &Cursor{backend: b, pos: posBeforeFirst, modCount: b.ModCount()}
}

// BeforeFirst repositions the cursor so the next MoveNext lands on the
// first row.
func (c *Cursor) BeforeFirst() {
	c.pos = posBeforeFirst
	c.values = nil
}

// AfterLast repositions the cursor so the next MovePrevious lands on
// the last row.
func (c *Cursor) AfterLast() {
	c.pos = posAfterLast
	c.values = nil
}

// revalidate re-reads the cursor's current row when the backend has
// been mutated since the last move. If the row itself was deleted, the
// cursor keeps its last-known values as a positional anchor for the
// next Next/Prev call rather than resetting to before-first — a row
// disappearing out from under a live cursor is not pinned to one
// behavior by the distillation, and this is the reading that lets a
// forward scan continue past a row some other mutation just removed.
func (c *Cursor) revalidate() error {
	if c.pos != posOn {
		return nil
	}
	mc := c.backend.ModCount()
	if mc == c.modCount {
		return nil
	}
	if values, ok, err := c.backend.ReadRow(c.rid); err != nil {
		return err
	} else if ok {
		c.values = values
	}
	c.modCount = mc
	return nil
}

// MoveNext advances to the next row, reporting whether one was found.
func (c *Cursor) MoveNext() (bool, error) {
	if err := c.revalidate(); err != nil {
		return false, err
	}
	var (
		rid    rowstore.RowId
		values []interface{}
		ok     bool
		err    error
	)
	switch c.pos {
	case posBeforeFirst:
		rid, values, ok, err = c.backend.First()
	case posAfterLast:
		return false, nil
	default:
		rid, values, ok, err = c.backend.Next(c.rid, c.values)
	}
	if err != nil {
		return false, err
	}
	if !ok {
		c.pos = posAfterLast
		c.values = nil
		return false, nil
	}
	c.rid, c.values, c.pos = rid, values, posOn
	c.modCount = c.backend.ModCount()
	return true, nil
}

// MovePrevious retreats to the preceding row, reporting whether one was
// found.
func (c *Cursor) MovePrevious() (bool, error) {
	if err := c.revalidate(); err != nil {
		return false, err
	}
	var (
		rid    rowstore.RowId
		values []interface{}
		ok     bool
		err    error
	)
	switch c.pos {
	case posAfterLast:
		rid, values, ok, err = c.backend.Last()
	case posBeforeFirst:
		return false, nil
	default:
		rid, values, ok, err = c.backend.Prev(c.rid, c.values)
	}
	if err != nil {
		return false, err
	}
	if !ok {
		c.pos = posBeforeFirst
		c.values = nil
		return false, nil
	}
	c.rid, c.values, c.pos = rid, values, posOn
	c.modCount = c.backend.ModCount()
	return true, nil
}

// Current returns the row the cursor is positioned on, if any.
func (c *Cursor) Current() (rowstore.RowId, []interface{}, bool) {
	if c.pos != posOn {
		return rowstore.RowId{}, nil, false
	}
	return c.rid, c.values, true
}

// FindByRowId repositions directly onto rid, as when a caller resumes
// iteration from a RowId saved outside the cursor's own lifetime.
func (c *Cursor) FindByRowId(rid rowstore.RowId) (bool, error) {
	values, ok, err := c.backend.ReadRow(rid)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	c.rid, c.values, c.pos = rid, values, posOn
	c.modCount = c.backend.ModCount()
	return true, nil
}

// Savepoint is an opaque, restorable cursor position. It is only valid
// against the Cursor it was taken from — Restore rejects one taken
// against a different cursor's backend.
type Savepoint struct {
	backend Backend
	pos     position
	rid     rowstore.RowId
	values  []interface{}
}

// ErrSavepointNotPortable is returned by Restore when sp was captured
// from a different Cursor.
var ErrSavepointNotPortable = errors.New("cursor: savepoint is not portable to this cursor")

// ErrNotPositioned is returned by DeleteCurrentRow/UpdateCurrentRow
// when the cursor is before-first or after-last.
var ErrNotPositioned = errors.New("cursor: not positioned on a row")

// Savepoint captures the cursor's current position for later Restore.
func (c *Cursor) Savepoint() Savepoint {
	return Savepoint{backend: c.backend, pos: c.pos, rid: c.rid, values: c.values}
}

// Restore repositions the cursor to sp and revalidates it against the
// backend's current state.
func (c *Cursor) Restore(sp Savepoint) error {
	if sp.backend != c.backend {
		return ErrSavepointNotPortable
	}
	c.pos, c.rid, c.values = sp.pos, sp.rid, sp.values
	c.modCount = c.backend.ModCount()
	return c.revalidate()
}

// DeleteCurrentRow deletes the row the cursor is positioned on.
func (c *Cursor) DeleteCurrentRow() error {
	if c.pos != posOn {
		return ErrNotPositioned
	}
	if err := c.backend.DeleteRow(c.rid); err != nil {
		return err
	}
	c.modCount = c.backend.ModCount()
	return nil
}

// UpdateCurrentRow rewrites the row the cursor is positioned on.
func (c *Cursor) UpdateCurrentRow(values []interface{}) error {
	if c.pos != posOn {
		return ErrNotPositioned
	}
	if err := c.backend.UpdateRow(c.rid, values); err != nil {
		return err
	}
	c.values = values
	c.modCount = c.backend.ModCount()
	return nil
}
