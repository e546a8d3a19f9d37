// Package table implements the record-oriented Insert/Read/Update/Delete
// layer over one tablefile.File: it owns the "which data page probably has
// room" hint and the bitmap-level record operations on whichever page that
// hint resolves to. Grounded on the teacher's internal/heap/table.go
// (ensureOpen guard, pin-mutate-unpin shape, retry-on-full-page Insert
// loop, slog.Warn on best-effort paths) adapted from variable-length rows
// with overflow chains down to yase's fixed-size, no-overflow records.
package table

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/yase/internal/bufferpool"
	"github.com/tuannm99/yase/internal/page"
	"github.com/tuannm99/yase/internal/tablefile"
	"github.com/tuannm99/yase/internal/yid"
)

var ErrTableClosed = errors.New("table: table is closed")

// Table wraps one tablefile.File with a next_free_pid hint used to avoid
// scanning from scratch on every Insert.
type Table struct {
	mu sync.Mutex // guards nextFree; serializes the allocate-on-full-page retry

	file       *tablefile.File
	pool       *bufferpool.Pool
	recordSize uint16

	nextFree atomic.Uint64 // yid.PageID, accessed via yid.PageID(nextFree.Load())

	closed atomic.Bool
}

// Open creates a fresh Table over file, seeding next_free_pid with a newly
// allocated page (an empty table still needs somewhere for the first
// Insert to land).
func Open(pool *bufferpool.Pool, file *tablefile.File) *Table {
	t := &Table{file: file, pool: pool, recordSize: file.RecordSize()}
	first := file.AllocatePage()
	t.nextFree.Store(uint64(first))
	return t
}

func (t *Table) ensureOpen() error {
	if t.closed.Load() {
		return ErrTableClosed
	}
	return nil
}

// Insert writes record (which must be exactly RecordSize() bytes) into the
// page named by next_free_pid, allocating and retrying on a full page.
func (t *Table) Insert(record []byte) (yid.RID, error) {
	if err := t.ensureOpen(); err != nil {
		return yid.InvalidRID, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		pid := yid.PageID(t.nextFree.Load())
		frame := t.pool.Pin(pid)
		if frame == nil {
			slog.Error("table: insert could not pin next_free_pid", "page", pid)
			return yid.InvalidRID, errors.New("table: pin failed")
		}

		frame.Lock()
		dp := page.WrapDataPage(frame.Data)
		slot, ok := dp.Insert(record)
		frame.Unlock()

		if ok {
			t.pool.Unpin(frame, true)
			t.file.AdjustFreeSlots(pid, -1)
			return yid.NewRID(pid, uint32(slot)), nil
		}

		t.pool.Unpin(frame, false)
		newPid := t.file.AllocatePage()
		if !newPid.Valid() {
			return yid.InvalidRID, errors.New("table: allocate failed")
		}
		t.nextFree.Store(uint64(newPid))
	}
}

// Read returns a copy of the record at rid, or an error if rid's page is
// not live or the slot isn't allocated.
func (t *Table) Read(rid yid.RID) ([]byte, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	frame, err := t.pinLive(rid)
	if err != nil {
		return nil, err
	}
	defer t.pool.Unpin(frame, false)

	frame.Lock()
	defer frame.Unlock()
	dp := page.WrapDataPage(frame.Data)
	rec, ok := dp.Read(int(rid.Slot()))
	if !ok {
		return nil, errors.New("table: slot not allocated")
	}
	return rec, nil
}

// Update overwrites the record at rid in place.
func (t *Table) Update(rid yid.RID, record []byte) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	frame, err := t.pinLive(rid)
	if err != nil {
		return err
	}

	frame.Lock()
	dp := page.WrapDataPage(frame.Data)
	ok := dp.Update(int(rid.Slot()), record)
	frame.Unlock()

	t.pool.Unpin(frame, ok)
	if !ok {
		return errors.New("table: update failed, slot not allocated or size mismatch")
	}
	return nil
}

// Delete frees rid's slot and credits the page's directory free-slot count.
func (t *Table) Delete(rid yid.RID) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	frame, err := t.pinLive(rid)
	if err != nil {
		return err
	}

	frame.Lock()
	dp := page.WrapDataPage(frame.Data)
	ok := dp.Delete(int(rid.Slot()))
	frame.Unlock()

	t.pool.Unpin(frame, ok)
	if !ok {
		return errors.New("table: delete failed, slot already free")
	}
	t.file.AdjustFreeSlots(rid.PageID(), 1)
	return nil
}

// pinLive validates rid and pins its data page, returning an error if the
// page is not currently allocated in the file's directory.
func (t *Table) pinLive(rid yid.RID) (*bufferpool.Frame, error) {
	if !rid.Valid() || !t.file.PageExists(rid.PageID()) {
		return nil, errors.New("table: invalid or unallocated rid")
	}
	frame := t.pool.Pin(rid.PageID())
	if frame == nil {
		return nil, errors.New("table: pin failed")
	}
	return frame, nil
}

// RecordSize returns the fixed record size records in this table use.
func (t *Table) RecordSize() uint16 { return t.recordSize }

// Close marks the table closed; idempotent.
func (t *Table) Close() {
	t.closed.Store(true)
}
