package table

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/yase/internal/bufferpool"
	"github.com/tuannm99/yase/internal/page"
	"github.com/tuannm99/yase/internal/tablefile"
	"github.com/tuannm99/yase/internal/yid"
)

const testRecordSize = 32

func newTestTable(t *testing.T, poolCapacity int) *Table {
	t.Helper()
	dir := t.TempDir()
	pool := bufferpool.NewPool(poolCapacity)
	tf := tablefile.Open(pool, filepath.Join(dir, "t1"), testRecordSize)
	t.Cleanup(tf.Close)
	tbl := Open(pool, tf)
	t.Cleanup(tbl.Close)
	return tbl
}

func rec(b byte) []byte {
	r := make([]byte, testRecordSize)
	for i := range r {
		r[i] = b
	}
	return r
}

func TestInsertReadRoundTrip(t *testing.T) {
	tbl := newTestTable(t, 8)
	rid, err := tbl.Insert(rec(0xAA))
	require.NoError(t, err)
	require.True(t, rid.Valid())

	got, err := tbl.Read(rid)
	require.NoError(t, err)
	assert.Equal(t, rec(0xAA), got)
}

func TestUpdateOverwritesInPlace(t *testing.T) {
	tbl := newTestTable(t, 8)
	rid, err := tbl.Insert(rec(1))
	require.NoError(t, err)

	require.NoError(t, tbl.Update(rid, rec(2)))
	got, err := tbl.Read(rid)
	require.NoError(t, err)
	assert.Equal(t, rec(2), got)
}

func TestDeleteThenReadFails(t *testing.T) {
	tbl := newTestTable(t, 8)
	rid, err := tbl.Insert(rec(1))
	require.NoError(t, err)

	require.NoError(t, tbl.Delete(rid))
	_, err = tbl.Read(rid)
	assert.Error(t, err)
}

func TestDeleteFreesSlotForReuse(t *testing.T) {
	tbl := newTestTable(t, 8)
	rid, err := tbl.Insert(rec(1))
	require.NoError(t, err)
	require.NoError(t, tbl.Delete(rid))

	rid2, err := tbl.Insert(rec(3))
	require.NoError(t, err)
	assert.Equal(t, rid.Slot(), rid2.Slot(), "freed slot should be reused before growing the page")
}

func TestInsertFillsPageThenAllocatesNext(t *testing.T) {
	tbl := newTestTable(t, 16)
	cap := page.Capacity(testRecordSize)

	var firstPage = make(map[uint64]bool)
	for i := 0; i < cap; i++ {
		rid, err := tbl.Insert(rec(byte(i)))
		require.NoError(t, err)
		firstPage[uint64(rid.PageID())] = true
	}
	require.Len(t, firstPage, 1, "all inserts should land on the single initial page")

	overflowRid, err := tbl.Insert(rec(0xFF))
	require.NoError(t, err)
	assert.NotContains(t, firstPage, uint64(overflowRid.PageID()), "page is full, must allocate a new one")

	got, err := tbl.Read(overflowRid)
	require.NoError(t, err)
	assert.Equal(t, rec(0xFF), got)
}

func TestReadInvalidRidFails(t *testing.T) {
	tbl := newTestTable(t, 8)
	_, err := tbl.Read(yid.InvalidRID)
	assert.Error(t, err)
}

func TestUpdateOnDeletedSlotFails(t *testing.T) {
	tbl := newTestTable(t, 8)
	rid, err := tbl.Insert(rec(1))
	require.NoError(t, err)
	require.NoError(t, tbl.Delete(rid))
	assert.Error(t, tbl.Update(rid, rec(9)))
}

func TestClosedTableRejectsOperations(t *testing.T) {
	tbl := newTestTable(t, 8)
	rid, err := tbl.Insert(rec(1))
	require.NoError(t, err)

	tbl.Close()
	_, err = tbl.Insert(rec(2))
	assert.ErrorIs(t, err, ErrTableClosed)
	_, err = tbl.Read(rid)
	assert.ErrorIs(t, err, ErrTableClosed)
}
