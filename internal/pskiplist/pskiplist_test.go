package pskiplist

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/yase/internal/bufferpool"
	"github.com/tuannm99/yase/internal/yid"
)

func key8(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

func newTestPSkipList(t *testing.T) *PSkipList {
	t.Helper()
	dir := t.TempDir()
	pool := bufferpool.NewPool(16)
	p, err := Open(pool, filepath.Join(dir, "idx"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestInsertSearchRoundTrip(t *testing.T) {
	p := newTestPSkipList(t)
	ok, err := p.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0))
	require.NoError(t, err)
	require.True(t, ok)

	rid, err := p.Search(key8(1))
	require.NoError(t, err)
	assert.True(t, rid.Valid())
}

func TestInsertDuplicateFails(t *testing.T) {
	p := newTestPSkipList(t)
	_, err := p.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0))
	require.NoError(t, err)

	ok, err := p.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearchMissingReturnsInvalid(t *testing.T) {
	p := newTestPSkipList(t)
	rid, err := p.Search(key8(42))
	require.NoError(t, err)
	assert.Equal(t, yid.InvalidRID, rid)
}

func TestUpdateOverwritesPayload(t *testing.T) {
	p := newTestPSkipList(t)
	r1 := yid.NewRID(yid.NewPageID(1, 0), 0)
	r2 := yid.NewRID(yid.NewPageID(1, 0), 1)
	_, err := p.Insert(key8(1), r1)
	require.NoError(t, err)

	ok, err := p.Update(key8(1), r2)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := p.Search(key8(1))
	require.NoError(t, err)
	assert.Equal(t, r2, got)
}

func TestDeleteRemovesKey(t *testing.T) {
	p := newTestPSkipList(t)
	_, err := p.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0))
	require.NoError(t, err)

	ok, err := p.Delete(key8(1))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := p.Search(key8(1))
	require.NoError(t, err)
	assert.Equal(t, yid.InvalidRID, got)
}

func TestDeleteMissingFails(t *testing.T) {
	p := newTestPSkipList(t)
	ok, err := p.Delete(key8(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSortedListPropertyViaScan(t *testing.T) {
	p := newTestPSkipList(t)
	for i := uint64(1); i <= 200; i++ {
		ok, err := p.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i)))
		require.NoError(t, err)
		require.True(t, ok)
	}

	var out []ScanResult
	require.NoError(t, p.ForwardScan(nil, 200, true, &out))
	require.Len(t, out, 200)
	for i, r := range out {
		assert.Equal(t, key8(uint64(i+1)), r.Key)
	}
}

func TestForwardScanInclusiveAndExclusive(t *testing.T) {
	p := newTestPSkipList(t)
	for i := uint64(1); i <= 6; i++ {
		_, err := p.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i)))
		require.NoError(t, err)
	}

	var inc []ScanResult
	require.NoError(t, p.ForwardScan(key8(1), 10, true, &inc))
	require.Len(t, inc, 6)

	var exc []ScanResult
	require.NoError(t, p.ForwardScan(key8(3), 10, false, &exc))
	require.Len(t, exc, 3)
	assert.Equal(t, key8(4), exc[0].Key)
}

func TestForwardScanAbsentStartIncludesFromFirstGreater(t *testing.T) {
	p := newTestPSkipList(t)
	for i := uint64(1); i <= 6; i++ {
		_, err := p.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i)))
		require.NoError(t, err)
	}

	var out []ScanResult
	require.NoError(t, p.ForwardScan(key8(0), 30, false, &out))
	require.Len(t, out, 6)
	assert.Equal(t, key8(1), out[0].Key)
}
