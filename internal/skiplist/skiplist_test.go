package skiplist

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/yase/internal/yid"
)

func key8(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

func TestInsertSearchRoundTrip(t *testing.T) {
	sl := New(8)
	require.True(t, sl.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0)))
	rid := sl.Search(key8(1))
	assert.True(t, rid.Valid())
}

func TestInsertDuplicateFails(t *testing.T) {
	sl := New(8)
	require.True(t, sl.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0)))
	assert.False(t, sl.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 1)))
}

func TestSearchMissingReturnsInvalid(t *testing.T) {
	sl := New(8)
	assert.Equal(t, yid.InvalidRID, sl.Search(key8(42)))
}

func TestUpdateOverwritesPayload(t *testing.T) {
	sl := New(8)
	r1 := yid.NewRID(yid.NewPageID(1, 0), 0)
	r2 := yid.NewRID(yid.NewPageID(1, 0), 1)
	require.True(t, sl.Insert(key8(1), r1))
	require.True(t, sl.Update(key8(1), r2))
	assert.Equal(t, r2, sl.Search(key8(1)))
}

func TestUpdateMissingFails(t *testing.T) {
	sl := New(8)
	assert.False(t, sl.Update(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0)))
}

func TestDeleteRemovesKey(t *testing.T) {
	sl := New(8)
	require.True(t, sl.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0)))
	require.True(t, sl.Delete(key8(1)))
	assert.Equal(t, yid.InvalidRID, sl.Search(key8(1)))
}

func TestDeleteMissingFails(t *testing.T) {
	sl := New(8)
	assert.False(t, sl.Delete(key8(1)))
}

func TestSortedListProperty(t *testing.T) {
	sl := New(8)
	for i := uint64(1); i <= 1024; i++ {
		require.True(t, sl.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i))))
	}

	// Keys are ordered lexicographically over their bytes, so each key on
	// level 0 must compare strictly greater than the one before it.
	cur := sl.head.next[0]
	count := 0
	var prev []byte
	for cur != sl.tail {
		v := cur.key
		if count > 0 {
			assert.Greater(t, bytes.Compare(v, prev), 0)
		}
		prev = v
		count++
		cur = cur.next[0]
	}
	assert.Equal(t, 1024, count)
}

func TestForwardScanInclusive(t *testing.T) {
	sl := New(8)
	for i := uint64(1); i <= 6; i++ {
		require.True(t, sl.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i))))
	}

	var out []ScanResult
	sl.ForwardScan(key8(1), 10, true, &out)
	require.Len(t, out, 6)
	for i, r := range out {
		assert.Equal(t, key8(uint64(i+1)), r.Key)
	}
}

func TestForwardScanNonInclusiveAbsentStart(t *testing.T) {
	sl := New(8)
	for i := uint64(1); i <= 6; i++ {
		require.True(t, sl.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i))))
	}

	var out []ScanResult
	sl.ForwardScan(key8(0), 30, false, &out)
	require.Len(t, out, 6)
	assert.Equal(t, key8(1), out[0].Key)
}

func TestForwardScanNonInclusiveExistingStart(t *testing.T) {
	sl := New(8)
	for i := uint64(1); i <= 6; i++ {
		require.True(t, sl.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i))))
	}

	var out []ScanResult
	sl.ForwardScan(key8(3), 10, false, &out)
	require.Len(t, out, 3)
	assert.Equal(t, key8(4), out[0].Key)
	assert.Equal(t, key8(6), out[2].Key)
}

func TestForwardScanNilOutOrZeroNkeysNoPanic(t *testing.T) {
	sl := New(8)
	require.True(t, sl.Insert(key8(1), yid.NewRID(yid.NewPageID(1, 0), 0)))
	sl.ForwardScan(key8(1), 10, true, nil)

	var out []ScanResult
	sl.ForwardScan(key8(1), 0, true, &out)
	assert.Empty(t, out)
}

func TestForwardScanNilStartKeyFromFirstNode(t *testing.T) {
	sl := New(8)
	for i := uint64(1); i <= 3; i++ {
		require.True(t, sl.Insert(key8(i), yid.NewRID(yid.NewPageID(1, 0), uint32(i))))
	}

	var out []ScanResult
	sl.ForwardScan(nil, 10, true, &out)
	require.Len(t, out, 3)
	assert.Equal(t, key8(1), out[0].Key)
}
