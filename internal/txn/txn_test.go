package txn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/yase/internal/lockmgr"
	"github.com/tuannm99/yase/internal/wal"
	"github.com/tuannm99/yase/internal/yid"
)

func newTestDeps(t *testing.T) (*lockmgr.LockManager, *wal.Manager) {
	t.Helper()
	lm := lockmgr.New(lockmgr.WaitDie)
	log, err := wal.Open(filepath.Join(t.TempDir(), "wal.log"), 64)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return lm, log
}

func rid(n uint32) yid.RID {
	return yid.NewRID(yid.NewPageID(1, n), 0)
}

func TestBeginAssignsIncreasingTimestamps(t *testing.T) {
	lm, log := newTestDeps(t)
	t1 := Begin(lm, log)
	t2 := Begin(lm, log)
	assert.Less(t, t1.Timestamp(), t2.Timestamp())
	assert.True(t, t1.IsInProgress())
}

func TestCommitReleasesLocksAndSetsState(t *testing.T) {
	lm, log := newTestDeps(t)
	tx := Begin(lm, log)

	require.True(t, lm.AcquireLock(tx, rid(1), lockmgr.XL))
	require.True(t, tx.HasLock(rid(1)))

	assert.True(t, tx.Commit())
	assert.True(t, tx.IsCommitted())
	assert.False(t, tx.HasLock(rid(1)))

	other := Begin(lm, log)
	assert.True(t, lm.AcquireLock(other, rid(1), lockmgr.XL))
}

func TestCommitForcesDurability(t *testing.T) {
	lm, log := newTestDeps(t)
	tx := Begin(lm, log)

	require.True(t, log.LogUpdate(rid(1), make([]byte, 57)))
	preCommitLSN := log.GetCurrentLSN()
	assert.Equal(t, uint64(0), log.GetDurableLSN())

	require.True(t, tx.Commit())
	assert.GreaterOrEqual(t, log.GetDurableLSN(), preCommitLSN)
}

func TestAbortReleasesLocksAndReturnsTimestamp(t *testing.T) {
	lm, log := newTestDeps(t)
	tx := Begin(lm, log)

	require.True(t, lm.AcquireLock(tx, rid(1), lockmgr.SH))
	ts := tx.Abort()

	assert.Equal(t, tx.Timestamp(), ts)
	assert.True(t, tx.IsAborted())
	assert.False(t, tx.HasLock(rid(1)))
}

func TestDoubleCommitFails(t *testing.T) {
	lm, log := newTestDeps(t)
	tx := Begin(lm, log)
	require.True(t, tx.Commit())
	assert.False(t, tx.Commit())
}

func TestCommitAfterAbortFails(t *testing.T) {
	lm, log := newTestDeps(t)
	tx := Begin(lm, log)
	tx.Abort()
	assert.False(t, tx.Commit())
}

func TestAbortAfterCommitReturnsInvalidTimestamp(t *testing.T) {
	lm, log := newTestDeps(t)
	tx := Begin(lm, log)
	tx.Commit()
	assert.Equal(t, InvalidTimestamp, tx.Abort())
}
