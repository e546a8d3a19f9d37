// Package txn implements Transaction, the thin object tying a
// transaction's timestamp, held locks, and commit/abort procedure
// together over internal/lockmgr and internal/wal. Grounded on
// original_source/Lock/lock_manager.cc's Transaction::Commit/Abort
// stubs for the log-then-release-then-set-state ordering (the stub
// bodies themselves are empty TODOs, so spec.md §4.9's written
// procedure is what's implemented), and on the teacher's
// internal/heap/table.go for the atomic state-guard idiom.
package txn

import (
	"sync"
	"sync/atomic"

	"github.com/tuannm99/yase/internal/lockmgr"
	"github.com/tuannm99/yase/internal/wal"
	"github.com/tuannm99/yase/internal/yid"
)

// State is a transaction's position in its begin/commit/abort lifecycle.
type State int32

const (
	InProgress State = iota
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "InProgress"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// InvalidTimestamp is the reserved all-ones sentinel returned by Abort on
// failure.
const InvalidTimestamp = ^uint64(0)

var tsCounter atomic.Uint64

// Transaction is a single unit of work: a monotonic timestamp (lower is
// older, used by WaitDie), the set of RIDs it currently holds locks on,
// and a state machine advanced only by Commit/Abort.
type Transaction struct {
	timestamp uint64
	state     atomic.Int32

	mu    sync.Mutex
	locks map[yid.RID]bool

	lm  *lockmgr.LockManager
	log *wal.Manager
}

// Begin assigns a fresh timestamp from the process-wide counter and
// starts a transaction in state InProgress, bound to lm and log for its
// eventual Commit/Abort.
func Begin(lm *lockmgr.LockManager, log *wal.Manager) *Transaction {
	tx := &Transaction{
		timestamp: tsCounter.Add(1),
		locks:     make(map[yid.RID]bool),
		lm:        lm,
		log:       log,
	}
	tx.state.Store(int32(InProgress))
	return tx
}

// Timestamp returns tx's monotonic timestamp. Implements lockmgr.Txn.
func (tx *Transaction) Timestamp() uint64 { return tx.timestamp }

// GetTimestamp is the public accessor named in the engine's external
// interface; it returns the same value as Timestamp.
func (tx *Transaction) GetTimestamp() uint64 { return tx.timestamp }

// AddLock records that tx now holds a granted lock on rid. Implements
// lockmgr.Txn; called by LockManager.AcquireLock, not application code.
func (tx *Transaction) AddLock(rid yid.RID) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.locks[rid] = true
}

// RemoveLock forgets rid from tx's held-lock set. Implements lockmgr.Txn;
// called by LockManager.ReleaseLock, not application code.
func (tx *Transaction) RemoveLock(rid yid.RID) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	delete(tx.locks, rid)
}

// HasLock reports whether tx currently holds a granted lock on rid.
// Implements lockmgr.Txn.
func (tx *Transaction) HasLock(rid yid.RID) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.locks[rid]
}

func (tx *Transaction) heldLocks() []yid.RID {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	out := make([]yid.RID, 0, len(tx.locks))
	for rid := range tx.locks {
		out = append(out, rid)
	}
	return out
}

func (tx *Transaction) releaseAll() {
	for _, rid := range tx.heldLocks() {
		tx.lm.ReleaseLock(tx, rid)
	}
}

// IsInProgress reports whether tx has neither committed nor aborted.
func (tx *Transaction) IsInProgress() bool { return State(tx.state.Load()) == InProgress }

// IsCommitted reports whether tx has committed.
func (tx *Transaction) IsCommitted() bool { return State(tx.state.Load()) == Committed }

// IsAborted reports whether tx has aborted.
func (tx *Transaction) IsAborted() bool { return State(tx.state.Load()) == Aborted }

// Commit logs a Commit record, forces it (and everything before it)
// durable, logs an End record, releases every lock tx holds, and sets
// state Committed. Any step failing leaves tx's state untouched and
// returns false; the caller is expected to retry or abort.
func (tx *Transaction) Commit() bool {
	if !tx.IsInProgress() {
		return false
	}
	if !tx.log.LogCommit(tx.timestamp) {
		return false
	}
	if err := tx.log.Flush(); err != nil {
		return false
	}
	if !tx.log.LogEnd(tx.timestamp) {
		return false
	}
	tx.releaseAll()
	tx.state.Store(int32(Committed))
	return true
}

// Abort logs an Abort record, forces it durable, logs an End record,
// releases every lock tx holds, sets state Aborted, and returns tx's
// timestamp. Returns InvalidTimestamp on failure, leaving tx's state
// untouched.
func (tx *Transaction) Abort() uint64 {
	if !tx.IsInProgress() {
		return InvalidTimestamp
	}
	if !tx.log.LogAbort(tx.timestamp) {
		return InvalidTimestamp
	}
	if err := tx.log.Flush(); err != nil {
		return InvalidTimestamp
	}
	if !tx.log.LogEnd(tx.timestamp) {
		return InvalidTimestamp
	}
	tx.releaseAll()
	tx.state.Store(int32(Aborted))
	return tx.timestamp
}
