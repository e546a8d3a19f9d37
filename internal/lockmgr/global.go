package lockmgr

import "sync"

var (
	globalMu sync.Mutex
	global   *LockManager
)

// Initialize constructs the process-wide lock manager under policy. Matches
// internal/bufferpool's explicit Initialize/Get/Uninitialize lifecycle.
func Initialize(policy DeadlockPolicy) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = New(policy)
}

// Get returns the process-wide lock manager, or nil if Initialize has not
// been called.
func Get() *LockManager {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Uninitialize releases the global lock manager.
func Uninitialize() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
}
