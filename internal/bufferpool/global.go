package bufferpool

import "sync"

var (
	globalMu   sync.Mutex
	globalPool *Pool
)

// Initialize constructs the process-wide buffer pool. Must be called once
// before any Pin/Unpin; matches the source's explicit Initialize/
// Uninitialize lifecycle (no thread-safe lazy init is required or
// attempted).
func Initialize(pageCount int) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalPool = NewPool(pageCount)
}

// Get returns the process-wide buffer pool, or nil if Initialize has not
// been called.
func Get() *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalPool
}

// Uninitialize flushes every dirty frame and releases the global pool.
func Uninitialize() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		globalPool.FlushAll()
	}
	globalPool = nil
}
