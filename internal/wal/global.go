package wal

import "sync"

var (
	globalMu sync.Mutex
	global   *Manager
)

// Initialize opens the process-wide log manager. Matches
// internal/bufferpool's and internal/lockmgr's explicit
// Initialize/Get/Uninitialize lifecycle.
func Initialize(path string, bufKB int) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	m, err := Open(path, bufKB)
	if err != nil {
		return err
	}
	global = m
	return nil
}

// Get returns the process-wide log manager, or nil if Initialize has not
// been called.
func Get() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	return global
}

// Uninitialize flushes and closes the global log manager.
func Uninitialize() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global != nil {
		global.Close()
	}
	global = nil
}
