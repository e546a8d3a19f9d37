package bufferpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/yase/internal/page"
	"github.com/tuannm99/yase/internal/yid"
)

// memLoader is a FileLoader backed by an in-memory map, standing in for a
// basefile.BaseFile so bufferpool tests don't need real disk I/O.
type memLoader struct {
	mu    sync.Mutex
	pages map[yid.PageID][]byte
	// flushCount records how many times FlushPage succeeded per page.
	flushCount map[yid.PageID]int
}

func newMemLoader() *memLoader {
	return &memLoader{pages: make(map[yid.PageID][]byte), flushCount: make(map[yid.PageID]int)}
}

func (m *memLoader) LoadPage(pid yid.PageID, out []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.pages[pid]
	if !ok {
		buf = make([]byte, page.PageSize)
		m.pages[pid] = buf
	}
	copy(out, buf)
	return true
}

func (m *memLoader) FlushPage(pid yid.PageID, buf []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(buf))
	copy(cp, buf)
	m.pages[pid] = cp
	m.flushCount[pid]++
	return true
}

func newTestPool(t *testing.T, capacity int) (*Pool, *memLoader) {
	t.Helper()
	p := NewPool(capacity)
	ml := newMemLoader()
	p.RegisterFile(1, ml)
	return p, ml
}

func TestPinLoadsAndPins(t *testing.T) {
	p, _ := newTestPool(t, 4)
	pid := yid.NewPageID(1, 0)

	f := p.Pin(pid)
	require.NotNil(t, f)
	assert.Equal(t, pid, f.PageID)
	assert.Equal(t, uint16(1), f.PinCount)

	f2 := p.Pin(pid)
	require.Same(t, f, f2)
	assert.Equal(t, uint16(2), f.PinCount)
}

func TestPinInvalidPageReturnsNil(t *testing.T) {
	p, _ := newTestPool(t, 4)
	assert.Nil(t, p.Pin(yid.InvalidPageID))
}

func TestUnpinReturnsFrameToLRU(t *testing.T) {
	p, _ := newTestPool(t, 1)
	pid := yid.NewPageID(1, 0)

	f := p.Pin(pid)
	require.NotNil(t, f)
	p.Unpin(f, false)

	// With capacity 1, pinning a second distinct page must evict the first.
	pid2 := yid.NewPageID(1, 1)
	f2 := p.Pin(pid2)
	require.NotNil(t, f2)
	assert.Same(t, f, f2, "the single frame should have been reused")
	assert.Equal(t, pid2, f2.PageID)
}

func TestPinnedFrameIsNeverEvicted(t *testing.T) {
	p, _ := newTestPool(t, 1)
	pid := yid.NewPageID(1, 0)
	f := p.Pin(pid)
	require.NotNil(t, f)

	// Pool is full and the only frame is pinned: a miss on another page
	// must fail rather than evict the pinned frame.
	pid2 := yid.NewPageID(1, 1)
	f2 := p.Pin(pid2)
	assert.Nil(t, f2)
	assert.Equal(t, pid, f.PageID, "pinned frame must be untouched")
}

func TestDirtyFrameFlushedExactlyOnceOnEviction(t *testing.T) {
	p, ml := newTestPool(t, 1)
	pid := yid.NewPageID(1, 0)
	f := p.Pin(pid)
	require.NotNil(t, f)
	f.Data[0] = 0xAB
	p.Unpin(f, true)

	pid2 := yid.NewPageID(1, 1)
	f2 := p.Pin(pid2)
	require.NotNil(t, f2)

	assert.Equal(t, 1, ml.flushCount[pid])
	assert.Equal(t, byte(0xAB), ml.pages[pid][0])

	// The evicted pid must no longer be resident.
	_, stillResident := p.pageMap[pid]
	assert.False(t, stillResident)
}

func TestStrictLRUOrderingNoSecondChance(t *testing.T) {
	p, _ := newTestPool(t, 2)
	a := yid.NewPageID(1, 0)
	b := yid.NewPageID(1, 1)
	c := yid.NewPageID(1, 2)

	fa := p.Pin(a)
	fb := p.Pin(b)
	p.Unpin(fa, false) // a unpinned first -> a is the older entry
	p.Unpin(fb, false) // b unpinned second -> b is newer

	// Pinning c must evict a, the frame unpinned first, and leave b
	// resident.
	fc := p.Pin(c)
	require.NotNil(t, fc)
	assert.Equal(t, c, fc.PageID)
	assert.Same(t, fa, fc, "the least-recently-unpinned frame (a) must be the one reused")
}

func TestFlushAllClearsDirtyBits(t *testing.T) {
	p, ml := newTestPool(t, 2)
	pid := yid.NewPageID(1, 0)
	f := p.Pin(pid)
	f.Data[0] = 7
	p.Unpin(f, true)

	p.FlushAll()
	assert.Equal(t, 1, ml.flushCount[pid])
	assert.False(t, f.IsDirty)
}

func TestGlobalLifecycle(t *testing.T) {
	Initialize(8)
	defer Uninitialize()
	assert.NotNil(t, Get())
	assert.Equal(t, 8, Get().Capacity())
}
