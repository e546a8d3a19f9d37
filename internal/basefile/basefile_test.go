package basefile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/yase/internal/page"
	"github.com/tuannm99/yase/internal/yid"
)

func TestCreateFlushLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bf := Open(filepath.Join(dir, "data.db"))
	defer bf.Close()

	pid := bf.CreatePage()
	require.True(t, pid.Valid())
	assert.Equal(t, uint32(0), pid.PageNum())

	buf := make([]byte, page.PageSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	require.True(t, bf.FlushPage(pid, buf))

	out := make([]byte, page.PageSize)
	require.True(t, bf.LoadPage(pid, out))
	assert.Equal(t, buf, out)
}

func TestLoadInvalidPageReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	bf := Open(filepath.Join(dir, "data.db"))
	defer bf.Close()

	out := make([]byte, page.PageSize)
	assert.False(t, bf.LoadPage(yid.InvalidPageID, out))
}

func TestFlushInvalidPageReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	bf := Open(filepath.Join(dir, "data.db"))
	defer bf.Close()

	buf := make([]byte, page.PageSize)
	assert.False(t, bf.FlushPage(yid.InvalidPageID, buf))
}

func TestEachFileGetsAMonotonicID(t *testing.T) {
	dir := t.TempDir()
	bf1 := Open(filepath.Join(dir, "a.db"))
	defer bf1.Close()
	bf2 := Open(filepath.Join(dir, "b.db"))
	defer bf2.Close()

	assert.NotEqual(t, bf1.ID(), bf2.ID())
	assert.Greater(t, bf2.ID(), bf1.ID())
}

func TestPageCountIncrementsPerCreate(t *testing.T) {
	dir := t.TempDir()
	bf := Open(filepath.Join(dir, "data.db"))
	defer bf.Close()

	bf.CreatePage()
	bf.CreatePage()
	bf.CreatePage()
	assert.Equal(t, uint32(3), bf.PageCount())
}
