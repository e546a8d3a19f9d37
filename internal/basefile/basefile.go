// Package basefile owns raw page I/O on a single backing OS file: fixed
// PAGE_SIZE reads/writes at a page-number offset, nothing else. It knows
// nothing about slots, records, or directories — that's page/tablefile's
// job. Grounded on original_source/Storage/basefile.cc semantics
// (atomic file-id assignment starting at 1, atomic page-count, pwrite+fsync
// on flush) and the teacher's internal/storage/sm.go offset-based I/O idiom.
package basefile

import (
	"errors"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/tuannm99/yase/internal/page"
	"github.com/tuannm99/yase/internal/yid"
)

var nextFileID uint64 = 0 // incremented via atomic.AddUint64, first id is 1

var ErrShortIO = errors.New("basefile: short read or write")

// BaseFile is a single OS file addressed by fixed-size pages.
type BaseFile struct {
	id        uint16
	f         *os.File
	pageCount atomic.Uint32
}

// Open creates (or truncates) name and assigns it a fresh file id from the
// process-wide counter. I/O failures here are fatal: the engine cannot
// proceed without its backing files.
func Open(name string) *BaseFile {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o664)
	if err != nil {
		slog.Error("basefile: open failed", "name", name, "err", err)
		panic(err)
	}
	id := atomic.AddUint64(&nextFileID, 1)
	if id > 0xFFFF {
		panic("basefile: file id space exhausted")
	}
	return &BaseFile{id: uint16(id), f: f}
}

// ID returns this file's engine-wide unique id (the high 16 bits of every
// PageID it mints).
func (bf *BaseFile) ID() uint16 { return bf.id }

// PageCount returns the number of physical pages created so far.
func (bf *BaseFile) PageCount() uint32 { return bf.pageCount.Load() }

// CreatePage atomically reserves the next page number, writes a
// zero-filled page at that offset, and durably flushes it before
// returning its PageID. OS errors are fatal — without recovery the engine
// cannot maintain its invariants after one.
func (bf *BaseFile) CreatePage() yid.PageID {
	num := bf.pageCount.Add(1) - 1
	pid := yid.NewPageID(bf.id, num)

	buf := make([]byte, page.PageSize)
	if _, err := bf.f.WriteAt(buf, int64(num)*page.PageSize); err != nil {
		slog.Error("basefile: create page write failed", "file", bf.id, "page", num, "err", err)
		panic(err)
	}
	if err := bf.f.Sync(); err != nil {
		slog.Error("basefile: create page sync failed", "file", bf.id, "page", num, "err", err)
		panic(err)
	}
	return pid
}

// FlushPage durably writes buf (exactly page.PageSize bytes) to pid's
// offset. Returns false (not fatal) on an invalid pid or any I/O error.
func (bf *BaseFile) FlushPage(pid yid.PageID, buf []byte) bool {
	if !pid.Valid() || len(buf) != page.PageSize {
		return false
	}
	off := int64(pid.PageNum()) * page.PageSize
	n, err := bf.f.WriteAt(buf, off)
	if err != nil || n != page.PageSize {
		slog.Warn("basefile: flush page failed", "file", bf.id, "page", pid.PageNum(), "err", err)
		return false
	}
	if err := bf.f.Sync(); err != nil {
		slog.Warn("basefile: flush page sync failed", "file", bf.id, "page", pid.PageNum(), "err", err)
		return false
	}
	return true
}

// LoadPage reads pid's page into out (which must be exactly page.PageSize
// bytes). Returns false on an invalid pid or a short read.
func (bf *BaseFile) LoadPage(pid yid.PageID, out []byte) bool {
	if !pid.Valid() || len(out) != page.PageSize {
		return false
	}
	off := int64(pid.PageNum()) * page.PageSize
	n, err := bf.f.ReadAt(out, off)
	if err != nil || n != page.PageSize {
		slog.Warn("basefile: load page failed", "file", bf.id, "page", pid.PageNum(), "err", err)
		return false
	}
	return true
}

// Close closes the underlying OS file. I/O failure is fatal, matching the
// source's destructor contract.
func (bf *BaseFile) Close() {
	if err := bf.f.Close(); err != nil {
		slog.Error("basefile: close failed", "file", bf.id, "err", err)
		panic(err)
	}
}
