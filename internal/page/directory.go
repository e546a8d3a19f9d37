package page

import "github.com/tuannm99/yase/internal/bx"

// EntrySize is the on-disk size of one directory Entry: a uint16
// free-slot count plus two 1-byte flags.
const EntrySize = 4

// EntriesPerPage is the number of directory entries packed into one
// PageSize-byte DirectoryPage. PageSize must be an exact multiple of
// EntrySize for this to divide evenly, which it is (8192 / 4 = 2048).
const EntriesPerPage = PageSize / EntrySize

func init() {
	if PageSize%EntrySize != 0 {
		panic("page: PageSize must be an exact multiple of EntrySize")
	}
}

// Entry describes the allocation state of one data page.
type Entry struct {
	FreeSlots uint16
	Allocated bool
	Created   bool
}

// DirectoryPage is a dense array of Entry, one per data page number; the
// n-th entry (counting across all directory pages) describes data page n.
type DirectoryPage struct {
	buf []byte
}

// NewDirectoryPage wraps a zero-filled PageSize buffer (all entries start
// as {FreeSlots:0, Allocated:false, Created:false}).
func NewDirectoryPage(buf []byte) *DirectoryPage {
	if len(buf) != PageSize {
		panic("page: DirectoryPage buffer must be exactly PageSize bytes")
	}
	return &DirectoryPage{buf: buf}
}

// WrapDirectoryPage views an already-initialized buffer (loaded from disk)
// as a DirectoryPage without touching its contents.
func WrapDirectoryPage(buf []byte) *DirectoryPage {
	if len(buf) != PageSize {
		panic("page: DirectoryPage buffer must be exactly PageSize bytes")
	}
	return &DirectoryPage{buf: buf}
}

// Bytes returns the backing buffer.
func (d *DirectoryPage) Bytes() []byte { return d.buf }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Entry returns the idx-th entry on this page (idx must be in
// [0, EntriesPerPage)).
func (d *DirectoryPage) Entry(idx int) Entry {
	off := idx * EntrySize
	return Entry{
		FreeSlots: bx.U16At(d.buf, off),
		Allocated: d.buf[off+2] != 0,
		Created:   d.buf[off+3] != 0,
	}
}

// SetEntry writes e into slot idx on this page.
func (d *DirectoryPage) SetEntry(idx int, e Entry) {
	off := idx * EntrySize
	bx.PutU16At(d.buf, off, e.FreeSlots)
	d.buf[off+2] = boolByte(e.Allocated)
	d.buf[off+3] = boolByte(e.Created)
}
