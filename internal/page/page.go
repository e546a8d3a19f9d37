// Package page implements the two fixed-size, PAGE_SIZE-byte on-disk page
// layouts the engine uses: DataPage (slotted fixed-size records plus a
// tail-growing allocation bitmap) and DirectoryPage (a dense array of
// per-data-page allocation entries). Both are thin views over a caller-owned
// []byte of exactly PageSize bytes — no copying, no internal buffer — so
// bufferpool.Frame can hand the same backing array straight to a BaseFile.
package page

import "github.com/tuannm99/yase/internal/bx"

// PageSize is the engine-wide fixed page size. Every buffer passed to
// basefile/bufferpool/page must be exactly this many bytes.
const PageSize = 8192

const (
	// DataPage metadata occupies the last 4 bytes: record_count, record_size.
	metaSize        = 4
	recordCountOff  = PageSize - metaSize
	recordSizeOff   = PageSize - metaSize + 2
	bitmapBaseIndex = PageSize - metaSize - 1 // byte holding bit for slot 0
)

// DataPage is a slotted page: fixed-size records packed from the front,
// an allocation bitmap packed from the back (growing toward the middle),
// and a 4-byte trailer holding record_count and record_size.
type DataPage struct {
	buf []byte
}

// NewDataPage wraps buf (which must be len==PageSize and already
// zero-filled, e.g. fresh off BaseFile.CreatePage) as an empty DataPage
// sized for recordSize-byte records.
func NewDataPage(buf []byte, recordSize uint16) *DataPage {
	if len(buf) != PageSize {
		panic("page: DataPage buffer must be exactly PageSize bytes")
	}
	p := &DataPage{buf: buf}
	bx.PutU16At(p.buf, recordCountOff, 0)
	bx.PutU16At(p.buf, recordSizeOff, recordSize)
	return p
}

// WrapDataPage views an already-initialized buffer (loaded from disk) as a
// DataPage without touching its contents.
func WrapDataPage(buf []byte) *DataPage {
	if len(buf) != PageSize {
		panic("page: DataPage buffer must be exactly PageSize bytes")
	}
	return &DataPage{buf: buf}
}

// Bytes returns the backing buffer (for BufferPool/BaseFile plumbing).
func (p *DataPage) Bytes() []byte { return p.buf }

// RecordSize returns the fixed record size this page was initialized with.
func (p *DataPage) RecordSize() uint16 { return bx.U16At(p.buf, recordSizeOff) }

// RecordCount returns the number of currently-allocated slots.
func (p *DataPage) RecordCount() uint16 { return bx.U16At(p.buf, recordCountOff) }

func (p *DataPage) setRecordCount(v uint16) { bx.PutU16At(p.buf, recordCountOff, v) }

// Capacity computes the maximum number of records of recordSize bytes a
// single DataPage can hold, per the engine's fixed bitmap+slots layout:
// floor(((PageSize-4)*8) / (recordSize*8 + 1)).
func Capacity(recordSize uint16) int {
	if recordSize == 0 {
		return 0
	}
	return ((PageSize - metaSize) * 8) / (int(recordSize)*8 + 1)
}

// Capacity returns this page's capacity for its configured record size.
func (p *DataPage) Capacity() int { return Capacity(p.RecordSize()) }

func (p *DataPage) bitmapAddr(slot int) (byteIdx int, bitPos uint) {
	return bitmapBaseIndex - slot/8, uint(slot % 8)
}

func (p *DataPage) bitSet(slot int) bool {
	byteIdx, bitPos := p.bitmapAddr(slot)
	return p.buf[byteIdx]&(1<<bitPos) != 0
}

func (p *DataPage) setBit(slot int, v bool) {
	byteIdx, bitPos := p.bitmapAddr(slot)
	if v {
		p.buf[byteIdx] |= 1 << bitPos
	} else {
		p.buf[byteIdx] &^= 1 << bitPos
	}
}

func (p *DataPage) slotOffset(slot int) int {
	return slot * int(p.RecordSize())
}

// Insert copies record (which must be exactly RecordSize() bytes) into the
// first free slot, returning the slot number. ok is false if the page has
// no free slot (caller must allocate a new page and retry there).
func (p *DataPage) Insert(record []byte) (slot int, ok bool) {
	rs := int(p.RecordSize())
	if len(record) != rs {
		panic("page: record size mismatch")
	}
	cap := p.Capacity()
	for i := 0; i < cap; i++ {
		if !p.bitSet(i) {
			off := p.slotOffset(i)
			copy(p.buf[off:off+rs], record)
			p.setBit(i, true)
			p.setRecordCount(p.RecordCount() + 1)
			return i, true
		}
	}
	return -1, false
}

// Read returns a copy of the record stored at slot, or ok==false if the
// slot is out of range or not allocated.
func (p *DataPage) Read(slot int) (record []byte, ok bool) {
	if slot < 0 || slot >= p.Capacity() || !p.bitSet(slot) {
		return nil, false
	}
	rs := int(p.RecordSize())
	off := p.slotOffset(slot)
	out := make([]byte, rs)
	copy(out, p.buf[off:off+rs])
	return out, true
}

// Update overwrites the record at slot in place. ok is false if the slot is
// out of range, not allocated, or record has the wrong length.
func (p *DataPage) Update(slot int, record []byte) (ok bool) {
	rs := int(p.RecordSize())
	if len(record) != rs {
		return false
	}
	if slot < 0 || slot >= p.Capacity() || !p.bitSet(slot) {
		return false
	}
	off := p.slotOffset(slot)
	copy(p.buf[off:off+rs], record)
	return true
}

// Delete frees slot, making it eligible for reuse by a later Insert. ok is
// false if the slot is out of range or already free.
func (p *DataPage) Delete(slot int) (ok bool) {
	if slot < 0 || slot >= p.Capacity() || !p.bitSet(slot) {
		return false
	}
	p.setBit(slot, false)
	p.setRecordCount(p.RecordCount() - 1)
	return true
}

// IsAllocated reports whether slot currently holds a live record.
func (p *DataPage) IsAllocated(slot int) bool {
	if slot < 0 || slot >= p.Capacity() {
		return false
	}
	return p.bitSet(slot)
}
