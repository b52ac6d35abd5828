package pager

import (
	"encoding/binary"
	"fmt"
)

// header field offsets within a page buffer.
const (
	offNumberOfRecords = 0  // u16
	offDataOffset      = 2  // u32
	offPageID          = 6  // i32
	offSlotsByteLength = 10 // i32
)

// Slot describes one record entry in a page's slot directory.
type Slot struct {
	Deleted      bool
	PageOffset   uint32 // offset within the page's data region
	RecordLength uint16 // allocated capacity of the slot
}

// Page is an in-memory, mutable view of one fixed-size slotted page. The
// header and data region live in a single contiguous buffer; slots are
// read and written directly against that buffer rather than cached in a
// side structure, so Serialize is simply "return the buffer."
type Page struct {
	layout *Layout
	buf    []byte
}

// NewPage returns an empty page: no slots, data_offset at the top of the
// data region, page_id unassigned (0).
func NewPage(layout *Layout) *Page {
	p := &Page{layout: layout, buf: make([]byte, layout.PageSize())}
	p.setDataOffset(uint32(layout.DataSize()))
	return p
}

// SetPageID assigns the page's id. It may only be called once, before the
// page is first written to its Store.
func (p *Page) SetPageID(id int32) error {
	if p.PageID() != 0 {
		return fmt.Errorf("pager: page id already assigned (%d)", p.PageID())
	}
	binary.BigEndian.PutUint32(p.buf[offPageID:], uint32(id))
	return nil
}

// PageID returns the page's assigned id, or 0 if unassigned.
func (p *Page) PageID() int32 {
	return int32(binary.BigEndian.Uint32(p.buf[offPageID:]))
}

// NumberOfRecords returns the count of live (non-deleted) slots.
func (p *Page) NumberOfRecords() uint16 {
	return binary.BigEndian.Uint16(p.buf[offNumberOfRecords:])
}

func (p *Page) setNumberOfRecords(n uint16) {
	binary.BigEndian.PutUint16(p.buf[offNumberOfRecords:], n)
}

// DataOffset returns the page-local free-space pointer: the offset within
// the data region of the first byte of the most recently inserted record.
func (p *Page) DataOffset() uint32 {
	return binary.BigEndian.Uint32(p.buf[offDataOffset:])
}

func (p *Page) setDataOffset(off uint32) {
	binary.BigEndian.PutUint32(p.buf[offDataOffset:], off)
}

// SlotsByteLength returns len(slots) * SlotSize.
func (p *Page) SlotsByteLength() int32 {
	return int32(binary.BigEndian.Uint32(p.buf[offSlotsByteLength:]))
}

func (p *Page) setSlotsByteLength(n int32) {
	binary.BigEndian.PutUint32(p.buf[offSlotsByteLength:], uint32(n))
}

// slotCount returns the number of slot entries, including deleted ones.
func (p *Page) slotCount() int {
	return int(p.SlotsByteLength()) / SlotSize
}

// dataRegion returns the page's data region: everything past the header.
func (p *Page) dataRegion() []byte {
	return p.buf[PageHeaderSize:]
}

func (p *Page) slotAt(i int) Slot {
	off := i * SlotSize
	region := p.dataRegion()
	return Slot{
		Deleted:      region[off] != 0,
		PageOffset:   binary.BigEndian.Uint32(region[off+1:]),
		RecordLength: binary.BigEndian.Uint16(region[off+5:]),
	}
}

func (p *Page) setSlotAt(i int, s Slot) {
	off := i * SlotSize
	region := p.dataRegion()
	if s.Deleted {
		region[off] = 1
	} else {
		region[off] = 0
	}
	binary.BigEndian.PutUint32(region[off+1:], s.PageOffset)
	binary.BigEndian.PutUint16(region[off+5:], s.RecordLength)
}

// Slot returns a copy of the slot at index i.
func (p *Page) Slot(i int) Slot { return p.slotAt(i) }

// SlotCount returns the number of slot entries, including deleted ones.
func (p *Page) SlotCount() int { return p.slotCount() }

// contiguousFree is the space between the end of the slot directory and
// data_offset, reserving room for one more slot entry.
func (p *Page) contiguousFree() int {
	slotsBytes := int(p.SlotsByteLength())
	free := int(p.DataOffset()) - slotsBytes - SlotSize
	if free < 0 {
		free = 0
	}
	return free
}

// fragmentedFree is the capacity of the largest deleted slot, 0 if none.
func (p *Page) fragmentedFree() int {
	max := 0
	for i := 0; i < p.slotCount(); i++ {
		s := p.slotAt(i)
		if s.Deleted && int(s.RecordLength) > max {
			max = int(s.RecordLength)
		}
	}
	return max
}

// SpaceRemaining is the largest record this page can currently accept.
func (p *Page) SpaceRemaining() int {
	c := p.contiguousFree()
	f := p.fragmentedFree()
	if f > c {
		return f
	}
	return c
}

// CanInsert reports whether data can be inserted into this page.
func (p *Page) CanInsert(data []byte) bool {
	if len(data) > MaxRecordLength {
		return false
	}
	return len(data) <= p.SpaceRemaining()
}

// findReusableSlot returns the index of the first deleted slot whose
// record_length is at least L, or -1 if none exists.
func (p *Page) findReusableSlot(l int) int {
	for i := 0; i < p.slotCount(); i++ {
		s := p.slotAt(i)
		if s.Deleted && int(s.RecordLength) >= l {
			return i
		}
	}
	return -1
}

// InsertRecord stores data in this page, reusing a deleted slot of
// sufficient capacity if one exists, otherwise growing the heap.
func (p *Page) InsertRecord(data []byte) (int, error) {
	l := len(data)
	if !p.CanInsert(data) {
		return -1, &InsertRowError{
			PageID:   p.PageID(),
			Needed:   l,
			Have:     p.SpaceRemaining(),
			TooLarge: l > MaxRecordLength,
		}
	}

	region := p.dataRegion()

	if i := p.findReusableSlot(l); i >= 0 {
		s := p.slotAt(i)
		copy(region[s.PageOffset:int(s.PageOffset)+l], data)
		s.Deleted = false
		s.RecordLength = uint16(l)
		p.setSlotAt(i, s)
		p.setNumberOfRecords(p.NumberOfRecords() + 1)
		return i, nil
	}

	newOffset := int(p.DataOffset()) - l
	copy(region[newOffset:newOffset+l], data)
	p.setDataOffset(uint32(newOffset))

	i := p.slotCount()
	p.setSlotAt(i, Slot{Deleted: false, PageOffset: uint32(newOffset), RecordLength: uint16(l)})
	p.setSlotsByteLength(p.SlotsByteLength() + SlotSize)
	p.setNumberOfRecords(p.NumberOfRecords() + 1)
	return i, nil
}

// DeleteRecord marks slot i as deleted, making its capacity eligible for
// reuse by a future insert. It does not reclaim the slot entry itself.
func (p *Page) DeleteRecord(i int) {
	s := p.slotAt(i)
	s.Deleted = true
	p.setSlotAt(i, s)
	if n := p.NumberOfRecords(); n > 0 {
		p.setNumberOfRecords(n - 1)
	}
}

// RecordIterator yields the bytes of each non-deleted record in slot-index
// order. It borrows the page's buffer; any mutation invalidates a view
// already returned by Next.
type RecordIterator struct {
	page *Page
	next int
}

// RecordIterator returns a fresh forward iterator over this page's live
// records.
func (p *Page) RecordIterator() *RecordIterator {
	return &RecordIterator{page: p}
}

// Next returns the next live record, or ok=false once exhausted.
func (it *RecordIterator) Next() (slotIndex int, data []byte, ok bool) {
	region := it.page.dataRegion()
	for it.next < it.page.slotCount() {
		i := it.next
		it.next++
		s := it.page.slotAt(i)
		if s.Deleted {
			continue
		}
		return i, region[s.PageOffset : int(s.PageOffset)+int(s.RecordLength)], true
	}
	return 0, nil, false
}

// Serialize returns the page's canonical on-disk representation: exactly
// layout.PageSize() bytes. The returned slice is the page's live buffer,
// not a copy — callers that need an independent copy should clone it.
func (p *Page) Serialize() []byte {
	return p.buf
}

// DeserializePage reconstructs a Page from exactly layout.PageSize() bytes
// previously produced by Serialize.
func DeserializePage(buf []byte, layout *Layout) (*Page, error) {
	if len(buf) != layout.PageSize() {
		return nil, &ReadPageError{Reason: "page buffer size mismatch"}
	}
	owned := make([]byte, len(buf))
	copy(owned, buf)
	return &Page{layout: layout, buf: owned}, nil
}
