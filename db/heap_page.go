package db

import (
	"bytes"
)

// DefaultPageSize is the default page size in bytes.
const DefaultPageSize = 4096

// heapPage implements a slotted-page format:
//
//	numSlots = floor(pageSize*8 / (tupleSize*8 + 1))
//	headerBytes = ceil(numSlots / 8)         -- occupancy bitmap
//	then numSlots * tupleSize payload bytes, empty slots zero-filled
//	then zero padding out to pageSize
//
// Every slot, occupied or not, has a fixed position in the bitmap and
// payload area, so a tuple's RecordID stays valid across a flush and
// reload: a page write never has to renumber the tuples still on it.
type heapPage struct {
	id       PageID
	schema   *Schema
	pageSize int

	numSlots   int
	tupleSize  int
	headerSize int

	occupied []bool
	tuples   []*Tuple

	dirtyBy      *TransactionID
	beforeImage  []byte
}

// tupleSizeFor returns the fixed serialized width of a tuple with the
// given schema.
func tupleSizeFor(schema *Schema) int {
	return schema.Size()
}

// slotsPerPage computes how many fixed-width tuples fit on a page once
// the occupancy bitmap's own size (one bit per slot, rounded up to a
// byte) is taken into account.
func slotsPerPage(pageSize, tupleSize int) int {
	if tupleSize <= 0 {
		return 0
	}
	return (pageSize * 8) / (tupleSize*8 + 1)
}

func headerBytesFor(numSlots int) int {
	return (numSlots + 7) / 8
}

// newEmptyHeapPage builds a fresh, all-empty page for id using schema
// and pageSize.
func newEmptyHeapPage(id PageID, schema *Schema, pageSize int) *heapPage {
	tupleSize := tupleSizeFor(schema)
	numSlots := slotsPerPage(pageSize, tupleSize)
	p := &heapPage{
		id:         id,
		schema:     schema,
		pageSize:   pageSize,
		numSlots:   numSlots,
		tupleSize:  tupleSize,
		headerSize: headerBytesFor(numSlots),
		occupied:   make([]bool, numSlots),
		tuples:     make([]*Tuple, numSlots),
	}
	p.setBeforeImage()
	return p
}

// readHeapPage parses a page of raw bytes (exactly pageSize long) into
// a heapPage.
func readHeapPage(id PageID, schema *Schema, pageSize int, data []byte) (*heapPage, error) {
	if len(data) != pageSize {
		return nil, newError(DbError, "heap page %s: expected %d bytes, got %d", id, pageSize, len(data))
	}
	p := newEmptyHeapPage(id, schema, pageSize)

	for slot := 0; slot < p.numSlots; slot++ {
		byteIdx := slot / 8
		bitIdx := uint(slot % 8)
		if data[byteIdx]&(1<<bitIdx) != 0 {
			p.occupied[slot] = true
		}
	}

	r := bytes.NewReader(data[p.headerSize:])
	for slot := 0; slot < p.numSlots; slot++ {
		slotBytes := make([]byte, p.tupleSize)
		if _, err := r.Read(slotBytes); err != nil {
			return nil, wrapError(IoError, err, "heap page %s: read slot %d", id, slot)
		}
		if !p.occupied[slot] {
			continue
		}
		slotReader := bytes.NewReader(slotBytes)
		t, err := ReadTuple(slotReader, schema)
		if err != nil {
			return nil, wrapError(DbError, err, "heap page %s: decode slot %d", id, slot)
		}
		rid := RecordID{PageID: id, Slot: slot}
		t.Rid = &rid
		p.tuples[slot] = t
	}
	p.setBeforeImage()
	return p, nil
}

// getPageData serializes the page to exactly pageSize bytes: header
// bitmap, then numSlots*tupleSize payload bytes (zero-filled for empty
// slots), then zero padding.
func (p *heapPage) getPageData() ([]byte, error) {
	buf := new(bytes.Buffer)
	header := make([]byte, p.headerSize)
	for slot := 0; slot < p.numSlots; slot++ {
		if p.occupied[slot] {
			header[slot/8] |= 1 << uint(slot%8)
		}
	}
	buf.Write(header)

	for slot := 0; slot < p.numSlots; slot++ {
		slotBuf := new(bytes.Buffer)
		if p.occupied[slot] {
			if err := p.tuples[slot].WriteTo(slotBuf); err != nil {
				return nil, err
			}
		}
		padded := make([]byte, p.tupleSize)
		copy(padded, slotBuf.Bytes())
		buf.Write(padded)
	}

	out := buf.Bytes()
	if len(out) < p.pageSize {
		out = append(out, make([]byte, p.pageSize-len(out))...)
	}
	return out, nil
}

// insertTuple resets t's schema to the page's schema, picks the first
// empty slot, stores t, and sets t.Rid = (pageId, slot). Fails with
// DbError when the page is full.
func (p *heapPage) insertTuple(t *Tuple) error {
	if !t.Schema.Equals(p.schema) {
		return newError(DbError, "heap page %s: tuple schema does not match page schema", p.id)
	}
	t.Schema = p.schema
	for slot := 0; slot < p.numSlots; slot++ {
		if !p.occupied[slot] {
			stored := &Tuple{Schema: p.schema, fields: append([]Field(nil), tupleFieldsOf(t)...)}
			rid := RecordID{PageID: p.id, Slot: slot}
			stored.Rid = &rid
			p.occupied[slot] = true
			p.tuples[slot] = stored
			t.Rid = &rid
			return nil
		}
	}
	return newError(DbError, "heap page %s: full, no empty slot", p.id)
}

// deleteTuple removes the tuple named by t.Rid from the page, clearing
// its header bit and its in-memory RecordID. Fails with DbError if the
// slot is absent, out of range, or already empty.
func (p *heapPage) deleteTuple(t *Tuple) error {
	if t.Rid == nil {
		return newError(DbError, "tuple has no record id")
	}
	if t.Rid.PageID != p.id {
		return newError(DbError, "tuple record id %s does not belong to page %s", t.Rid, p.id)
	}
	slot := t.Rid.Slot
	if slot < 0 || slot >= p.numSlots || !p.occupied[slot] {
		return newError(DbError, "heap page %s: slot %d is not occupied", p.id, slot)
	}
	p.occupied[slot] = false
	p.tuples[slot] = nil
	t.Rid = nil
	return nil
}

// getNumEmptySlots returns the number of unoccupied slots on the page.
func (p *heapPage) getNumEmptySlots() int {
	n := 0
	for _, occ := range p.occupied {
		if !occ {
			n++
		}
	}
	return n
}

func (p *heapPage) isSlotUsed(i int) bool {
	if i < 0 || i >= p.numSlots {
		return false
	}
	return p.occupied[i]
}

// iterator returns the occupied tuples in ascending slot order.
func (p *heapPage) iterator() []*Tuple {
	out := make([]*Tuple, 0, p.numSlots-p.getNumEmptySlots())
	for slot := 0; slot < p.numSlots; slot++ {
		if p.occupied[slot] {
			out = append(out, p.tuples[slot])
		}
	}
	return out
}

// setBeforeImage captures the page's current serialized bytes as its
// before image, to be used for recovery-adjacent tooling.
func (p *heapPage) setBeforeImage() {
	data, err := p.getPageData()
	if err != nil {
		// getPageData cannot fail on a well-formed in-memory page; if it
		// ever does, keep the previous before image rather than panic.
		return
	}
	p.beforeImage = data
}

func (p *heapPage) getBeforeImage() []byte {
	return p.beforeImage
}

// markDirty records (or clears) the transaction that last modified the
// page. Storing the tid itself, rather than a bool, lets BufferPool
// attribute a dirty page to its owning transaction at commit/abort
// time.
func (p *heapPage) markDirty(tid *TransactionID) {
	p.dirtyBy = tid
}

func (p *heapPage) isDirty() bool {
	return p.dirtyBy != nil
}

func (p *heapPage) dirtiedBy() *TransactionID {
	return p.dirtyBy
}

// tupleFieldsOf exposes a tuple's field slice for copying into page
// storage without aliasing the caller's backing array.
func tupleFieldsOf(t *Tuple) []Field {
	return t.fields
}
