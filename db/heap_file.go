package db

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
)

// tableIDRegistry assigns a stable, monotonic TableID to each distinct
// absolute backing-file path the first time it's seen, and returns the
// same id on every subsequent call for that path. A counter avoids the
// collision risk of hashing the path down to a fixed-width id.
type tableIDRegistry struct {
	mu   sync.Mutex
	ids  map[string]TableID
	next TableID
}

var globalTableIDs = &tableIDRegistry{ids: make(map[string]TableID), next: 1}

func (r *tableIDRegistry) idFor(path string) TableID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[path]; ok {
		return id
	}
	id := r.next
	r.next++
	r.ids[path] = id
	return id
}

// HeapFile is an append-only collection of heapPages stored as one
// flat OS file whose length is always a multiple of pageSize. Insert,
// delete, and iteration all go through a caller-supplied BufferPool
// rather than reading or writing the file directly, so every access is
// locked and cached consistently with the rest of the engine.
type HeapFile struct {
	path     string
	schema   *Schema
	pageSize int
	tableID  TableID

	addMu sync.Mutex // serializes AddPage across concurrent callers
}

// NewHeapFile opens (creating if necessary) the heap file at path with
// the given schema and page size. Its TableID is assigned or recalled
// from the global path registry.
func NewHeapFile(path string, schema *Schema, pageSize int) (*HeapFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, wrapError(IoError, err, "resolve absolute path for %s", path)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, wrapError(IoError, err, "open heap file %s", abs)
	}
	f.Close()

	return &HeapFile{
		path:     abs,
		schema:   schema,
		pageSize: pageSize,
		tableID:  globalTableIDs.idFor(abs),
	}, nil
}

func (f *HeapFile) TableID() TableID   { return f.tableID }
func (f *HeapFile) Schema() *Schema    { return f.schema }
func (f *HeapFile) Path() string       { return f.path }
func (f *HeapFile) PageSize() int      { return f.pageSize }

// NumPages returns length/pageSize for the backing file.
func (f *HeapFile) NumPages() int {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0
	}
	return int(info.Size() / int64(f.pageSize))
}

// ReadPage reads the pageNo-th page from disk.
func (f *HeapFile) ReadPage(pageNo int) (*heapPage, error) {
	file, err := os.OpenFile(f.path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, wrapError(IoError, err, "open heap file %s for read", f.path)
	}
	defer file.Close()

	data := make([]byte, f.pageSize)
	offset := int64(pageNo) * int64(f.pageSize)
	if _, err := file.ReadAt(data, offset); err != nil {
		return nil, wrapError(IoError, err, "read page %d of %s", pageNo, f.path)
	}
	id := PageID{TableID: f.tableID, PageNo: pageNo}
	return readHeapPage(id, f.schema, f.pageSize, data)
}

// WritePage writes p's current serialized bytes back to its slot in
// the backing file. Called by BufferPool when flushing a dirty page;
// eviction never writes a page back.
func (f *HeapFile) WritePage(p *heapPage) error {
	data, err := p.getPageData()
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_RDWR, 0644)
	if err != nil {
		return wrapError(IoError, err, "open heap file %s for write", f.path)
	}
	defer file.Close()

	offset := int64(p.id.PageNo) * int64(f.pageSize)
	if _, err := file.WriteAt(data, offset); err != nil {
		return wrapError(IoError, err, "write page %d of %s", p.id.PageNo, f.path)
	}
	return nil
}

// AddPage appends one zero-filled page to the file and returns its
// page number. Serialized by addMu so concurrent appends never
// interleave.
func (f *HeapFile) AddPage() (int, error) {
	f.addMu.Lock()
	defer f.addMu.Unlock()

	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return 0, wrapError(IoError, err, "open heap file %s to append", f.path)
	}
	defer file.Close()

	pageNo := f.NumPages()
	blank := make([]byte, f.pageSize)
	if _, err := file.Write(blank); err != nil {
		return 0, wrapError(IoError, err, "append page to %s", f.path)
	}
	return pageNo, nil
}

// InsertTuple scans pages from 0 looking for a free slot. For each
// candidate page it acquires SHARED via bp just to probe occupancy; if
// the page is full it releases that SHARED lock immediately and
// continues. A page on which tid already held a lock before the probe
// keeps that lock. This is a deliberate deviation from strict two-phase
// locking: the transaction never modifies a page it only probed and
// rejected, so releasing early cannot violate serializability over
// that page. Once a candidate is found (or a fresh page is appended),
// it re-acquires EXCLUSIVE and inserts.
func (f *HeapFile) InsertTuple(tid TransactionID, bp *BufferPool, t *Tuple) (*heapPage, error) {
	numPages := f.NumPages()
	for pageNo := 0; pageNo < numPages; pageNo++ {
		pid := PageID{TableID: f.tableID, PageNo: pageNo}
		heldBefore := bp.HoldsLock(tid, pid)
		page, err := bp.GetPage(tid, pid, ReadOnly)
		if err != nil {
			return nil, err
		}
		if page.getNumEmptySlots() == 0 {
			if !heldBefore {
				bp.ReleasePage(tid, pid) // early release: see doc comment above
			}
			continue
		}
		if !heldBefore {
			bp.ReleasePage(tid, pid)
		}

		page, err = bp.GetPage(tid, pid, ReadWrite)
		if err != nil {
			return nil, err
		}
		if page.getNumEmptySlots() == 0 {
			// Lost the race to another transaction between the probe and
			// the exclusive re-acquire; keep scanning.
			continue
		}
		if err := page.insertTuple(t); err != nil {
			return nil, err
		}
		page.markDirty(&tid)
		return page, nil
	}

	pid, err := bp.AddEmptyPage(tid, f.tableID)
	if err != nil {
		return nil, err
	}
	page, err := bp.GetPage(tid, pid, ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := page.insertTuple(t); err != nil {
		return nil, err
	}
	page.markDirty(&tid)
	return page, nil
}

// DeleteTuple acquires EXCLUSIVE on the page named by t.Rid and
// removes t from it.
func (f *HeapFile) DeleteTuple(tid TransactionID, bp *BufferPool, t *Tuple) (*heapPage, error) {
	if t.Rid == nil {
		return nil, newError(InvalidArgument, "cannot delete a tuple with no record id")
	}
	page, err := bp.GetPage(tid, t.Rid.PageID, ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := page.deleteTuple(t); err != nil {
		return nil, err
	}
	page.markDirty(&tid)
	return page, nil
}

// Iterator returns a restartable lazy sequence over all non-empty
// slots in page order. Each call to Iterator starts a fresh traversal
// from page 0.
func (f *HeapFile) Iterator(tid TransactionID, bp *BufferPool) func() (*Tuple, error) {
	pageNo := 0
	var pending []*Tuple

	return func() (*Tuple, error) {
		for {
			if len(pending) > 0 {
				t := pending[0]
				pending = pending[1:]
				return t, nil
			}
			if pageNo >= f.NumPages() {
				return nil, nil
			}
			pid := PageID{TableID: f.tableID, PageNo: pageNo}
			page, err := bp.GetPage(tid, pid, ReadOnly)
			if err != nil {
				return nil, err
			}
			pending = page.iterator()
			pageNo++
		}
	}
}

// loadCSV bulk-loads newline-delimited, sep-separated rows into the
// heap file under a single transaction. hasHeader skips the first
// line.
func (f *HeapFile) loadCSV(bp *BufferPool, data []byte, hasHeader bool, sep byte) error {
	tid := NewTransactionID()
	lines := bytes.Split(data, []byte{'\n'})
	for i, line := range lines {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		if i == 0 && hasHeader {
			continue
		}
		fields := bytes.Split(line, []byte{sep})
		if len(fields) != f.schema.Arity() {
			bp.TransactionComplete(tid, false)
			return newError(DbError, "loadCSV: line %d has %d fields, want %d", i, len(fields), f.schema.Arity())
		}
		t := NewTuple(f.schema)
		for col, raw := range fields {
			desc, _ := f.schema.FieldAt(col)
			var val Field
			switch desc.Type {
			case IntType:
				n, err := parseInt32(string(bytes.TrimSpace(raw)))
				if err != nil {
					bp.TransactionComplete(tid, false)
					return newError(DbError, "loadCSV: line %d: %v", i, err)
				}
				val = IntField{Value: n}
			case StringType:
				val = StringField{Value: string(raw)}
			}
			if err := t.SetField(col, val); err != nil {
				bp.TransactionComplete(tid, false)
				return err
			}
		}
		if err := bp.InsertTuple(tid, f.tableID, t); err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
	}
	return bp.TransactionComplete(tid, true)
}
