package db

import "testing"

func TestHeapFileTableIDStableAcrossReopen(t *testing.T) {
	s := twoIntSchema(t)
	hf1 := tempHeapFile(t, s, 0)
	path := hf1.Path()

	hf2, err := NewHeapFile(path, s, DefaultPageSize)
	if err != nil {
		t.Fatalf("reopen NewHeapFile: %v", err)
	}
	if hf2.TableID() != hf1.TableID() {
		t.Fatalf("reopening the same path should reuse its TableID: got %d, want %d", hf2.TableID(), hf1.TableID())
	}
}

func TestHeapFileAddPageAndNumPages(t *testing.T) {
	s := twoIntSchema(t)
	hf := tempHeapFile(t, s, 0)
	if hf.NumPages() != 0 {
		t.Fatalf("fresh heap file should have 0 pages, got %d", hf.NumPages())
	}
	pn, err := hf.AddPage()
	if err != nil {
		t.Fatalf("AddPage: %v", err)
	}
	if pn != 0 {
		t.Fatalf("first AddPage should return page 0, got %d", pn)
	}
	if hf.NumPages() != 1 {
		t.Fatalf("NumPages = %d, want 1", hf.NumPages())
	}
}

func TestHeapFileInsertSpillsToNewPage(t *testing.T) {
	s := twoIntSchema(t)
	// A tiny page size forces very few slots per page, so a handful of
	// inserts is enough to exercise the "append a new page" path.
	hf := tempHeapFile(t, s, 64)
	bp, _ := newTestPool(t, 0, hf)
	tid := NewTransactionID()

	const n = 20
	for i := 0; i < n; i++ {
		if err := bp.InsertTuple(tid, hf.TableID(), intTuple(t, s, int32(i), int32(i))); err != nil {
			t.Fatalf("InsertTuple %d: %v", i, err)
		}
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}
	if hf.NumPages() < 2 {
		t.Fatalf("expected inserts to spill across multiple pages, got %d pages", hf.NumPages())
	}

	count := 0
	next := hf.Iterator(NewTransactionID(), bp)
	for {
		tup, err := next()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	if count != n {
		t.Fatalf("iterator yielded %d tuples, want %d", count, n)
	}
}

func TestHeapFileIteratorOrderAndRestart(t *testing.T) {
	s := twoIntSchema(t)
	hf := tempHeapFile(t, s, 0)
	bp, _ := newTestPool(t, 0, hf)
	tid := NewTransactionID()
	for i := 0; i < 5; i++ {
		if err := bp.InsertTuple(tid, hf.TableID(), intTuple(t, s, int32(i), int32(i*2))); err != nil {
			t.Fatalf("InsertTuple: %v", err)
		}
	}
	bp.TransactionComplete(tid, true)

	readTid := NewTransactionID()
	next := hf.Iterator(readTid, bp)
	var seen []int32
	for {
		tup, err := next()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		f, _ := tup.Field(0)
		seen = append(seen, f.(IntField).Value)
	}
	for i, v := range seen {
		if v != int32(i) {
			t.Fatalf("iterator order[%d] = %d, want %d", i, v, i)
		}
	}
	bp.TransactionComplete(readTid, true)

	// Iterator is restartable: a fresh call starts over from page 0.
	restartTid := NewTransactionID()
	next2 := hf.Iterator(restartTid, bp)
	first, err := next2()
	if err != nil {
		t.Fatalf("iterator restart: %v", err)
	}
	if first == nil {
		t.Fatalf("restarted iterator should yield a first tuple")
	}
	f, _ := first.Field(0)
	if f.(IntField).Value != 0 {
		t.Fatalf("restarted iterator first value = %v, want 0", f)
	}
	bp.TransactionComplete(restartTid, true)
}

// TestHeapFileTupleRecordIDMatchesTable checks that every tuple
// loaded by an iterator has its RecordID's PageID.TableID equal to the
// file's id, and its slot's header bit set.
func TestHeapFileTupleRecordIDMatchesTable(t *testing.T) {
	s := twoIntSchema(t)
	hf := tempHeapFile(t, s, 0)
	bp, _ := newTestPool(t, 0, hf)
	tid := NewTransactionID()
	bp.InsertTuple(tid, hf.TableID(), intTuple(t, s, 1, 1))
	bp.TransactionComplete(tid, true)

	readTid := NewTransactionID()
	next := hf.Iterator(readTid, bp)
	tup, err := next()
	if err != nil {
		t.Fatalf("iterator: %v", err)
	}
	if tup == nil {
		t.Fatalf("expected one tuple")
	}
	if tup.Rid.PageID.TableID != hf.TableID() {
		t.Fatalf("tuple's table id = %d, want %d", tup.Rid.PageID.TableID, hf.TableID())
	}
	page, err := bp.GetPage(readTid, tup.Rid.PageID, ReadOnly)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !page.isSlotUsed(tup.Rid.Slot) {
		t.Fatalf("loaded tuple's slot should be marked occupied")
	}
	bp.TransactionComplete(readTid, true)
}

func TestHeapFileDeleteTupleRequiresRecordID(t *testing.T) {
	s := twoIntSchema(t)
	hf := tempHeapFile(t, s, 0)
	bp, _ := newTestPool(t, 0, hf)
	tid := NewTransactionID()
	tup := intTuple(t, s, 1, 2) // never inserted; has no Rid
	if err := hf.DeleteTuple(tid, bp, tup); err == nil || !IsKind(err, InvalidArgument) {
		t.Fatalf("deleting a tuple with no RecordID should fail InvalidArgument, got %v", err)
	}
}
