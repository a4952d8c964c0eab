package db

import (
	"sync"
	"testing"
	"time"
)

func testLockManager(t *testing.T) *LockManager {
	t.Helper()
	return NewLockManager(testLockTimeoutMin, testLockTimeoutMax)
}

func TestLockManagerSharedReentrantAndMultiReader(t *testing.T) {
	lm := testLockManager(t)
	pid := PageID{TableID: 1, PageNo: 0}
	tidA := NewTransactionID()
	tidB := NewTransactionID()

	if err := lm.Acquire(tidA, pid, Shared); err != nil {
		t.Fatalf("A acquire shared: %v", err)
	}
	if err := lm.Acquire(tidA, pid, Shared); err != nil {
		t.Fatalf("A re-acquire shared should be reentrant: %v", err)
	}
	if err := lm.Acquire(tidB, pid, Shared); err != nil {
		t.Fatalf("B acquire shared concurrently with A: %v", err)
	}
	if !lm.Holds(tidA, pid) || !lm.Holds(tidB, pid) {
		t.Fatalf("both A and B should hold the page")
	}
}

func TestLockManagerExclusiveExcludesReaders(t *testing.T) {
	lm := testLockManager(t)
	pid := PageID{TableID: 1, PageNo: 0}
	tidA := NewTransactionID()
	tidB := NewTransactionID()

	if err := lm.Acquire(tidA, pid, Exclusive); err != nil {
		t.Fatalf("A acquire exclusive: %v", err)
	}
	if !lm.IsExclusivelyLocked(pid) {
		t.Fatalf("IsExclusivelyLocked should report true")
	}

	done := make(chan error, 1)
	go func() { done <- lm.Acquire(tidB, pid, Shared) }()

	select {
	case <-done:
		t.Fatalf("B's shared acquire should block while A holds exclusive")
	case <-time.After(20 * time.Millisecond):
	}

	lm.Release(tidA, pid)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("B acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("B never got the lock after A released")
	}
}

// TestLockManagerUpgrade: A holds SHARED, upgrades to EXCLUSIVE
// without deadlocking; B's concurrent SHARED request blocks until A
// releases.
func TestLockManagerUpgrade(t *testing.T) {
	lm := testLockManager(t)
	pid := PageID{TableID: 1, PageNo: 0}
	tidA := NewTransactionID()
	tidB := NewTransactionID()

	if err := lm.Acquire(tidA, pid, Shared); err != nil {
		t.Fatalf("A acquire shared: %v", err)
	}
	if err := lm.Acquire(tidA, pid, Exclusive); err != nil {
		t.Fatalf("A upgrade to exclusive: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- lm.Acquire(tidB, pid, Shared) }()

	select {
	case <-done:
		t.Fatalf("B should block while A holds the upgraded exclusive lock")
	case <-time.After(20 * time.Millisecond):
	}

	lm.Release(tidA, pid)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("B acquire after A's release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("B never got the lock")
	}
}

// TestLockManagerWriterPriority checks that once a writer is waiting,
// a brand-new reader (one that doesn't already hold the page) is not
// granted ahead of it.
func TestLockManagerWriterPriority(t *testing.T) {
	// The writer waits about 35ms before the reader releases, longer than
	// the shortest test timeout, so this test uses timeouts that cannot
	// expire while it runs.
	lm := NewLockManager(time.Second, 2*time.Second)
	pid := PageID{TableID: 1, PageNo: 0}
	tidReader := NewTransactionID()
	tidWriter := NewTransactionID()
	tidLateReader := NewTransactionID()

	if err := lm.Acquire(tidReader, pid, Shared); err != nil {
		t.Fatalf("reader acquire: %v", err)
	}

	writerDone := make(chan error, 1)
	go func() { writerDone <- lm.Acquire(tidWriter, pid, Exclusive) }()
	time.Sleep(15 * time.Millisecond) // let the writer register as waiting

	lateDone := make(chan error, 1)
	go func() { lateDone <- lm.Acquire(tidLateReader, pid, Shared) }()

	select {
	case <-lateDone:
		t.Fatalf("a new reader should not be granted while a writer is waiting")
	case <-time.After(20 * time.Millisecond):
	}

	lm.Release(tidReader, pid)
	select {
	case err := <-writerDone:
		if err != nil {
			t.Fatalf("writer acquire: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("writer never granted")
	}
	lm.Release(tidWriter, pid)
	select {
	case err := <-lateDone:
		if err != nil {
			t.Fatalf("late reader acquire: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("late reader never granted")
	}
}

// TestLockManagerDeadlockResolvedByTimeout: A holds S(p1), B holds S(p2);
// A wants X(p2) while B wants X(p1).
// Both block; within timeoutMax at least one must abort so the
// survivor can complete.
func TestLockManagerDeadlockResolvedByTimeout(t *testing.T) {
	lm := testLockManager(t)
	p1 := PageID{TableID: 1, PageNo: 0}
	p2 := PageID{TableID: 1, PageNo: 1}
	tidA := NewTransactionID()
	tidB := NewTransactionID()

	if err := lm.Acquire(tidA, p1, Shared); err != nil {
		t.Fatalf("A acquire p1: %v", err)
	}
	if err := lm.Acquire(tidB, p2, Shared); err != nil {
		t.Fatalf("B acquire p2: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- lm.Acquire(tidA, p2, Exclusive)
	}()
	go func() {
		defer wg.Done()
		results <- lm.Acquire(tidB, p1, Exclusive)
	}()

	doneAll := make(chan struct{})
	go func() { wg.Wait(); close(doneAll) }()

	select {
	case <-doneAll:
	case <-time.After(5 * time.Second):
		t.Fatalf("deadlock never resolved within the timeout window")
	}
	close(results)

	abortCount, okCount := 0, 0
	for err := range results {
		switch {
		case err == nil:
			okCount++
		case IsKind(err, TransactionAborted):
			abortCount++
		default:
			t.Fatalf("unexpected error kind: %v", err)
		}
	}
	if abortCount < 1 {
		t.Fatalf("expected at least one TransactionAborted, got okCount=%d abortCount=%d", okCount, abortCount)
	}
}

func TestLockManagerReleaseAll(t *testing.T) {
	lm := testLockManager(t)
	p1 := PageID{TableID: 1, PageNo: 0}
	p2 := PageID{TableID: 1, PageNo: 1}
	tid := NewTransactionID()
	lm.Acquire(tid, p1, Shared)
	lm.Acquire(tid, p2, Exclusive)

	lm.ReleaseAll(tid)

	if lm.Holds(tid, p1) || lm.Holds(tid, p2) {
		t.Fatalf("ReleaseAll should drop every lock tid held")
	}
}

func TestLockManagerReleaseNotHeldIsNoop(t *testing.T) {
	lm := testLockManager(t)
	pid := PageID{TableID: 1, PageNo: 0}
	tid := NewTransactionID()
	lm.Release(tid, pid) // should not panic or error
	if lm.Holds(tid, pid) {
		t.Fatalf("releasing a lock never held should not grant one")
	}
}
