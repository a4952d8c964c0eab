package db

import (
	"container/list"
	"sync"
	"time"
)

// Permission is the access mode an operator requests when fetching a
// page, which the BufferPool translates into the matching LockManager
// mode.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

func (p Permission) lockMode() LockMode {
	if p == ReadWrite {
		return Exclusive
	}
	return Shared
}

// BufferPool caches up to maxPages heapPages in memory, resolving
// cache misses by asking the Catalog which HeapFile owns a page's
// table and reading through it, and evicting under NO-STEAL: a dirty
// page (one written by a still-live transaction) is never written back
// on eviction, only a clean one is dropped.
type BufferPool struct {
	maxPages int
	locks    *LockManager

	mu      sync.Mutex
	pages   map[PageID]*list.Element // list.Element.Value is *bufEntry
	lru     *list.List               // front = most recently used
	catalog *Catalog
}

type bufEntry struct {
	id   PageID
	page *heapPage
}

// NewBufferPool builds a pool holding at most maxPages pages at once,
// using timeoutMin/timeoutMax (or the package defaults, if zero) for
// its LockManager.
func NewBufferPool(maxPages int, timeoutMin, timeoutMax time.Duration) *BufferPool {
	return &BufferPool{
		maxPages: maxPages,
		locks:    NewLockManager(timeoutMin, timeoutMax),
		pages:    make(map[PageID]*list.Element),
		lru:      list.New(),
	}
}

// SetCatalog wires the pool to the table registry it uses to resolve a
// PageID's TableID to the HeapFile that owns it. Must be called before
// any GetPage/AddEmptyPage/InsertTuple/DeleteTuple.
func (bp *BufferPool) SetCatalog(c *Catalog) {
	bp.catalog = c
}

func (bp *BufferPool) fileFor(tableID TableID) (*HeapFile, error) {
	if bp.catalog == nil {
		return nil, newError(InvalidState, "buffer pool has no catalog set")
	}
	return bp.catalog.FileByID(tableID)
}

// GetPage acquires the lock implied by perm on pid (blocking, possibly
// failing with TransactionAborted on timeout), then returns the cached
// page, reading it from its owning HeapFile on a cache miss. A miss
// that would exceed maxPages first evicts one clean page.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageID, perm Permission) (*heapPage, error) {
	if err := bp.locks.Acquire(tid, pid, perm.lockMode()); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if elem, ok := bp.pages[pid]; ok {
		bp.lru.MoveToFront(elem)
		return elem.Value.(*bufEntry).page, nil
	}

	if bp.lru.Len() >= bp.maxPages {
		if err := bp.evictOneLocked(); err != nil {
			return nil, err
		}
	}

	file, err := bp.fileFor(pid.TableID)
	if err != nil {
		return nil, err
	}
	page, err := file.ReadPage(pid.PageNo)
	if err != nil {
		return nil, err
	}
	elem := bp.lru.PushFront(&bufEntry{id: pid, page: page})
	bp.pages[pid] = elem
	return page, nil
}

// evictOneLocked must be called with bp.mu held. It walks the LRU list
// from the back (least recently used) looking for a clean page to
// drop. Dirty pages are never written back here (NO-STEAL): if every
// cached page is dirty, eviction fails with DbError rather than
// violate NO-STEAL by flushing an uncommitted page.
func (bp *BufferPool) evictOneLocked() error {
	for e := bp.lru.Back(); e != nil; e = e.Prev() {
		entry := e.Value.(*bufEntry)
		if entry.page.isDirty() {
			continue
		}
		bp.lru.Remove(e)
		delete(bp.pages, entry.id)
		Log.Debug().Int("tableID", int(entry.id.TableID)).Int("pageNo", entry.id.PageNo).Msg("page evicted")
		return nil
	}
	return newError(DbError, "buffer pool full: every cached page is dirty (NO-STEAL forbids eviction)")
}

// AddEmptyPage appends a fresh page to tableID's HeapFile, acquires
// EXCLUSIVE on it, and returns its PageID.
func (bp *BufferPool) AddEmptyPage(tid TransactionID, tableID TableID) (PageID, error) {
	file, err := bp.fileFor(tableID)
	if err != nil {
		return PageID{}, err
	}
	pageNo, err := file.AddPage()
	if err != nil {
		return PageID{}, err
	}
	pid := PageID{TableID: tableID, PageNo: pageNo}
	if err := bp.locks.Acquire(tid, pid, Exclusive); err != nil {
		return PageID{}, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.pages[pid]; !ok {
		if bp.lru.Len() >= bp.maxPages {
			if err := bp.evictOneLocked(); err != nil {
				return PageID{}, err
			}
		}
		page := newEmptyHeapPage(pid, file.Schema(), file.PageSize())
		elem := bp.lru.PushFront(&bufEntry{id: pid, page: page})
		bp.pages[pid] = elem
	}
	return pid, nil
}

// InsertTuple delegates to tableID's HeapFile, marking the page it
// inserts into dirty under tid.
func (bp *BufferPool) InsertTuple(tid TransactionID, tableID TableID, t *Tuple) error {
	file, err := bp.fileFor(tableID)
	if err != nil {
		return err
	}
	_, err = file.InsertTuple(tid, bp, t)
	return err
}

// DeleteTuple delegates to the HeapFile owning t's current page,
// marking that page dirty under tid.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t *Tuple) error {
	if t.Rid == nil {
		return newError(InvalidArgument, "cannot delete a tuple with no record id")
	}
	file, err := bp.fileFor(t.Rid.PageID.TableID)
	if err != nil {
		return err
	}
	_, err = file.DeleteTuple(tid, bp, t)
	return err
}

// ReleasePage releases whatever lock tid holds on pid without ending
// the transaction. Used only by HeapFile.InsertTuple's early-release
// probe optimization; operators should not call this directly, since
// releasing mid-transaction can break two-phase locking elsewhere.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageID) {
	bp.locks.Release(tid, pid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageID) bool {
	return bp.locks.Holds(tid, pid)
}

// DiscardPage drops pid from the cache without writing it back,
// regardless of dirty state. Used when aborting a transaction.
func (bp *BufferPool) DiscardPage(pid PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if elem, ok := bp.pages[pid]; ok {
		bp.lru.Remove(elem)
		delete(bp.pages, pid)
	}
}

// flushPageLocked must be called with bp.mu held. It writes a dirty
// page back to its HeapFile and clears its dirty bit.
func (bp *BufferPool) flushPageLocked(entry *bufEntry) error {
	if !entry.page.isDirty() {
		return nil
	}
	file, err := bp.fileFor(entry.id.TableID)
	if err != nil {
		return err
	}
	if err := file.WritePage(entry.page); err != nil {
		return err
	}
	entry.page.markDirty(nil)
	entry.page.setBeforeImage()
	return nil
}

// FlushAllPages writes every dirty cached page back to disk. Intended
// for tests and clean shutdown, not for transaction commit (commit
// flushes only the pages a given transaction dirtied).
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for e := bp.lru.Front(); e != nil; e = e.Next() {
		if err := bp.flushPageLocked(e.Value.(*bufEntry)); err != nil {
			return err
		}
	}
	return nil
}

// TransactionComplete ends tid: on commit, every page it dirtied is
// flushed to disk and its dirty bit cleared; on abort, every page it
// dirtied is discarded from the cache so a subsequent read re-fetches
// the on-disk (unmodified) version. Either way, all of tid's locks are
// released last.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	bp.mu.Lock()
	var toFlush, toDiscard []*bufEntry
	for e := bp.lru.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*bufEntry)
		if entry.page.isDirty() && entry.page.dirtiedBy() != nil && *entry.page.dirtiedBy() == tid {
			if commit {
				toFlush = append(toFlush, entry)
			} else {
				toDiscard = append(toDiscard, entry)
			}
		}
	}
	bp.mu.Unlock()

	var firstErr error
	for _, entry := range toFlush {
		bp.mu.Lock()
		err := bp.flushPageLocked(entry)
		bp.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, entry := range toDiscard {
		bp.DiscardPage(entry.id)
	}

	bp.locks.ReleaseAll(tid)

	event := Log.Info()
	if commit {
		event = event.Int("flushed", len(toFlush))
	} else {
		event = event.Int("discarded", len(toDiscard))
	}
	event.Str("tid", tid.String()).Bool("commit", commit).Msg("transaction complete")

	return firstErr
}
