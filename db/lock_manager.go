package db

import (
	"math/rand"
	"sync"
	"time"
)

// LockMode is the granted mode of a page lock.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

// Default bounds for the randomized per-attempt wait used to resolve
// deadlock by timeout. Two transactions racing to upgrade on each
// other's pages pick independent random waits, so one of them gives up
// first instead of both retrying in lockstep.
const (
	DefaultLockTimeoutMin = 50 * time.Millisecond
	DefaultLockTimeoutMax = 450 * time.Millisecond
)

// pageLock is the per-page lock state: the set of transactions
// currently holding SHARED, the (at most one, but reentrant with
// itself) transaction holding EXCLUSIVE, a count of transactions
// blocked waiting for EXCLUSIVE, and the mutex+condvar pair used to
// implement the grant/wait protocol.
//
// A plain sync.RWMutex cannot express the upgrade case or the
// writer-priority rule, so this is a hand-rolled mutex + two
// sync.Cond: one signaled when the reader set drains, one signaled
// when the writer releases.
type pageLock struct {
	mu             sync.Mutex
	readers        map[TransactionID]bool
	writer         *TransactionID
	writersWaiting int
	noReaders      *sync.Cond
	noWriters      *sync.Cond
}

func newPageLock() *pageLock {
	pl := &pageLock{readers: make(map[TransactionID]bool)}
	pl.noReaders = sync.NewCond(&pl.mu)
	pl.noWriters = sync.NewCond(&pl.mu)
	return pl
}

// LockManager grants page-granularity SHARED/EXCLUSIVE locks to
// transactions with reentrancy, shared-to-exclusive upgrade, and
// timeout-based deadlock avoidance.
type LockManager struct {
	timeoutMin, timeoutMax time.Duration

	mapMu sync.Mutex
	pages map[PageID]*pageLock
}

// NewLockManager builds a LockManager whose per-attempt wait is drawn
// uniformly from [timeoutMin, timeoutMax]. Passing zero for both uses
// the package defaults.
func NewLockManager(timeoutMin, timeoutMax time.Duration) *LockManager {
	if timeoutMin <= 0 {
		timeoutMin = DefaultLockTimeoutMin
	}
	if timeoutMax <= 0 || timeoutMax < timeoutMin {
		timeoutMax = DefaultLockTimeoutMax
	}
	return &LockManager{
		timeoutMin: timeoutMin,
		timeoutMax: timeoutMax,
		pages:      make(map[PageID]*pageLock),
	}
}

func (lm *LockManager) lockFor(pid PageID) *pageLock {
	lm.mapMu.Lock()
	defer lm.mapMu.Unlock()
	pl, ok := lm.pages[pid]
	if !ok {
		pl = newPageLock()
		lm.pages[pid] = pl
	}
	return pl
}

func (lm *LockManager) randomTimeout() time.Duration {
	span := lm.timeoutMax - lm.timeoutMin
	if span <= 0 {
		return lm.timeoutMin
	}
	return lm.timeoutMin + time.Duration(rand.Int63n(int64(span)))
}

// Acquire blocks until tid is granted mode on pid, or fails with
// TransactionAborted if no grant becomes possible within a randomized
// per-attempt timeout.
//
// Grant rules:
//   - SHARED is grantable if the requester already holds any lock on
//     pid, or there is no writer and no writer is waiting (writers are
//     prioritized over new readers to prevent starvation).
//   - EXCLUSIVE is grantable if no writer holds the page and either no
//     reader holds it, or the sole reader is the requester itself
//     (the upgrade case).
func (lm *LockManager) Acquire(tid TransactionID, pid PageID, mode LockMode) error {
	pl := lm.lockFor(pid)
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if mode == Exclusive {
		pl.writersWaiting++
		defer func() { pl.writersWaiting-- }()
	}

	if !lm.grantable(pl, tid, mode) {
		deadline := time.Now().Add(lm.randomTimeout())

		// A sync.Cond has no timed wait, so a background timer wakes the
		// waiter at the deadline by broadcasting; the waiter then
		// re-checks both grantability and the deadline itself.
		timer := time.AfterFunc(time.Until(deadline), func() {
			pl.mu.Lock()
			pl.noReaders.Broadcast()
			pl.noWriters.Broadcast()
			pl.mu.Unlock()
		})
		defer timer.Stop()

		for !lm.grantable(pl, tid, mode) {
			if time.Now().After(deadline) {
				Log.Warn().Stringer("tid", tid).Stringer("page", pid).Str("mode", lockModeName(mode)).Msg("lock acquisition timed out")
				return newError(TransactionAborted, "timed out acquiring %s lock on %s", lockModeName(mode), pid)
			}
			if mode == Shared {
				pl.noWriters.Wait()
			} else {
				pl.noReaders.Wait()
			}
		}
	}

	switch mode {
	case Shared:
		pl.readers[tid] = true
	case Exclusive:
		w := tid
		pl.writer = &w
		delete(pl.readers, tid) // an upgrader no longer counts as a separate reader
	}
	return nil
}

// grantable must be called with pl.mu held.
func (lm *LockManager) grantable(pl *pageLock, tid TransactionID, mode LockMode) bool {
	switch mode {
	case Shared:
		if pl.readers[tid] || (pl.writer != nil && *pl.writer == tid) {
			return true
		}
		return pl.writer == nil && pl.writersWaiting == 0
	case Exclusive:
		if pl.writer != nil {
			return *pl.writer == tid
		}
		if len(pl.readers) == 0 {
			return true
		}
		if len(pl.readers) == 1 && pl.readers[tid] {
			return true // sole reader upgrading
		}
		return false
	}
	return false
}

// Release releases whatever mode tid holds on pid. A no-op if tid
// holds nothing there.
func (lm *LockManager) Release(tid TransactionID, pid PageID) {
	pl := lm.lockFor(pid)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	lm.releaseLocked(pl, tid)
}

func (lm *LockManager) releaseLocked(pl *pageLock, tid TransactionID) {
	releasedWriter := false
	if pl.writer != nil && *pl.writer == tid {
		pl.writer = nil
		releasedWriter = true
	}
	_, wasReader := pl.readers[tid]
	if wasReader {
		delete(pl.readers, tid)
	}

	switch {
	case releasedWriter:
		// A writer releasing may unblock both new readers and new
		// writers (including one now eligible to upgrade).
		pl.noWriters.Broadcast()
		pl.noReaders.Broadcast()
	case wasReader && len(pl.readers) <= 1:
		// Readers dropped to at most one: the remaining reader might be
		// an upgrader, so writer-waiters must be woken too.
		pl.noReaders.Broadcast()
	}
}

// Holds reports whether tid holds any lock (shared or exclusive) on
// pid.
func (lm *LockManager) Holds(tid TransactionID, pid PageID) bool {
	pl := lm.lockFor(pid)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.writer != nil && *pl.writer == tid {
		return true
	}
	return pl.readers[tid]
}

// IsExclusivelyLocked reports whether any transaction holds EXCLUSIVE
// on pid.
func (lm *LockManager) IsExclusivelyLocked(pid PageID) bool {
	pl := lm.lockFor(pid)
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.writer != nil
}

// ReleaseAll releases every lock tid holds across all pages.
func (lm *LockManager) ReleaseAll(tid TransactionID) {
	lm.mapMu.Lock()
	pages := make([]*pageLock, 0, len(lm.pages))
	for _, pl := range lm.pages {
		pages = append(pages, pl)
	}
	lm.mapMu.Unlock()

	for _, pl := range pages {
		pl.mu.Lock()
		lm.releaseLocked(pl, tid)
		pl.mu.Unlock()
	}
}

func lockModeName(mode LockMode) string {
	if mode == Shared {
		return "SHARED"
	}
	return "EXCLUSIVE"
}
