package sqlite

import (
	"slices"
	"sync"
)

// accountLocks is a keyed mutex: one lock per account identity, created on
// demand and dropped when the last holder releases it.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

// lock acquires the locks of all identities in sorted order, so two callers
// locking the same pair can never deadlock. The returned func releases them.
func (l *accountLocks) lock(identities ...string) (unlock func()) {
	ids := slices.Clone(identities)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*accountLock, 0, len(ids))
	for _, id := range ids {
		l.mu.Lock()
		al, ok := l.locks[id]
		if !ok {
			al = &accountLock{}
			l.locks[id] = al
		}
		al.refs++
		l.mu.Unlock()

		al.mu.Lock()
		held = append(held, al)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, ids[i])
			}
			l.mu.Unlock()
		}
	}
}

// size returns the number of live lock entries.
func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
