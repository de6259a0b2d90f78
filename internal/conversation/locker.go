package conversation

import "sync"

// Locker hands out one mutex per user id. Entries are dropped once no
// goroutine holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*userLock)}
}

// Lock blocks until userID's lock is held and returns its release func.
func (l *Locker) Lock(userID string) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ul.mu.Unlock()
			l.mu.Lock()
			ul.refs--
			if ul.refs == 0 {
				delete(l.locks, userID)
			}
			l.mu.Unlock()
		})
	}
}

// Len reports how many user locks are currently tracked.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
