package loop

import "sync"

// storyLocks serializes writes per story so two executions cannot both pass the
// same cooldown check.
type storyLocks struct {
	mu    sync.Mutex
	locks map[string]*storyLock
}

type storyLock struct {
	mu   sync.Mutex
	refs int
}

func newStoryLocks() *storyLocks {
	return &storyLocks{locks: make(map[string]*storyLock)}
}

// Lock blocks until the story is free and returns the matching unlock.
func (l *storyLocks) Lock(storyID string) func() {
	l.mu.Lock()
	sl, ok := l.locks[storyID]
	if !ok {
		sl = &storyLock{}
		l.locks[storyID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, storyID)
		}
		l.mu.Unlock()
	}
}

func (l *storyLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// waiting returns how many callers hold or wait for the story's lock.
func (l *storyLocks) waiting(storyID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sl, ok := l.locks[storyID]; ok {
		return sl.refs
	}
	return 0
}
