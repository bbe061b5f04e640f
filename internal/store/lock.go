package store

import "sync"

// KeyedLock serializes mutations per document id. The REST layer holds the
// key's lock across load, merge, validate and persist so two concurrent
// writers for the same id cannot overwrite each other's merge (lost update).
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: map[string]*keyedEntry{}}
}

// Lock acquires the mutex for key, creating it on first use.
func (l *KeyedLock) Lock(key string) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyedEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()
	e.mu.Lock()
}

// Unlock releases the mutex for key and drops it once unreferenced.
func (l *KeyedLock) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		l.mu.Unlock()
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
	e.mu.Unlock()
}
