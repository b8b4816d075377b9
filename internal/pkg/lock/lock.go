// Package lock provides per-key locking for operations that must not overlap
// on the same key while staying independent across keys.
package lock

import (
	"sync"
)

// keyMutex wraps a mutex with a count of holders and waiters for cleanup.
type keyMutex struct {
	mu   sync.Mutex
	refs int
}

// KeyLock provides one mutex per key. Entries are dropped once nobody holds
// or waits on them, so long-lived processes don't accumulate keys.
type KeyLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyMutex
}

// New creates a new KeyLock instance.
func New[K comparable]() *KeyLock[K] {
	return &KeyLock[K]{
		locks: make(map[K]*keyMutex),
	}
}

// acquire retrieves or creates the mutex for key and takes a reference on it.
func (l *KeyLock[K]) acquire(key K) *keyMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[key]
	if !ok {
		m = &keyMutex{}
		l.locks[key] = m
	}
	m.refs++
	return m
}

// release drops a reference and forgets the mutex when it is unused.
func (l *KeyLock[K]) release(key K, m *keyMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock acquires the lock for a key, blocking until it is available.
func (l *KeyLock[K]) Lock(key K) {
	m := l.acquire(key)
	m.mu.Lock()
}

// Unlock releases the lock for a key.
// Unlocking a key that is not locked is a no-op.
func (l *KeyLock[K]) Unlock(key K) {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	m.mu.Unlock()
	l.release(key, m)
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false otherwise.
func (l *KeyLock[K]) TryLock(key K) bool {
	m := l.acquire(key)
	if m.mu.TryLock() {
		return true
	}
	l.release(key, m)
	return false
}
