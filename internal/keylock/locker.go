// Package keylock provides an in-process lock per string key.
//
// Both the estimation cache and the image library lock on the content
// fingerprint. The cache holds it from the second read of a checksum's
// estimations through the write transaction, so concurrent first views run the
// oracle once. The library holds it from placing an upload's bytes through
// the commit of its rows, and Delete holds it while it decides whether the
// checksum and the file go away, so an upload can never attach to a checksum
// that is being removed.
//
// Callers must not wait for a lock while holding a database connection;
// keys are always taken before a transaction starts.
package keylock

import "sync"

// Locker serializes work per key. Waiters are woken when the holder unlocks
// and race again for the key. The zero value is not usable; call New.
type Locker struct {
	mu      sync.Mutex
	waiters map[string]chan struct{}
}

func New() *Locker {
	return &Locker{
		waiters: make(map[string]chan struct{}, 64),
	}
}

// Lock blocks until key is free and takes it.
func (l *Locker) Lock(key string) {
	for {
		l.mu.Lock()
		released, held := l.waiters[key]
		if !held {
			l.waiters[key] = make(chan struct{})
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()
		<-released
	}
}

// Unlock releases key. Unlocking a free key is a no-op.
func (l *Locker) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if released, held := l.waiters[key]; held {
		delete(l.waiters, key)
		close(released)
	}
}
