package cases

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex serializes mutations per case within one process. The
// versioned UPDATE in the repository is the real guard; this keeps
// same-process writers from burning retries against each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*caseLock
}

type caseLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*caseLock)}
}

// Lock blocks until the per-case lock is held and returns the unlock
// func. Entries are dropped once the last holder releases.
func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &caseLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
