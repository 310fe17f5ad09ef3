package service

import (
	"sync"

	"github.com/noah-isme/training-progress-api/internal/repository"
)

// keyedMutex serialises work per progress key while letting distinct keys proceed in
// parallel. Entries are reference counted and dropped once no goroutine holds or waits
// on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[repository.ProgressKey]*refCountedLock
}

type refCountedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[repository.ProgressKey]*refCountedLock)}
}

// Lock blocks until the key is free and returns the matching unlock function.
func (k *keyedMutex) Lock(key repository.ProgressKey) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &refCountedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
