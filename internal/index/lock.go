package index

import "sync"

// keyedMutex hands out one read/write lock per repository
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.RWMutex)}
}

func (k *keyedMutex) get(key string) *sync.RWMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.RWMutex{}
		k.locks[key] = l
	}
	return l
}

// Lock takes the repository's write lock
func (k *keyedMutex) Lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return l.Unlock
}

// RLock takes the repository's read lock
func (k *keyedMutex) RLock(key string) func() {
	l := k.get(key)
	l.RLock()
	return l.RUnlock
}
