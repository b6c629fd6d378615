package application

import "sync"

// keyedMutex serializes work per key. Entries are dropped once no goroutine
// holds or waits on them.
type keyedMutex struct {
	mux   sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock blocks until key is free and returns its unlock function
func (k *keyedMutex) Lock(key string) func() {
	k.mux.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mux.Unlock()

	l.Lock()

	return func() {
		l.Unlock()

		k.mux.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mux.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mux.Lock()
	defer k.mux.Unlock()
	return len(k.locks)
}
