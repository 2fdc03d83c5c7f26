package lock

import "sync"

// keyedMutex hands out a *sync.Mutex per key, used to serialize
// acquire/release/state-transition operations per branch while leaving
// independent branches uncontended.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) forKey(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// withLock runs fn with the per-key mutex held.
func (k *keyedMutex) withLock(key string, fn func()) {
	m := k.forKey(key)
	m.Lock()
	defer m.Unlock()
	fn()
}
