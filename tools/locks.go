package tools

import (
	"sync"
)

// KeyedMutex hands out one mutex per key. Entries are created on first use
// and dropped once the last holder releases, so the map does not grow with
// the key space.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu      sync.Mutex
	holders int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: map[string]*lockEntry{},
	}
}

// Lock blocks until the key is held and returns the matching release
// function. Releasing more than once is a no-op.
func (km *KeyedMutex) Lock(key string) (unlock func()) {
	km.mu.Lock()
	le, exists := km.locks[key]
	if !exists {
		le = &lockEntry{}
		km.locks[key] = le
	}
	le.holders++
	km.mu.Unlock()

	le.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			km.mu.Lock()
			le.holders--
			if le.holders == 0 {
				delete(km.locks, key)
			}
			km.mu.Unlock()
			le.mu.Unlock()
		})
	}
}

// Held reports whether any goroutine currently holds or waits on the key.
func (km *KeyedMutex) Held(key string) bool {
	km.mu.Lock()
	defer km.mu.Unlock()
	le, exists := km.locks[key]
	return exists && le.holders > 0
}
