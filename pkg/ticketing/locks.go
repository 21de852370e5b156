package ticketing

import "sync"

// keyedLocks serializes lifecycle transitions per key (channel ID, or
// guild+creator for creation). Entries are refcounted so the table does not
// grow with every ticket ever seen.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		entries: make(map[string]*lockEntry),
	}
}

// lock acquires the lock for the key and returns its release func.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = new(lockEntry)
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
