package nvs

import "sync"

// Handle serializes access to a Store. Each call holds the lock for exactly
// one operation.
type Handle struct {
	lock  sync.Mutex
	store *Store
}

// NewHandle creates the Handle of a Store.
func NewHandle(store *Store) *Handle {
	return &Handle{store: store}
}

// Fetch implements Store.Fetch under lock.
func (h *Handle) Fetch(key Key) (string, bool, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.store.Fetch(key)
}

// Store implements Store.Store under lock.
func (h *Handle) Store(key Key, value string) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.store.Store(key, value)
}

// Snapshot implements Store.Snapshot under lock.
func (h *Handle) Snapshot() (map[Key]string, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.store.Snapshot()
}

// Erase implements Store.Erase under lock.
func (h *Handle) Erase() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.store.Erase()
}
