package engine

import "sync"

// =============================================================================
// KEYED MUTEX - Per-key serialization for read-modify-write sequences
// =============================================================================

// KeyedMutex serializes work per string key. The reconciler uses it per
// employee-month key and the approval service per approval id; distinct
// keys proceed fully in parallel.
//
// Mutexes are retained for the life of the process. The key space here
// (employee-months, approval ids) is small enough that reclamation is
// not worth the bookkeeping.
type KeyedMutex struct {
	locks sync.Map // string -> *sync.Mutex
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyedMutex) Lock(key string) {
	mu, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
}

// Unlock releases the mutex for key. Must follow a Lock on the same key.
func (k *KeyedMutex) Unlock(key string) {
	mu, ok := k.locks.Load(key)
	if !ok {
		return
	}
	mu.(*sync.Mutex).Unlock()
}
