package app

import (
	"maps"
	"sync"
)

// Directory is a session-owned record table. Every method is safe for
// concurrent use; none of them blocks on I/O while holding the lock.
type Directory[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewDirectory[K comparable, V any]() *Directory[K, V] {
	return &Directory[K, V]{items: make(map[K]V)}
}

// PutIfAbsent stores v under k unless k is present. It reports whether v was stored.
func (d *Directory[K, V]) PutIfAbsent(k K, v V) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.items[k]; ok {
		return false
	}
	d.items[k] = v
	return true
}

func (d *Directory[K, V]) Get(k K) (V, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.items[k]
	return v, ok
}

// Remove deletes k if present. Only the caller that gets ok == true removed it.
func (d *Directory[K, V]) Remove(k K) (V, bool) {
	return d.RemoveIf(k, func(V) bool { return true })
}

// RemoveIf deletes k if present and match accepts its value.
func (d *Directory[K, V]) RemoveIf(k K, match func(V) bool) (V, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.items[k]
	if !ok || !match(v) {
		var zero V
		return zero, false
	}
	delete(d.items, k)
	return v, true
}

// Drain removes and returns every record.
func (d *Directory[K, V]) Drain() map[K]V {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.items
	d.items = make(map[K]V)
	return out
}

func (d *Directory[K, V]) Snapshot() map[K]V {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[K]V, len(d.items))
	maps.Copy(out, d.items)
	return out
}

func (d *Directory[K, V]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}
