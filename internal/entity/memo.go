package entity

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize bounds each memoized view.
const DefaultMemoSize = 256

// Memo is a bounded cache for derived views keyed by their parameters.
//
// Invalidation bumps an epoch. A value computed while an invalidation ran is
// returned to its caller but never inserted, so a stale result cannot
// outlive the change that made it stale.
type Memo[K comparable, V any] struct {
	mu    sync.Mutex
	cache *lru.Cache[K, V]
	epoch uint64
}

// NewMemo creates a memo holding at most size entries. A size below 1 uses
// DefaultMemoSize.
func NewMemo[K comparable, V any](size int) *Memo[K, V] {
	if size < 1 {
		size = DefaultMemoSize
	}
	cache, err := lru.New[K, V](size)
	if err != nil {
		// Only returned for size <= 0, excluded above.
		panic(err)
	}
	return &Memo[K, V]{cache: cache}
}

// Get returns the cached value for key or computes and caches it.
func (m *Memo[K, V]) Get(key K, compute func() V) V {
	m.mu.Lock()
	if v, ok := m.cache.Get(key); ok {
		m.mu.Unlock()
		return v
	}
	epoch := m.epoch
	m.mu.Unlock()

	v := compute()

	m.mu.Lock()
	if m.epoch == epoch {
		m.cache.Add(key, v)
	}
	m.mu.Unlock()
	return v
}

// Invalidate drops every entry whose key matches.
func (m *Memo[K, V]) Invalidate(match func(K) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	for _, k := range m.cache.Keys() {
		if match(k) {
			m.cache.Remove(k)
		}
	}
}

// Forget drops one entry.
func (m *Memo[K, V]) Forget(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.cache.Remove(key)
}

// Purge drops every entry.
func (m *Memo[K, V]) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.cache.Purge()
}

// Len returns the number of cached entries.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
