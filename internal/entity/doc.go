// Package entity implements the in-memory entity stores.
//
// A Store caches one entity kind, persists it through a Backend and
// notifies subscribers of every change. Cache updates are synchronous and
// visible as soon as the call returns; persistence runs write-behind on a
// per-store worker. A failed durable write is recorded in the store's error
// slot and never rolls the cache back: the cache is the source of truth for
// the running session.
//
// Derived views (sorted lists, per-conversation groups, search) are pure
// functions of cache state. Views that take parameters are memoized in a
// bounded LRU and dropped whenever an entity they depend on changes.
package entity
