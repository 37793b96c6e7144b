// Package durable provides SQLite-backed on-device persistence for the
// replica.
//
// The store holds four keyed collections, one per entity kind:
//   - users
//   - conversations
//   - members (indexed by conversation_id)
//   - messages (indexed by conversation_id)
//
// Each row stores the entity as JSON next to its id and conversation id.
// The durable layer does not interpret the JSON; decoding belongs to the
// entity stores.
//
// A small slots table holds scalar values that live outside any entity
// collection, such as the reconciliation cursor.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Schema changes are tracked with PRAGMA user_version.
package durable
