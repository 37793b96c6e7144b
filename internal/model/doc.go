// Package model defines the replicated entities (users, conversations,
// members, messages), the shallow merge used to apply partial updates, and
// the tagged delta union delivered by the sync transport.
//
// # Value Semantics
//
// Entities are replaced, never patched in place. Every type has a Clone
// method and stores only hand out clones, so a caller holding a Member can
// not change what another caller observes.
//
// # Deltas
//
// A delta on the wire is a JSON envelope:
//
//	{"type": "message", "data": {"id": "...", "content": "..."}}
//
// DecodeDelta turns an envelope into one of the four sealed delta types.
// Any other discriminator is malformed input and produces an *IngestError.
package model
