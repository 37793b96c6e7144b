// Package tree rebuilds a conversation's branching reply forest from its flat
// message list and resolves which branch a participant sees.
//
// Build is total over untrusted references: replies to unknown messages
// become extra roots and reply cycles are cut, so every input message
// appears exactly once in the output. Branch state is the per-member
// message id → shown map; Resolve never picks a default between two or more
// siblings without an explicit selection.
package tree
