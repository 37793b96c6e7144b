// Package harness runs replica scenarios: scripted sequences of local
// transactions, server deltas and clock moves, checked by assertions and
// golden snapshots.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	user: u1
//	start: 2024-04-10T08:00:00Z
//	steps:
//	  - op: create_conversation
//	    args: { title: Trip, llms: [gpt-4o] }
//	  - op: create_message
//	    args: { conversation: id-0001, content: "Where to?" }
//	  - op: deliver
//	    args: { type: message, data: { id: m9, conversationId: id-0001, llm: gpt-4o } }
//	  - op: select_branch
//	    user: u2
//	    args: { conversation: id-0001, message: m9 }
//	    expect: { error: NOT_MEMBER }
//	assertions:
//	  - type: thread
//	    conversation: id-0001
//	    ids: [id-0003, m9]
//
// # Operations
//
//   - create_conversation, create_message, select_branch, hide, show and
//     set_llms run the matching Root transaction as the step's user
//   - deliver applies one server delta through the sync applier
//   - advance moves the clock by a duration
//   - reset clears the replica as on sign-out
//
// # Assertion Types
//
//   - tree: the rendered message tree equals text
//   - thread: the visible thread follows ids
//   - conversations: the user's conversation list has ids in order
//   - daily_count: the trailing 24h model reply count equals count
//   - entity: the cached entity matches expect (subset match), or is absent
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory database, a fixed clock starting at
// start and sequential ids (id-0001, id-0002, ...), so the trace and
// golden snapshots are identical across runs. No server is involved; remote
// calls are skipped as in an offline session.
package harness
