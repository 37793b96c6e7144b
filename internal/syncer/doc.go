// Package syncer keeps the replica converged with the server.
//
// Two producers feed one FIFO: the push connection enqueues every inbound
// WebSocket frame and the reconciler enqueues the result of each periodic
// bootstrap pull. A single goroutine drains the queue and merges each delta
// into its entity store, so remote changes apply strictly in order. Merging
// is idempotent, so a delta seen on both channels is harmless.
package syncer
