// Package root composes the four entity stores into the views and
// optimistic transactions the presentation layer uses.
//
// A Root is created per session with New and passed to its consumers. Every
// transaction writes the cache synchronously with a client-generated id,
// then makes one best-effort server call carrying that id. Server
// rejections never roll back local state; a rate-limit rejection is
// reported through the Notifier.
package root
