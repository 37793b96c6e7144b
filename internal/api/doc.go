// Package api is the JSON client for the threadkeep server.
//
// Write calls carry client-generated ids, so retrying a create is safe. A
// 429 response is returned as an *Error matching ErrRateLimited.
package api
