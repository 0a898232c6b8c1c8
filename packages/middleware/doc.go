// Package middleware provides ready-made interceptors for courier clients:
// request ids, client-side rate limiting and structured logging.
package middleware
