// Package interceptor provides the ordered handler registry used for the
// request and response sides of a client.
package interceptor
