// Package http dispatches requests through interceptors, transforms and
// pluggable transport adapters.
//
// A Client merges each call's Config over its defaults, runs the request
// interceptors, hands the prepared config to an Adapter and runs the
// response interceptors over the result:
//   - NetAdapter sends requests with net/http
//   - HandlerAdapter serves them with an http.Handler in process
//
// Requests can be cancelled with a cancel.Token, a cancel.Signal or the
// caller's context. Every failure is an *Error classified by Kind.
package http
