// Package runner sends the requests of a collection through a courier
// client.
//
// Requests run in dependency order. A request whose dependency failed is
// skipped, captures feed later requests through the client's resolver,
// and failed requests may be retried. Collections without dependencies
// can run in parallel with bounded concurrency.
package runner
