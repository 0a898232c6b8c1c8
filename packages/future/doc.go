// Package future provides a settle-once result type with continuation
// combinators.
//
// It provides:
//   - Future[T] with Wait and context-aware Await
//   - Then, Map and FlatMap continuations
//   - All for fan-in over several futures
package future
