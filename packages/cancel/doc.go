// Package cancel implements cooperative cancellation for in-flight requests.
//
// A Token is cancelled once through the function handed to its executor (or
// a Source); a Signal is any abort flag, such as a Controller's AbortSignal
// or a context wrapped by ContextSignal. Observer unifies both so transports
// only deal with one abstraction.
package cancel
