// Package history records request/response exchanges in a SQLite database
// so they can be listed and replayed from the command line.
package history
