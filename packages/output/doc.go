// Package output renders request outcomes for the command line.
//
// Formats:
//   - pretty: colored status line, indented JSON body, assertion results
//   - json: a single document describing every exchange
//   - raw: the response body only
//   - junit: JUnit XML, one suite per request and one case per assertion
//   - tap: Test Anything Protocol version 13
//
// The json, junit and tap formats accumulate exchanges and write on Flush.
package output
