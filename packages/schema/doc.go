// Package schema validates response data against JSON Schema documents.
package schema
