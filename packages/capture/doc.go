// Package capture extracts values from responses for use in later requests.
//
// Values can come from the JSON body (gjson paths), headers, the status code
// or the request duration. Installed on a client, captures are written to a
// Store such as env.Resolver and become available as {{name}} and
// {{source.name}} placeholders.
package capture
