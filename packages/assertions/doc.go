// Package assertions checks responses against expressions such as
// "status == 200" or "body.items length 3".
//
// Subjects:
//   - status, statusText, duration
//   - header.<Name>
//   - body, body.<path>, jsonpath <path>, or a bare gjson path
//
// Operators: ==, !=, >, >=, <, <=, contains, startsWith, endsWith, matches,
// exists, length, includes, in, type, each and schema, with ! negations
// where they make sense.
package assertions
