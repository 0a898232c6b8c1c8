// Package builtin provides the functions available in {{fn()}} template
// expressions.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(), timestamp(), timestampMs(), date(format): Current time
//   - random(min, max): Random integer in range
//   - randomString(length), randomEmail(): Random values
//   - base64(value), base64Decode(value), md5(value), sha256(value)
//   - urlEncode(value), urlDecode(value)
//   - env(name, default): Environment variable value
package builtin
