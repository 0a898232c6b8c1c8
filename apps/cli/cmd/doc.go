// Package cmd implements the courier CLI commands using Cobra.
//
// Available commands:
//   - request, get, post, ...: Send one request and print the response
//   - run: Execute request collections with assertions and captures
//   - curl: Send curl command lines or convert them to collections
//   - bench: Load test endpoints at a fixed rate or with virtual users
//   - history: Inspect, query and replay recorded exchanges
//   - events: Print Server-Sent Events from a stream
//   - uri: Print the URI a request would use
//   - validate, list: Check and inspect collection files
//   - init: Create a profile and an example collection
//
// Every command that sends requests shares the client flags (headers,
// proxy, auth, history, tracing) and the profile loaded in setup.
package cmd
