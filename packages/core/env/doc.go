// Package env resolves {{...}} placeholders in request configs.
//
// It provides:
//   - .env file loading
//   - named environments from profiles or courier.env.yaml
//   - {{variable}}, {{$ENV_VAR}} and {{fn()}} interpolation
//   - captures recorded from earlier responses
//   - a synchronous request interceptor that resolves a config before dispatch
package env
