// Package telemetry instruments courier clients with Prometheus metrics and
// OpenTelemetry traces. Both wrap the client's adapter, so they observe
// exactly the network exchange and nothing the interceptors do around it.
package telemetry
