// Package config loads courier profiles.
//
// A profile is a YAML or JSON file (.courier.yaml, courier.yaml,
// .courier.json or .courierrc) holding client defaults such as the base
// URL, timeout, headers and proxy. ToRequestConfig turns a profile into
// the defaults of a courier client.
package config
