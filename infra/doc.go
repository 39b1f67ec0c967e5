// Package infra holds the technical adapters: persistence backends,
// the MQTT location feed, metrics exporters and the logging setup.
// Adapters depend on core interfaces, never the other way around.
package infra
