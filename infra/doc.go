// Package infra holds the adapters behind the core interfaces: the MQTT
// transport, metrics sinks and error reporting. Core
// packages never import infra.
package infra
