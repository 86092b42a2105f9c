// Package metrics defines the Prometheus instrumentation for the voice
// dialog service.
package metrics
