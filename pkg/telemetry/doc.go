// Package telemetry groups the observability subsystems: structured
// logging setup and Prometheus metrics for the audit pipeline.
package telemetry
