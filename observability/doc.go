// Package observability provides lifecycle extensions for monitoring
// Seqra workflows: an OpenTelemetry MetricsExtension recording
// system-wide counters and durations for task and workflow events, and
// an AuditExtension emitting a structured audit trail through slog.
package observability
