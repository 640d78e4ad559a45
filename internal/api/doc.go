// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal workflow models into transport-friendly DTOs
// that dashboards and the CLI can render without coupling to internal types.
//
// # Key Types
//
// InstanceView: transport representation of a workflow instance with progress
// percentage, per-attempt step history, recorded failures, and an estimate of
// the remaining processing time.
//
// EngineStatus: daemon running state, instance stats, and stage health.
//
// # Converters
//
// FromInstance: workflow.Instance -> InstanceView with humanized stage
// labels, attempt durations, and remaining-time estimation from observed
// stage durations.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (workflow.Stage, workflow.Status) are exposed as lowercase strings.
// Timestamps use RFC 3339. Stage outputs are passed through as
// json.RawMessage to avoid double-encoding.
package api
