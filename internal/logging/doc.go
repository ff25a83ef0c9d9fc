// Package logging assembles structured slog loggers and formatting helpers used
// across spacesaver's components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker code can automatically
// tag log lines with catalog entry IDs, stages, and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// # Logging Contract
//
// Level semantics:
//   - INFO: narrative milestones plus decisions that change catalog state
//     (classify, claim, acceptance, replace).
//   - WARN: degraded behavior or user action needed (salvage rejected, retention
//     pruning failed).
//   - ERROR: operation failed; will stop or retry.
//   - DEBUG: raw diagnostics, probe payloads, and decisions that do not affect
//     catalog state.
//
// # Required Fields by Level
//
// INFO logs must include:
//   - event_type: lifecycle event (e.g., "stage_start", "stage_complete", "status")
//
// WARN logs must include all three fields (the "WARN triad"):
//   - event_type: what happened (e.g., "log_retention_failed")
//   - error_hint: actionable next step (e.g., "check log_dir permissions")
//   - impact: user-facing consequence (e.g., "old log file remains on disk")
//
// Use WarnWithContext() helper to enforce the WARN triad automatically.
//
// ERROR logs must include:
//   - event_type: what failed
//   - error_hint: actionable next step
//   - error (via logging.Error()): the underlying error
//
// Use ErrorWithContext() helper to enforce error fields automatically.
//
// # Decision Logging
//
// Decision logs record choices that affect catalog state. Required fields:
//   - decision_type: category (e.g., "classify", "acceptance", "salvage")
//   - decision_result: outcome (e.g., "accepted", "rejected", "skip", "pending")
//   - decision_reason: why (e.g., "bitrate_below_floor", "duration_mismatch")
//
// # Common Fields
//
// Progress: progress_stage, progress_percent, progress_message, progress_eta
// Decision: decision_type, decision_result, decision_reason, decision_options
// Events: event_type (stage_start, stage_complete, stage_failure)
// Errors: error_kind, error_operation, error_detail_path, error_code, error_hint, impact
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
