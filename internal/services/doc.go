// Package services defines shared utilities consumed by the encoder client and
// the logging package.
//
// Key responsibilities:
//   - Context helpers that stamp catalog entry IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into a uniform ServiceError, classified by kind and code.
//
// Use these helpers when wiring new worker logic so operational behaviour
// (error handling, observability) stays uniform across the service.
package services
