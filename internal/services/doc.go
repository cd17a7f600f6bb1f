// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp stage names and run correlation identifiers
//     for logging.
//   - Structured error markers plus the Wrap helper that let the command
//     dispatcher tell warnings (which may be ignored) from validation and
//     fatal errors (which always abort the run).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
