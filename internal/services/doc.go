// Package services defines shared utilities consumed by the pipeline stages and
// the transcription engines.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, task indexes, stage names, engine
//     names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries a
//     kind (conversion, backend unavailable/rejected, write) that the batch
//     summary and retry policy can classify with errors.Is.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
