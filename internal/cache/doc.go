// Package cache persists transcription results keyed by the content
// fingerprint of the normalized audio and the canonical engine name.
//
// Entries live in a SQLite database that outlives a batch run. Reads go
// through an in-memory tier; writes are serialized per key inside the process
// and guarded by an advisory file lock across processes. The first write for a
// key wins and repeated identical writes are no-ops.
//
// A stored row that cannot be decoded or fails validation is treated as a
// miss, logged, and removed so the next successful transcription replaces it.
package cache
