// Package engine maps engine identifiers to transcription backends.
//
// A Registry resolves short codes (b, j, k, w) and long names to a Spec and
// builds each backend at most once per run. Every backend handed out by the
// registry is wrapped in an admission layer that caps concurrent calls per
// engine, paces requests to hosted services, and bounds each call with a
// timeout. The registry never retries; the pipeline owns retry policy.
//
// Backends report failures with services.ErrBackendUnavailable (transient:
// network, auth, quota, timeouts) or services.ErrBackendRejected (the service
// declined this audio).
package engine
