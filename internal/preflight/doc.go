// Package preflight provides readiness checks for the binaries, directories
// and hosted engines asrbatch depends on.
//
// The "asrbatch status" command runs RunAll to show what a batch would need.
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
