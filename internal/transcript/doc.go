// Package transcript holds the timed-segment result model shared by engines,
// the cache, and the output renderers.
//
// Producers call Normalize and Validate before handing a Result onward; the
// renderers assume well-formed input and never fail.
package transcript
