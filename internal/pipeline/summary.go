package pipeline

import (
	"fmt"
	"time"
)

// Failure names a file that did not produce an output and why.
type Failure struct {
	Path string
	Kind string
	Err  error
}

// Summary aggregates the outcome of one batch. Succeeded, Failed, Skipped and
// NotStarted always add up to Total.
type Summary struct {
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	NotStarted int

	// Interrupted counts failed tasks that stopped at a stage boundary after
	// cancellation.
	Interrupted int
	// DiscoverySkipped counts entries discovery passed over; they are not tasks.
	DiscoverySkipped int

	CacheHits    int
	BackendCalls int
	Canceled     bool
	Elapsed      time.Duration
	Failures     []Failure
	Outputs      []string
}

// ExitCode is 0 when at least one file was handled and none failed.
func (s Summary) ExitCode() int {
	if s.Total == 0 || s.Failed > 0 || s.NotStarted > 0 {
		return 1
	}
	return 0
}

// Line renders the one-line batch totals.
func (s Summary) Line() string {
	line := fmt.Sprintf("total=%d succeeded=%d failed=%d skipped=%d elapsed=%.2fs",
		s.Total, s.Succeeded, s.Failed, s.Skipped, s.Elapsed.Seconds())
	if s.Canceled {
		line += fmt.Sprintf(" canceled not_started=%d", s.NotStarted)
	}
	return line
}
