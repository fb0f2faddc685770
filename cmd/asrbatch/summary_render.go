package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"asrbatch/internal/pipeline"
)

func printSummary(out io.Writer, summary pipeline.Summary, colorize bool) {
	kind := statusOK
	switch {
	case summary.Total == 0:
		kind = statusWarn
	case summary.Failed > 0 || summary.Canceled:
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Batch", kind, summary.Line(), colorize))

	rows := [][]string{
		{"Total", strconv.Itoa(summary.Total)},
		{"Succeeded", strconv.Itoa(summary.Succeeded)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Cache hits", strconv.Itoa(summary.CacheHits)},
		{"Engine calls", strconv.Itoa(summary.BackendCalls)},
		{"Elapsed", fmt.Sprintf("%.2fs", summary.Elapsed.Seconds())},
	}
	if summary.DiscoverySkipped > 0 {
		rows = append(rows, []string{"Unsupported entries", strconv.Itoa(summary.DiscoverySkipped)})
	}
	if summary.Canceled {
		rows = append(rows,
			[]string{"Interrupted", strconv.Itoa(summary.Interrupted)},
			[]string{"Not started", strconv.Itoa(summary.NotStarted)},
		)
	}
	fmt.Fprintln(out, renderTable(resultColumns, rows))

	if len(summary.Failures) == 0 {
		return
	}
	failures := make([][]string, 0, len(summary.Failures))
	for _, failure := range summary.Failures {
		message := ""
		if failure.Err != nil {
			message = failure.Err.Error()
		}
		failures = append(failures, []string{filepath.Base(failure.Path), failure.Kind, message})
	}
	fmt.Fprintln(out, renderTable(failureColumns, failures))
}
