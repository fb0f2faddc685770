package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"asrbatch/internal/deps"
	"asrbatch/internal/pipeline"
	"asrbatch/internal/preflight"
	"asrbatch/internal/services"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("FFmpeg", statusError, "not found", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "FFmpeg:", "[ERROR] not found")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Batch", statusOK, "done", true)
	if !strings.HasPrefix(got, statusStyles[statusOK].color) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLines(t *testing.T) {
	statuses := []deps.Status{
		{Name: "FFmpeg", Available: false, Detail: `binary "ffmpeg" not found`},
		{Name: "uvx", Available: false, Optional: true, Detail: `binary "uvx" not found`},
	}
	lines := dependencyLines(statuses, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[ERROR]") || !strings.Contains(lines[0], "1 required missing") {
		t.Fatalf("unexpected summary line %q", lines[0])
	}
	if !strings.Contains(lines[2], "[WARN]") || !strings.Contains(lines[2], "(optional)") {
		t.Fatalf("optional dependency should warn, got %q", lines[2])
	}
}

func TestPreflightLines(t *testing.T) {
	lines := preflightLines([]preflight.Result{
		{Name: "Cache directory", Passed: true, Detail: "/tmp (read/write ok)"},
		{Name: "JianYing signer", Detail: "not configured"},
	}, false)
	if !strings.Contains(lines[0], "[OK]") || !strings.Contains(lines[1], "[ERROR]") {
		t.Fatalf("unexpected lines %q", lines)
	}
	if empty := preflightLines(nil, false); !strings.Contains(empty[0], "nothing to check") {
		t.Fatalf("unexpected empty rendering %q", empty)
	}
}

func TestPrintSummaryListsFailures(t *testing.T) {
	var b strings.Builder
	printSummary(&b, pipeline.Summary{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Elapsed:   1500 * time.Millisecond,
		Failures: []pipeline.Failure{{
			Path: "/media/broken.avi",
			Kind: "conversion_failed",
			Err:  services.Wrap(services.ErrConversionFailed, "normalize", "run ffmpeg", "ffmpeg failed", errors.New("exit status 1")),
		}},
	}, false)
	out := b.String()
	requireContains(t, out, "total=2 succeeded=1 failed=1 skipped=0 elapsed=1.50s")
	requireContains(t, out, "broken.avi")
	requireContains(t, out, "conversion_failed")
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate changed short value: %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestRenderTableTruncatesLimitedColumns(t *testing.T) {
	long := strings.Repeat("x", failureMessageLimit+20)
	out := renderTable(failureColumns, [][]string{{"clip.mp4", "write_failed", long}})

	requireContains(t, out, strings.Repeat("x", failureMessageLimit-1)+"…")
	if strings.Contains(out, strings.Repeat("x", failureMessageLimit)) {
		t.Fatalf("error column not truncated:\n%s", out)
	}
	requireContains(t, out, "write_failed")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(cacheEngineColumns, [][]string{{"bcut"}})
	requireContains(t, strings.ToUpper(out), "ENTRIES")
	requireContains(t, out, "bcut")
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output without columns")
	}
}
