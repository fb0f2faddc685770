package pipeline

import (
	"errors"
	"testing"
	"time"

	"asrbatch/internal/transcript"
)

func TestTaskLifecycle(t *testing.T) {
	task := newTask(1, "/media/talk.mkv", "bcut", transcript.FormatSRT, true)
	if task.Status != StatusPending {
		t.Fatalf("new task status = %s", task.Status)
	}
	if task.OutputPath != "/media/talk.srt" {
		t.Fatalf("output path = %s", task.OutputPath)
	}
	for _, next := range []Status{StatusNormalizing, StatusTranscribing, StatusRendering, StatusDone} {
		if err := task.advance(next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	task.fail(errors.New("late"))
	if task.Status != StatusDone || task.Reason != nil {
		t.Fatalf("terminal task changed: %s %v", task.Status, task.Reason)
	}
}

func TestTaskRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{StatusPending, StatusTranscribing},
		{StatusPending, StatusDone},
		{StatusNormalizing, StatusRendering},
		{StatusTranscribing, StatusDone},
		{StatusDone, StatusFailed},
		{StatusFailed, StatusNormalizing},
	}
	for _, tt := range tests {
		task := &Task{Status: tt.from}
		if err := task.advance(tt.to); err == nil {
			t.Errorf("%s -> %s accepted", tt.from, tt.to)
		}
		if task.Status != tt.from {
			t.Errorf("status changed on rejected move: %s", task.Status)
		}
	}
}

func TestFailedReachableFromWorkingStages(t *testing.T) {
	for _, from := range []Status{StatusNormalizing, StatusTranscribing, StatusRendering} {
		if !isValidTransition(from, StatusFailed) {
			t.Errorf("%s -> failed rejected", from)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := map[string]string{
		"/a/b/clip.mp4":       "/a/b/clip.json",
		"/a/b/archive.tar.ts": "/a/b/archive.tar.json",
		"/a/b/noext":          "/a/b/noext.json",
	}
	for src, want := range tests {
		if got := OutputPath(src, transcript.FormatJSON); got != want {
			t.Errorf("OutputPath(%s) = %s, want %s", src, got, want)
		}
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	base := 2 * time.Second
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxRetryBackoff, maxRetryBackoff}
	for i, w := range want {
		if got := backoff(base, i+1); got != w {
			t.Errorf("attempt %d: backoff = %s, want %s", i+1, got, w)
		}
	}
	if backoff(0, 3) != 0 {
		t.Errorf("zero base must not wait")
	}
}

func TestSummaryExitCode(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    int
	}{
		{"empty batch", Summary{}, 1},
		{"all succeeded", Summary{Total: 2, Succeeded: 2}, 0},
		{"all skipped", Summary{Total: 1, Skipped: 1}, 0},
		{"one failed", Summary{Total: 2, Succeeded: 1, Failed: 1}, 1},
		{"canceled early", Summary{Total: 3, Succeeded: 1, NotStarted: 2, Canceled: true}, 1},
	}
	for _, tt := range tests {
		if got := tt.summary.ExitCode(); got != tt.want {
			t.Errorf("%s: ExitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSummaryLine(t *testing.T) {
	s := Summary{Total: 3, Succeeded: 2, Failed: 1, Elapsed: 1234 * time.Millisecond}
	if got, want := s.Line(), "total=3 succeeded=2 failed=1 skipped=0 elapsed=1.23s"; got != want {
		t.Fatalf("Line() = %q, want %q", got, want)
	}
}
