package deps

import (
	"os"
	"path/filepath"
	"testing"

	"asrbatch/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Resolved != present {
		t.Fatalf("expected resolved path %q, got %q", present, results[0].Resolved)
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected blank command to be reported as unconfigured, got %#v", results[2])
	}
}

func TestRequirementsDependOnEngine(t *testing.T) {
	cfg := config.Default()
	cfg.FFmpeg.Binary = "/opt/ffmpeg/bin/ffmpeg"

	cloud := Requirements(&cfg, "b")
	if len(cloud) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(cloud))
	}
	if cloud[0].Command != "/opt/ffmpeg/bin/ffmpeg" || cloud[0].Optional {
		t.Fatalf("ffmpeg must be required and use the configured binary: %#v", cloud[0])
	}
	if !cloud[1].Optional {
		t.Fatalf("uvx must be optional for cloud engines")
	}

	for _, id := range []string{"w", "WhisperX"} {
		local := Requirements(&cfg, id)
		if local[1].Optional {
			t.Fatalf("uvx must be required for engine %q", id)
		}
	}
}

func TestMissingRequired(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: false},
		{Name: "uvx", Available: false, Optional: true},
		{Name: "ok", Available: true},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Name != "FFmpeg" {
		t.Fatalf("unexpected missing list: %#v", missing)
	}
}
