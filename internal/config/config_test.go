package config_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asrbatch/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("ASRBATCH_CACHE_DIR", "")
	t.Setenv("ASRBATCH_ENGINE", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".cache", "asrbatch"); cfg.Paths.CacheDir != want {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "asrbatch", "logs"); cfg.Paths.LogDir != want {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, want)
	}
	if cfg.Transcribe.Engine != "b" {
		t.Fatalf("expected default engine b, got %q", cfg.Transcribe.Engine)
	}
	if cfg.Transcribe.Format != "txt" {
		t.Fatalf("expected default format txt, got %q", cfg.Transcribe.Format)
	}
	if !cfg.Cache.Enabled {
		t.Fatal("expected cache enabled by default")
	}
	if cfg.CacheDBPath() != filepath.Join(cfg.Paths.CacheDir, "transcripts.db") {
		t.Fatalf("unexpected cache db path %q", cfg.CacheDBPath())
	}
	if cfg.FFmpegBinary() != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary %q", cfg.FFmpegBinary())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "asrbatch.toml")
	content := `
[paths]
cache_dir = "` + filepath.Join(tempDir, "cache") + `"

[transcribe]
engine = " K "
format = "SRT"
workers = 4

[engines.jianying]
sign_url = "https://sign.example.com/sign"
concurrency = 3

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Transcribe.Engine != "k" {
		t.Fatalf("expected normalized engine k, got %q", cfg.Transcribe.Engine)
	}
	if cfg.Transcribe.Format != "srt" {
		t.Fatalf("expected normalized format srt, got %q", cfg.Transcribe.Format)
	}
	if cfg.Transcribe.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Transcribe.Workers)
	}
	if cfg.Engines.JianYing.SignURL != "https://sign.example.com/sign" {
		t.Fatalf("unexpected sign url %q", cfg.Engines.JianYing.SignURL)
	}
	if cfg.Engines.JianYing.Concurrency != 3 {
		t.Fatalf("expected embedded concurrency 3, got %d", cfg.Engines.JianYing.Concurrency)
	}
	if cfg.Engines.JianYing.BaseURL == "" {
		t.Fatal("expected jianying base url default to survive partial section")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"format", "[transcribe]\nformat = \"vtt\"\n", "transcribe.format"},
		{"workers", "[transcribe]\nworkers = 0\n", "transcribe.workers"},
		{"concurrency", "[engines.bcut]\nconcurrency = -1\n", "engines.bcut.concurrency"},
		{"log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"unknown key", "[transcribe]\nbogus = 1\n", "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "asrbatch.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("ASRBATCH_CACHE_DIR", filepath.Join(tempDir, "env-cache"))
	t.Setenv("ASRBATCH_ENGINE", "J")
	t.Setenv("WHISPERX_HF_TOKEN", " hf-token ")

	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempDir, "env-cache") {
		t.Fatalf("expected env cache dir, got %q", cfg.Paths.CacheDir)
	}
	if cfg.Transcribe.Engine != "j" {
		t.Fatalf("expected env engine j, got %q", cfg.Transcribe.Engine)
	}
	if cfg.Engines.WhisperX.HFToken != "hf-token" {
		t.Fatalf("expected trimmed hf token, got %q", cfg.Engines.WhisperX.HFToken)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config", "asrbatch.toml")
	if err := config.CreateSample(path, false); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
	if err := config.CreateSample(path, false); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist for existing file, got %v", err)
	}
	if err := config.CreateSample(path, true); err != nil {
		t.Fatalf("CreateSample overwrite: %v", err)
	}
}
