package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	cacheDir   string
	mediaDir   string
	hits       *atomic.Int32
}

// setupCLITestEnv writes a config whose kuaishou engine points at a local
// fake service and returns the paths the tests use.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subtitle_generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Request-Id", fmt.Sprintf("req-%d", hits.Load()))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"text": []map[string]any{
				{"start_time": 0, "end_time": 1.2, "text": "first cue"},
				{"start_time": 1.2, "end_time": 2.5, "text": "second cue"},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "asrbatch.toml"),
		cacheDir:   filepath.Join(base, "cache"),
		mediaDir:   filepath.Join(base, "media"),
		hits:       hits,
	}
	if err := os.MkdirAll(env.mediaDir, 0o755); err != nil {
		t.Fatalf("mkdir media: %v", err)
	}
	content := fmt.Sprintf(
		"[paths]\ncache_dir = %q\nlog_dir = %q\n\n[transcribe]\nretry_backoff_ms = 10\n\n[engines.kuaishou]\nbase_url = %q\n",
		env.cacheDir,
		filepath.Join(base, "logs"),
		srv.URL,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) addMedia(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.mediaDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
