package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"asrbatch/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEndpoint_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "BcutASR", srv.URL)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), "BcutASR", srv.URL)
	if result.Passed {
		t.Fatal("expected failure for 502")
	}
}

func TestCheckEndpoint_MissingURL(t *testing.T) {
	result := CheckEndpoint(context.Background(), "BcutASR", "  ")
	if result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, "b", false); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_DirectoriesAndEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CacheDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Cache.Enabled = true
	cfg.Logging.FileEnabled = true

	results := RunAll(context.Background(), &cfg, "b", false)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
}

func TestRunAll_LocalEngineSkipsEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Logging.FileEnabled = false

	if results := RunAll(context.Background(), &cfg, "w", false); len(results) != 0 {
		t.Fatalf("expected no checks, got %+v", results)
	}
}

func TestRunAll_JianYingRequiresSigner(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Engines.JianYing.SignURL = ""

	results := RunAll(context.Background(), &cfg, "jianying", false)
	var signer *Result
	for i := range results {
		if results[i].Name == "JianYing signer" {
			signer = &results[i]
		}
	}
	if signer == nil || signer.Passed {
		t.Fatalf("expected failing signer check, got %+v", results)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := config.Default()
	cfg.FFmpeg.Binary = "definitely-missing-ffmpeg"
	statuses := CheckSystemDeps(&cfg, "b")
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing ffmpeg")
	}
}
