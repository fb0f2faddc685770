package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"asrbatch/internal/config"
	"asrbatch/internal/services"
)

const fakeUVX = `#!/bin/sh
out=""
src=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--output_dir" ]; then out="$arg"; fi
  if [ "$prev" = "whisperx" ]; then src="$arg"; fi
  prev="$arg"
done
base=$(basename "$src")
base="${base%.*}"
printf '{"segments":[{"text":"local model","start":0.25,"end":1.5}]}' > "$out/$base.json"
`

func fakeLauncher(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uvx")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write fake uvx: %v", err)
	}
	return path
}

func TestWhisperXLifecycle(t *testing.T) {
	settings := config.Default().Engines.WhisperX
	settings.Binary = fakeLauncher(t, fakeUVX)
	backend := NewWhisperX(settings, nil)

	if backend.WorkDir() != "" {
		t.Fatal("expected lazy preparation")
	}
	result, err := backend.Transcribe(context.Background(), writeAudio(t, "pcm"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Segments) != 1 || result.Segments[0].Start != 250*time.Millisecond || result.Segments[0].Text != "local model" {
		t.Fatalf("unexpected result %+v", result)
	}

	workDir := backend.WorkDir()
	if workDir == "" {
		t.Fatal("expected scratch directory after first call")
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected per-call output removed, found %d entries", len(entries))
	}

	if err := backend.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err=%v", err)
	}
	if _, err := backend.Transcribe(context.Background(), writeAudio(t, "pcm")); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected closed engine to be unavailable, got %v", err)
	}
}

func TestWhisperXMissingLauncher(t *testing.T) {
	settings := config.Default().Engines.WhisperX
	settings.Binary = filepath.Join(t.TempDir(), "missing-uvx")
	backend := NewWhisperX(settings, nil)
	defer backend.Close()
	if _, err := backend.Transcribe(context.Background(), writeAudio(t, "pcm")); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestWhisperXNoOutputIsRejected(t *testing.T) {
	settings := config.Default().Engines.WhisperX
	settings.Binary = fakeLauncher(t, "#!/bin/sh\nexit 0\n")
	backend := NewWhisperX(settings, nil)
	defer backend.Close()
	if _, err := backend.Transcribe(context.Background(), writeAudio(t, "pcm")); !errors.Is(err, services.ErrBackendRejected) {
		t.Fatalf("expected ErrBackendRejected, got %v", err)
	}
}

func TestWhisperXProcessFailureIsUnavailable(t *testing.T) {
	settings := config.Default().Engines.WhisperX
	settings.Binary = fakeLauncher(t, "#!/bin/sh\necho 'CUDA out of memory' >&2\nexit 1\n")
	backend := NewWhisperX(settings, nil)
	defer backend.Close()
	if _, err := backend.Transcribe(context.Background(), writeAudio(t, "pcm")); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
