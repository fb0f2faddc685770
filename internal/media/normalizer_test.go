package media_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"asrbatch/internal/media"
	"asrbatch/internal/services"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

const writeLastArg = `for last; do :; done
printf 'fake-audio' > "$last"
`

func TestNormalizeNativeAudioPassesThrough(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.WAV"} {
		src := filepath.Join(dir, name)
		if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		n := media.NewNormalizer(filepath.Join(dir, "never-called"), 0)
		audio, err := n.Normalize(context.Background(), src)
		if err != nil {
			t.Fatalf("Normalize(%s) error: %v", name, err)
		}
		if audio.Path != src || audio.Temporary {
			t.Fatalf("expected pass-through for %s, got %+v", name, audio)
		}
		if err := audio.Cleanup(); err != nil {
			t.Fatalf("cleanup: %v", err)
		}
		if _, err := os.Stat(src); err != nil {
			t.Fatalf("cleanup removed source file: %v", err)
		}
	}
}

func TestNormalizeConvertsToSiblingMP3(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	ffmpeg := writeScript(t, t.TempDir(), "ffmpeg", writeLastArg)

	n := media.NewNormalizer(ffmpeg, time.Minute)
	audio, err := n.Normalize(context.Background(), src)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if audio.Path != filepath.Join(dir, "talk.mp3") || !audio.Temporary {
		t.Fatalf("unexpected audio %+v", audio)
	}
	if err := audio.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(audio.Path); !os.IsNotExist(err) {
		t.Fatalf("expected temporary audio removed, stat err=%v", err)
	}
}

func TestNormalizeAvoidsExistingSibling(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mkv")
	existing := filepath.Join(dir, "talk.mp3")
	for _, p := range []string{src, existing} {
		if err := os.WriteFile(p, []byte("keep"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ffmpeg := writeScript(t, t.TempDir(), "ffmpeg", writeLastArg)

	audio, err := media.NewNormalizer(ffmpeg, 0).Normalize(context.Background(), src)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	defer audio.Cleanup()
	if audio.Path == existing {
		t.Fatal("normalizer targeted the user's existing mp3")
	}
	if !strings.HasPrefix(filepath.Base(audio.Path), "talk.asrbatch-") {
		t.Fatalf("unexpected unique name %s", audio.Path)
	}
	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "keep" {
		t.Fatalf("existing mp3 modified: %q %v", data, err)
	}
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "non-zero exit", script: "echo 'Invalid data found' >&2\nexit 1\n"},
		{name: "missing output", script: "exit 0\n"},
		{name: "empty output", script: "for last; do :; done\n: > \"$last\"\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "broken.avi")
			if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
				t.Fatal(err)
			}
			ffmpeg := writeScript(t, t.TempDir(), "ffmpeg", tc.script)

			_, err := media.NewNormalizer(ffmpeg, 0).Normalize(context.Background(), src)
			if !errors.Is(err, services.ErrConversionFailed) {
				t.Fatalf("expected ErrConversionFailed, got %v", err)
			}
			if _, statErr := os.Stat(filepath.Join(dir, "broken.mp3")); !os.IsNotExist(statErr) {
				t.Fatalf("expected no leftover audio, stat err=%v", statErr)
			}
		})
	}
}

func TestNormalizeUsesFixedArgumentContract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.flac")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	var gotName string
	var gotArgs []string
	n := media.NewNormalizer("custom-ffmpeg", 0)
	n.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return nil, os.WriteFile(args[len(args)-1], []byte("mp3"), 0o644)
	})

	audio, err := n.Normalize(context.Background(), src)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	defer audio.Cleanup()

	if gotName != "custom-ffmpeg" {
		t.Fatalf("unexpected binary %q", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-i " + src, "-ac 1", "-f mp3", "-af aresample=async=1", "-y " + audio.Path} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %q", want, joined)
		}
	}
}

func TestNormalizeHonorsTimeout(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "slow.ogg")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	n := media.NewNormalizer("ffmpeg", 10*time.Millisecond)
	n.WithCommandRunner(func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if _, err := n.Normalize(context.Background(), src); !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed on timeout, got %v", err)
	}
}
