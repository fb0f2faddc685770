package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"asrbatch/internal/services"
)

// DefaultBinary is used when no ffmpeg path is configured.
const DefaultBinary = "ffmpeg"

const stderrTailLimit = 512

var nativeExtensions = map[string]struct{}{
	".mp3": {},
	".wav": {},
}

// IsNative reports whether path can be handed to an engine without conversion.
func IsNative(path string) bool {
	_, ok := nativeExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Audio is the working audio file for one task.
type Audio struct {
	Path      string
	Temporary bool
}

// Cleanup removes the file when it was produced by the normalizer. Source
// files are never touched.
func (a Audio) Cleanup() error {
	if !a.Temporary || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove temporary audio %s: %w", a.Path, err)
	}
	return nil
}

// CommandRunner executes a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Normalizer drives ffmpeg.
type Normalizer struct {
	binary  string
	timeout time.Duration
	runner  CommandRunner
}

// NewNormalizer builds a normalizer. A zero timeout disables the per-file limit.
func NewNormalizer(binary string, timeout time.Duration) *Normalizer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Normalizer{binary: binary, timeout: timeout}
}

// WithCommandRunner overrides process execution (for testing).
func (n *Normalizer) WithCommandRunner(runner CommandRunner) {
	n.runner = runner
}

// Binary returns the configured ffmpeg executable.
func (n *Normalizer) Binary() string { return n.binary }

// Normalize returns audio suitable for transcription.
func (n *Normalizer) Normalize(ctx context.Context, source string) (Audio, error) {
	if IsNative(source) {
		return Audio{Path: source}, nil
	}
	dest, err := reserveOutput(source)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrConversionFailed, "normalize", "choose output", "Could not choose a temporary audio path", err)
	}

	runCtx := ctx
	if n.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	output, runErr := n.run(runCtx, n.binary, BuildArgs(source, dest)...)
	audio := Audio{Path: dest, Temporary: true}
	if runErr != nil {
		_ = audio.Cleanup()
		return Audio{}, services.Wrap(services.ErrConversionFailed, "normalize", "run ffmpeg",
			fmt.Sprintf("ffmpeg failed for %s: %s", filepath.Base(source), tail(output)), runErr)
	}
	info, statErr := os.Stat(dest)
	if statErr != nil {
		_ = audio.Cleanup()
		return Audio{}, services.Wrap(services.ErrConversionFailed, "normalize", "verify output",
			fmt.Sprintf("ffmpeg produced no output for %s", filepath.Base(source)), statErr)
	}
	if info.Size() == 0 {
		_ = audio.Cleanup()
		return Audio{}, services.Wrap(services.ErrConversionFailed, "normalize", "verify output",
			fmt.Sprintf("ffmpeg produced an empty file for %s", filepath.Base(source)), nil)
	}
	return audio, nil
}

// BuildArgs returns the fixed ffmpeg argument contract: mono, mp3 container,
// async resampling to correct drift, overwrite without prompting.
func BuildArgs(source, dest string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-ac", "1",
		"-f", "mp3",
		"-af", "aresample=async=1",
		"-y",
		dest,
	}
}

func (n *Normalizer) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if n.runner != nil {
		return n.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// reserveOutput claims the sibling <base>.mp3, or a unique variant when that
// name is taken, by creating it exclusively. ffmpeg then overwrites the empty
// placeholder. User files are never overwritten and concurrent tasks never
// share an output.
func reserveOutput(source string) (string, error) {
	base := strings.TrimSuffix(source, filepath.Ext(source))
	candidates := []string{base + ".mp3"}
	for i := 0; i < 3; i++ {
		candidates = append(candidates, fmt.Sprintf("%s.asrbatch-%s.mp3", base, uuid.NewString()[:8]))
	}
	var lastErr error
	for _, candidate := range candidates {
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return candidate, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "no output"
	}
	if len(text) > stderrTailLimit {
		text = "..." + text[len(text)-stderrTailLimit:]
	}
	return text
}
