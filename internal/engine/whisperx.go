package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"asrbatch/internal/config"
	"asrbatch/internal/logging"
	"asrbatch/internal/services"
	"asrbatch/internal/services/whisperx"
	"asrbatch/internal/transcript"
)

// WhisperXName is the canonical name of the local model engine.
const WhisperXName = "whisperx"

// WhisperX runs the model locally. The launcher lookup and scratch directory
// are prepared on first use and released by Close.
type WhisperX struct {
	service *whisperx.Service
	logger  *slog.Logger

	prepareOnce sync.Once
	prepareErr  error
	mu          sync.Mutex
	workDir     string
	closed      bool
}

// NewWhisperX builds the local engine without touching the filesystem.
func NewWhisperX(settings config.WhisperX, logger *slog.Logger) *WhisperX {
	return &WhisperX{
		service: whisperx.NewService(whisperx.Config{
			Model:       settings.Model,
			Language:    settings.Language,
			CUDAEnabled: settings.CUDAEnabled,
			VADMethod:   settings.VADMethod,
			HFToken:     settings.HFToken,
			Binary:      settings.Binary,
		}),
		logger: logging.NewComponentLogger(logger, "whisperx"),
	}
}

func newWhisperXFromConfig(cfg *config.Config, logger *slog.Logger) (Backend, error) {
	return NewWhisperX(cfg.Engines.WhisperX, logger), nil
}

func (w *WhisperX) Name() string { return WhisperXName }

func (w *WhisperX) prepare() error {
	w.prepareOnce.Do(func() {
		if _, err := exec.LookPath(w.service.Binary()); err != nil {
			w.prepareErr = services.Wrap(services.ErrBackendUnavailable, WhisperXName, "prepare",
				fmt.Sprintf("Launcher %q not found", w.service.Binary()), err)
			return
		}
		dir, err := os.MkdirTemp("", "asrbatch-whisperx-")
		if err != nil {
			w.prepareErr = services.Wrap(services.ErrBackendUnavailable, WhisperXName, "prepare", "Could not create scratch directory", err)
			return
		}
		w.mu.Lock()
		w.workDir = dir
		w.mu.Unlock()
		w.logger.Info("whisperx prepared",
			logging.String("model", w.service.Model()),
			logging.Bool("cuda", w.service.CUDAEnabled()),
			logging.String("work_dir", dir),
		)
	})
	return w.prepareErr
}

func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) (transcript.Result, error) {
	if err := w.prepare(); err != nil {
		return transcript.Result{}, err
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, WhisperXName, "transcribe", "Engine already closed", nil)
	}
	outDir, err := os.MkdirTemp(w.workDir, "call-")
	w.mu.Unlock()
	if err != nil {
		return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, WhisperXName, "transcribe", "Could not create output directory", err)
	}
	defer os.RemoveAll(outDir)

	segments, err := w.service.TranscribeFile(ctx, audioPath, outDir)
	if err != nil {
		if errors.Is(err, whisperx.ErrNoOutput) {
			return transcript.Result{}, services.Wrap(services.ErrBackendRejected, WhisperXName, "transcribe", "Model produced no transcript", err)
		}
		return transcript.Result{}, services.Wrap(services.ErrBackendUnavailable, WhisperXName, "transcribe", "Model run failed", err)
	}

	result := transcript.Result{Engine: WhisperXName, ResponseID: w.service.Model()}
	for _, seg := range segments {
		result.Segments = append(result.Segments, transcript.Segment{
			Start: seconds(seg.Start),
			End:   seconds(seg.End),
			Text:  seg.Text,
		})
	}
	return result, nil
}

// Close removes the scratch directory. Further calls fail as unavailable.
func (w *WhisperX) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.workDir == "" {
		return nil
	}
	dir := w.workDir
	w.workDir = ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove whisperx scratch dir: %w", err)
	}
	return nil
}

// WorkDir reports the scratch directory, empty before first use or after Close.
func (w *WhisperX) WorkDir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.workDir
}
