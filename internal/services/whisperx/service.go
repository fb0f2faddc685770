package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"asrbatch/internal/language"
)

// CommandRunner executes name with args and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ErrNoOutput reports that WhisperX exited cleanly without writing its JSON file.
var ErrNoOutput = errors.New("whisperx produced no json output")

// RunError is a failed launcher invocation with the tail of its output.
type RunError struct {
	Binary string
	Output string
	Err    error
}

func (e *RunError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Binary, e.Err, e.Output)
}

func (e *RunError) Unwrap() error { return e.Err }

// outputTailLimit bounds how much launcher output a RunError keeps.
const outputTailLimit = 512

// tuning holds the decoding flags passed on every run, in order.
var tuning = [][2]string{
	{"--batch_size", BatchSize},
	{"--output_format", OutputFormat},
	{"--segment_resolution", SegmentResolution},
	{"--chunk_size", ChunkSize},
	{"--vad_onset", VADOnset},
	{"--vad_offset", VADOffset},
	{"--beam_size", BeamSize},
	{"--best_of", BestOf},
	{"--temperature", Temperature},
}

// Service runs WhisperX through uvx, one audio file per call.
type Service struct {
	cfg    Config
	runner CommandRunner
}

// NewService fills unset Config fields with defaults.
func NewService(cfg Config) *Service {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = UVXCommand
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	return &Service{cfg: cfg, runner: execRunner}
}

// WithCommandRunner overrides process execution (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner == nil {
		runner = execRunner
	}
	s.runner = runner
}

func (s *Service) Binary() string { return s.cfg.Binary }

func (s *Service) Model() string { return s.cfg.Model }

func (s *Service) CUDAEnabled() bool { return s.cfg.CUDAEnabled }

// TranscribeFile runs WhisperX on source with outputDir as its scratch space
// and returns the segments from the JSON it writes there.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir string) ([]Segment, error) {
	if source == "" || outputDir == "" {
		return nil, errors.New("whisperx: source and output dir are required")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("whisperx: ensure output dir: %w", err)
	}

	output, err := s.runner(ctx, s.cfg.Binary, s.buildArgs(source, outputDir)...)
	if err != nil {
		return nil, &RunError{Binary: s.cfg.Binary, Output: tail(output), Err: err}
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))+".json")
	segments, err := LoadSegments(jsonPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoOutput, jsonPath)
	}
	return segments, err
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 16+2*len(tuning))
	args = append(args, "--index-url")
	if s.cfg.CUDAEnabled {
		args = append(args, CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, PypiIndexURL)
	}

	args = append(args, "whisperx", source, "--model", s.cfg.Model, "--output_dir", outputDir)
	for _, flag := range tuning {
		args = append(args, flag[0], flag[1])
	}

	args = append(args, "--vad_method", s.cfg.VADMethod)
	if s.cfg.VADMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}
	if lang := language.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		return append(args, "--device", CUDADevice)
	}
	return append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// pyannote checkpoints fail under torch's weights_only default.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return cmd.CombinedOutput()
}

// Segment is one entry of the WhisperX JSON output. Times are seconds.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// LoadSegments reads the segments array from a WhisperX JSON file. A missing
// file surfaces as os.ErrNotExist.
func LoadSegments(jsonPath string) ([]Segment, error) {
	file, err := os.Open(jsonPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var payload struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json %s: %w", filepath.Base(jsonPath), err)
	}
	return payload.Segments, nil
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > outputTailLimit {
		return "..." + text[len(text)-outputTailLimit:]
	}
	return text
}
