package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"asrbatch/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Transcribe contains batch defaults that CLI flags may override.
type Transcribe struct {
	Engine                string `toml:"engine"`
	Format                string `toml:"format"`
	Workers               int    `toml:"workers"`
	RetryAttempts         int    `toml:"retry_attempts"`
	RetryBackoffMillis    int    `toml:"retry_backoff_ms"`
	BackendTimeoutSeconds int    `toml:"backend_timeout_seconds"`
	SkipExisting          bool   `toml:"skip_existing"`
}

// Cache contains configuration for the transcript result cache.
type Cache struct {
	Enabled          bool `toml:"enabled"`
	MemoryTTLMinutes int  `toml:"memory_ttl_minutes"`
	PruneAfterDays   int  `toml:"prune_after_days"`
}

// FFmpeg contains configuration for the media normalizer.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CloudEngine holds the settings shared by the hosted recognition services.
type CloudEngine struct {
	BaseURL            string `toml:"base_url"`
	Concurrency        int    `toml:"concurrency"`
	RequestsPerMinute  int    `toml:"requests_per_minute"`
	PollIntervalMillis int    `toml:"poll_interval_ms"`
	PollAttempts       int    `toml:"poll_attempts"`
}

// JianYing extends CloudEngine with the request signing endpoint the service requires.
type JianYing struct {
	CloudEngine
	SignURL string `toml:"sign_url"`
}

// WhisperX contains configuration for the locally hosted model engine.
type WhisperX struct {
	Model       string `toml:"model"`
	Language    string `toml:"language"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
	Concurrency int    `toml:"concurrency"`
	Binary      string `toml:"binary"`
}

// Engines groups per-engine settings.
type Engines struct {
	Bcut     CloudEngine `toml:"bcut"`
	JianYing JianYing    `toml:"jianying"`
	KuaiShou CloudEngine `toml:"kuaishou"`
	WhisperX WhisperX    `toml:"whisperx"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	FileEnabled   bool   `toml:"file_enabled"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for asrbatch.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories
//   - Transcribe: default engine/format, worker count, retry and timeout policy
//   - Cache: result cache toggles and retention
//   - FFmpeg: transcoder binary and timeout
//   - Engines: per-engine endpoints, admission limits, and model settings
//   - Logging: log format, level, and rotation
type Config struct {
	Paths      Paths      `toml:"paths"`
	Transcribe Transcribe `toml:"transcribe"`
	Cache      Cache      `toml:"cache"`
	FFmpeg     FFmpeg     `toml:"ffmpeg"`
	Engines    Engines    `toml:"engines"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("asrbatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Paths.CacheDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CacheDBPath returns the location of the SQLite transcript cache.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.Paths.CacheDir, "transcripts.db")
}

// FFmpegBinary returns the ffmpeg executable used for normalization.
func (c *Config) FFmpegBinary() string {
	if b := strings.TrimSpace(c.FFmpeg.Binary); b != "" {
		return b
	}
	return defaultFFmpegBinary
}

// WhisperXBinary returns the launcher used for the local model engine.
func (c *Config) WhisperXBinary() string {
	if b := strings.TrimSpace(c.Engines.WhisperX.Binary); b != "" {
		return b
	}
	return defaultWhisperXBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "asrbatch")
	}
	return "~/.cache/asrbatch"
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration to path, creating parent
// directories. An existing file is kept unless overwrite is set; the error
// then matches fs.ErrExist.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if !overwrite {
		exists, err := fileutil.Exists(path)
		if err != nil {
			return fmt.Errorf("check config path: %w", err)
		}
		if exists {
			return fmt.Errorf("config file %s: %w", path, fs.ErrExist)
		}
	}
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
