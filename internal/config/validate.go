package config

import (
	"errors"
	"fmt"
)

var validFormats = map[string]struct{}{
	"txt": {}, "text": {},
	"srt": {}, "timed": {},
	"ass": {}, "styled": {},
	"json": {},
}

// Validate ensures the configuration is usable. Engine identifiers are checked
// by the engine registry, which owns the set of known engines.
func (c *Config) Validate() error {
	if err := c.validateTranscribe(); err != nil {
		return err
	}
	if err := c.validateEngines(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscribe() error {
	if _, ok := validFormats[c.Transcribe.Format]; !ok {
		return fmt.Errorf("transcribe.format: unsupported value %q (want txt, srt, ass, or json)", c.Transcribe.Format)
	}
	if c.Transcribe.Workers <= 0 {
		return errors.New("transcribe.workers must be positive")
	}
	if c.Transcribe.RetryAttempts < 0 {
		return errors.New("transcribe.retry_attempts must not be negative")
	}
	if err := ensurePositiveMap(map[string]int{
		"transcribe.retry_backoff_ms":        c.Transcribe.RetryBackoffMillis,
		"transcribe.backend_timeout_seconds": c.Transcribe.BackendTimeoutSeconds,
		"ffmpeg.timeout_seconds":             c.FFmpeg.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Cache.MemoryTTLMinutes < 0 {
		return errors.New("cache.memory_ttl_minutes must not be negative")
	}
	return nil
}

func (c *Config) validateEngines() error {
	clouds := map[string]CloudEngine{
		"engines.bcut":     c.Engines.Bcut,
		"engines.jianying": c.Engines.JianYing.CloudEngine,
		"engines.kuaishou": c.Engines.KuaiShou,
	}
	for name, engine := range clouds {
		if err := ensurePositiveMap(map[string]int{
			name + ".concurrency":         engine.Concurrency,
			name + ".requests_per_minute": engine.RequestsPerMinute,
			name + ".poll_interval_ms":    engine.PollIntervalMillis,
			name + ".poll_attempts":       engine.PollAttempts,
		}); err != nil {
			return err
		}
	}
	if c.Engines.WhisperX.Concurrency <= 0 {
		return errors.New("engines.whisperx.concurrency must be positive")
	}
	switch c.Engines.WhisperX.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("engines.whisperx.vad_method: unsupported value %q", c.Engines.WhisperX.VADMethod)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
