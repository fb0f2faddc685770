package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscribe()
	c.normalizeEngines()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ASRBATCH_CACHE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.CacheDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscribe() {
	if value, ok := os.LookupEnv("ASRBATCH_ENGINE"); ok && strings.TrimSpace(value) != "" {
		c.Transcribe.Engine = value
	}
	c.Transcribe.Engine = strings.ToLower(strings.TrimSpace(c.Transcribe.Engine))
	if c.Transcribe.Engine == "" {
		c.Transcribe.Engine = defaultEngine
	}
	c.Transcribe.Format = strings.ToLower(strings.TrimSpace(c.Transcribe.Format))
	if c.Transcribe.Format == "" {
		c.Transcribe.Format = defaultFormat
	}
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
}

func (c *Config) normalizeEngines() {
	c.Engines.Bcut.BaseURL = trimURL(c.Engines.Bcut.BaseURL, defaultBcutBaseURL)
	c.Engines.KuaiShou.BaseURL = trimURL(c.Engines.KuaiShou.BaseURL, defaultKuaiShouBaseURL)
	c.Engines.JianYing.BaseURL = trimURL(c.Engines.JianYing.BaseURL, defaultJianYingBaseURL)
	c.Engines.JianYing.SignURL = strings.TrimSpace(c.Engines.JianYing.SignURL)
	if c.Engines.JianYing.SignURL == "" {
		if value, ok := os.LookupEnv("ASRBATCH_JIANYING_SIGN_URL"); ok {
			c.Engines.JianYing.SignURL = strings.TrimSpace(value)
		}
	}

	wx := &c.Engines.WhisperX
	wx.Model = strings.TrimSpace(wx.Model)
	if wx.Model == "" {
		wx.Model = defaultWhisperXModel
	}
	wx.Language = strings.ToLower(strings.TrimSpace(wx.Language))
	wx.VADMethod = strings.ToLower(strings.TrimSpace(wx.VADMethod))
	if wx.VADMethod == "" {
		wx.VADMethod = defaultWhisperXVADMethod
	}
	wx.HFToken = strings.TrimSpace(wx.HFToken)
	if wx.HFToken == "" {
		if value, ok := os.LookupEnv("WHISPERX_HF_TOKEN"); ok {
			wx.HFToken = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func trimURL(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}
