package config

import "time"

const (
	defaultConfigPath                = "~/.config/asrbatch/config.toml"
	defaultLogDir                    = "~/.local/share/asrbatch/logs"
	defaultEngine                    = "b"
	defaultFormat                    = "txt"
	defaultWorkers                   = 2
	defaultRetryAttempts             = 2
	defaultRetryBackoffMillis        = 2000
	defaultBackendTimeoutSeconds     = 900
	defaultMemoryTTLMinutes          = 60
	defaultPruneAfterDays            = 90
	defaultFFmpegBinary              = "ffmpeg"
	defaultFFmpegTimeoutSeconds      = 1800
	defaultWhisperXBinary            = "uvx"
	defaultWhisperXModel             = "large-v3"
	defaultWhisperXVADMethod         = "silero"
	defaultBcutBaseURL               = "https://member.bilibili.com/x/bcut/rubick-interface"
	defaultKuaiShouBaseURL           = "https://ai.kuaishou.com/api/effects"
	defaultJianYingBaseURL           = "https://lv-pc-api-sinfonlinec.ulikecam.com"
	defaultCloudConcurrency          = 2
	defaultCloudRequestsPerMinute    = 60
	defaultPollIntervalMillis        = 1000
	defaultPollAttempts              = 500
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogMaxSizeMB              = 20
	defaultLogMaxBackups             = 5
	defaultLogRetentionDays          = 30
	defaultWhisperXConcurrency       = 1
	defaultKuaiShouRequestsPerMinute = 30
)

// UserAgent is sent by every HTTP engine client.
const UserAgent = "asrbatch/1.0"

// Default returns a Config populated with repository defaults.
func Default() Config {
	cloud := CloudEngine{
		Concurrency:        defaultCloudConcurrency,
		RequestsPerMinute:  defaultCloudRequestsPerMinute,
		PollIntervalMillis: defaultPollIntervalMillis,
		PollAttempts:       defaultPollAttempts,
	}
	bcut := cloud
	bcut.BaseURL = defaultBcutBaseURL
	kuaishou := cloud
	kuaishou.BaseURL = defaultKuaiShouBaseURL
	kuaishou.RequestsPerMinute = defaultKuaiShouRequestsPerMinute
	jianying := cloud
	jianying.BaseURL = defaultJianYingBaseURL

	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			LogDir:   defaultLogDir,
		},
		Transcribe: Transcribe{
			Engine:                defaultEngine,
			Format:                defaultFormat,
			Workers:               defaultWorkers,
			RetryAttempts:         defaultRetryAttempts,
			RetryBackoffMillis:    defaultRetryBackoffMillis,
			BackendTimeoutSeconds: defaultBackendTimeoutSeconds,
		},
		Cache: Cache{
			Enabled:          true,
			MemoryTTLMinutes: defaultMemoryTTLMinutes,
			PruneAfterDays:   defaultPruneAfterDays,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			TimeoutSeconds: defaultFFmpegTimeoutSeconds,
		},
		Engines: Engines{
			Bcut:     bcut,
			JianYing: JianYing{CloudEngine: jianying},
			KuaiShou: kuaishou,
			WhisperX: WhisperX{
				Model:       defaultWhisperXModel,
				VADMethod:   defaultWhisperXVADMethod,
				Concurrency: defaultWhisperXConcurrency,
				Binary:      defaultWhisperXBinary,
			},
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// BackendTimeout returns the per-call engine timeout.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Transcribe.BackendTimeoutSeconds) * time.Second
}

// RetryBackoff returns the initial delay between retries of unavailable backends.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Transcribe.RetryBackoffMillis) * time.Millisecond
}

// FFmpegTimeout returns the limit applied to a single transcoder invocation.
func (c *Config) FFmpegTimeout() time.Duration {
	return time.Duration(c.FFmpeg.TimeoutSeconds) * time.Second
}

// MemoryTTL returns how long cache hits stay in the in-process tier.
func (c *Config) MemoryTTL() time.Duration {
	return time.Duration(c.Cache.MemoryTTLMinutes) * time.Minute
}

// PollInterval returns the delay between task status polls.
func (e CloudEngine) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalMillis) * time.Millisecond
}
