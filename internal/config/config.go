// SPDX-License-Identifier: MIT

// Package config loads and validates the application configuration:
// the config.json/yaml file, SUBPIPE_* environment overrides, and the
// language settings whose hash keys the incremental archive.
package config

import (
	"path/filepath"
	"time"
)

// WorkerConfig holds per-stage worker counts.
type WorkerConfig struct {
	Detect    int `json:"detect" yaml:"detect"`
	Download  int `json:"download" yaml:"download"`
	Translate int `json:"translate" yaml:"translate"`
	Summarize int `json:"summarize" yaml:"summarize"`
	Output    int `json:"output" yaml:"output"`
}

// CacheConfig controls the optional sqlite translation cache.
type CacheConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TelemetryConfig controls OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	ExporterType string  `json:"exporter_type,omitempty" yaml:"exporter_type,omitempty"`
	Endpoint     string  `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	SamplingRate float64 `json:"sampling_rate,omitempty" yaml:"sampling_rate,omitempty"`
}

// Config is the full application configuration. File values are
// overridden by SUBPIPE_* environment variables; both are overridden
// by explicit CLI flags.
type Config struct {
	OutputDir   string `json:"output_dir" yaml:"output_dir"`
	UserDataDir string `json:"user_data_dir" yaml:"user_data_dir"`
	TempDir     string `json:"temp_dir,omitempty" yaml:"temp_dir,omitempty"`

	Language LanguageConfig `json:"language" yaml:"language"`
	Workers  WorkerConfig   `json:"workers" yaml:"workers"`

	CookieFile string   `json:"cookie_file,omitempty" yaml:"cookie_file,omitempty"`
	Proxies    []string `json:"proxies,omitempty" yaml:"proxies,omitempty"`

	ProxyFailureThreshold  int `json:"proxy_failure_threshold" yaml:"proxy_failure_threshold"`
	ProxyRetryDelayMinutes int `json:"proxy_retry_delay_minutes" yaml:"proxy_retry_delay_minutes"`

	DetectTimeoutSeconds int `json:"detect_timeout_seconds" yaml:"detect_timeout_seconds"`

	ChunkMaxCues    int `json:"chunk_max_cues" yaml:"chunk_max_cues"`
	ChunkMaxChars   int `json:"chunk_max_chars" yaml:"chunk_max_chars"`
	ChunkMaxRetries int `json:"chunk_max_retries" yaml:"chunk_max_retries"`

	KeepTempOnError bool `json:"keep_temp_on_error" yaml:"keep_temp_on_error"`
	AutoSave        bool `json:"auto_save" yaml:"auto_save"`

	AIProfilesPath string `json:"ai_profiles_path,omitempty" yaml:"ai_profiles_path,omitempty"`

	TranslationCache CacheConfig     `json:"translation_cache" yaml:"translation_cache"`
	Telemetry        TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
}

// Default returns the configuration used when no file exists. Paths
// are relative to the current working directory.
func Default() *Config {
	return &Config{
		OutputDir:   "out",
		UserDataDir: "data",
		Language: LanguageConfig{
			SubtitleTargetLanguages: []string{"zh-CN"},
			SummaryLanguage:         "zh-CN",
			BilingualMode:           BilingualNone,
			TranslationStrategy:     StrategyOfficialAutoThenAI,
			SubtitleFormat:          FormatSRT,
		},
		Workers: WorkerConfig{
			Detect:    2,
			Download:  2,
			Translate: 1,
			Summarize: 1,
			Output:    2,
		},
		ProxyFailureThreshold:  3,
		ProxyRetryDelayMinutes: 10,
		DetectTimeoutSeconds:   60,
		ChunkMaxCues:           40,
		ChunkMaxChars:          4000,
		ChunkMaxRetries:        2,
		KeepTempOnError:        true,
		AutoSave:               true,
	}
}

// ProxyRetryDelay returns the cooldown before an unhealthy proxy
// becomes retryable.
func (c *Config) ProxyRetryDelay() time.Duration {
	return time.Duration(c.ProxyRetryDelayMinutes) * time.Minute
}

// DetectTimeout returns the per-call subprocess timeout for detection.
func (c *Config) DetectTimeout() time.Duration {
	return time.Duration(c.DetectTimeoutSeconds) * time.Second
}

// EffectiveTempDir returns the temp root, defaulting to
// <output_dir>/temp.
func (c *Config) EffectiveTempDir() string {
	if c.TempDir != "" {
		return c.TempDir
	}
	return filepath.Join(c.OutputDir, "temp")
}

// ArchiveDir returns the directory holding incremental archives.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.UserDataDir, "archives")
}

// StateDir returns the directory holding batch manifests.
func (c *Config) StateDir() string {
	return filepath.Join(c.OutputDir, ".state")
}

// EffectiveAIProfilesPath returns the profile file location,
// defaulting to <user_data_dir>/ai_profiles.json.
func (c *Config) EffectiveAIProfilesPath() string {
	if c.AIProfilesPath != "" {
		return c.AIProfilesPath
	}
	return filepath.Join(c.UserDataDir, "ai_profiles.json")
}

// EffectiveCachePath returns the translation cache location,
// defaulting to <user_data_dir>/translation_cache.db.
func (c *Config) EffectiveCachePath() string {
	if c.TranslationCache.Path != "" {
		return c.TranslationCache.Path
	}
	return filepath.Join(c.UserDataDir, "translation_cache.db")
}
