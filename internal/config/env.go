// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
)

// ParseString reads key from the environment or returns defaultValue.
// Empty values count as unset.
func ParseString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

// ParseInt reads an integer from the environment, logging and falling
// back to defaultValue on parse errors.
func ParseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

// ParseBool reads a boolean ("true"/"false"/"1"/"0") from the
// environment, falling back to defaultValue on parse errors.
func ParseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	return b
}

// applyEnv layers SUBPIPE_* environment overrides onto c.
func applyEnv(c *Config) {
	c.OutputDir = ParseString("SUBPIPE_OUTPUT_DIR", c.OutputDir)
	c.UserDataDir = ParseString("SUBPIPE_USER_DATA_DIR", c.UserDataDir)
	c.TempDir = ParseString("SUBPIPE_TEMP_DIR", c.TempDir)
	c.CookieFile = ParseString("SUBPIPE_COOKIE_FILE", c.CookieFile)
	c.MetricsAddr = ParseString("SUBPIPE_METRICS_ADDR", c.MetricsAddr)
	c.AIProfilesPath = ParseString("SUBPIPE_AI_PROFILES", c.AIProfilesPath)

	c.Workers.Detect = ParseInt("SUBPIPE_WORKERS_DETECT", c.Workers.Detect)
	c.Workers.Download = ParseInt("SUBPIPE_WORKERS_DOWNLOAD", c.Workers.Download)
	c.Workers.Translate = ParseInt("SUBPIPE_WORKERS_TRANSLATE", c.Workers.Translate)
	c.Workers.Summarize = ParseInt("SUBPIPE_WORKERS_SUMMARIZE", c.Workers.Summarize)
	c.Workers.Output = ParseInt("SUBPIPE_WORKERS_OUTPUT", c.Workers.Output)

	c.ProxyFailureThreshold = ParseInt("SUBPIPE_PROXY_FAILURE_THRESHOLD", c.ProxyFailureThreshold)
	c.ProxyRetryDelayMinutes = ParseInt("SUBPIPE_PROXY_RETRY_DELAY_MINUTES", c.ProxyRetryDelayMinutes)
	c.DetectTimeoutSeconds = ParseInt("SUBPIPE_DETECT_TIMEOUT_SECONDS", c.DetectTimeoutSeconds)

	c.ChunkMaxCues = ParseInt("SUBPIPE_CHUNK_MAX_CUES", c.ChunkMaxCues)
	c.ChunkMaxChars = ParseInt("SUBPIPE_CHUNK_MAX_CHARS", c.ChunkMaxChars)
	c.ChunkMaxRetries = ParseInt("SUBPIPE_CHUNK_MAX_RETRIES", c.ChunkMaxRetries)

	c.KeepTempOnError = ParseBool("SUBPIPE_KEEP_TEMP_ON_ERROR", c.KeepTempOnError)
	c.AutoSave = ParseBool("SUBPIPE_AUTO_SAVE", c.AutoSave)
	c.TranslationCache.Enabled = ParseBool("SUBPIPE_TRANSLATION_CACHE", c.TranslationCache.Enabled)
}
