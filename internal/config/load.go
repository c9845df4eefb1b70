// SPDX-License-Identifier: MIT

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path, layers environment
// overrides and validates the result. A missing file is not an error:
// defaults plus environment apply. The format is chosen by extension
// (.yaml/.yml vs .json); anything else is tried as JSON first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to env + defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			// Tolerate a YAML body under a generic extension.
			if yamlErr := yaml.Unmarshal(data, cfg); yamlErr != nil {
				return fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	return nil
}

// Validate checks enum fields and numeric ranges. It is called by Load
// and again by the CLI after flag overrides.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir must not be empty")
	}
	if c.UserDataDir == "" {
		return errors.New("user_data_dir must not be empty")
	}

	lang := c.Language
	if !lang.TranslationStrategy.Valid() {
		return fmt.Errorf("invalid translation_strategy %q", lang.TranslationStrategy)
	}
	if !lang.BilingualMode.Valid() {
		return fmt.Errorf("invalid bilingual_mode %q", lang.BilingualMode)
	}
	if !lang.SubtitleFormat.Valid() {
		return fmt.Errorf("invalid subtitle_format %q", lang.SubtitleFormat)
	}
	if len(lang.SubtitleTargetLanguages) == 0 {
		return errors.New("subtitle_target_languages must not be empty")
	}
	if lang.SummaryLanguage == "" {
		return errors.New("summary_language must not be empty")
	}

	for name, n := range map[string]int{
		"detect":    c.Workers.Detect,
		"download":  c.Workers.Download,
		"translate": c.Workers.Translate,
		"summarize": c.Workers.Summarize,
		"output":    c.Workers.Output,
	} {
		if n <= 0 {
			return fmt.Errorf("workers.%s must be > 0", name)
		}
	}

	if c.ProxyFailureThreshold <= 0 {
		return errors.New("proxy_failure_threshold must be > 0")
	}
	if c.ProxyRetryDelayMinutes <= 0 {
		return errors.New("proxy_retry_delay_minutes must be > 0")
	}
	if c.DetectTimeoutSeconds <= 0 {
		return errors.New("detect_timeout_seconds must be > 0")
	}
	if c.ChunkMaxCues <= 0 || c.ChunkMaxChars <= 0 {
		return errors.New("chunk thresholds must be > 0")
	}
	if c.ChunkMaxRetries < 0 {
		return errors.New("chunk_max_retries must be >= 0")
	}
	return nil
}
