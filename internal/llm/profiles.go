// SPDX-License-Identifier: MIT

// Package llm adapts LLM providers (OpenAI-compatible endpoints and
// Google Gemini) to the pipeline's translation and summarization
// contract. Per-task provider/model selection comes from a JSON
// profile file with hot reload.
package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Task keys select a profile per pipeline concern.
type Task string

const (
	TaskTranslate Task = "subtitle_translate"
	TaskSummarize Task = "subtitle_summarize"
)

// Provider names accepted in profiles. OpenRouter and LM Studio speak
// the OpenAI wire protocol and differ only in base URL and key
// handling.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderLMStudio   = "lmstudio"
	ProviderGemini     = "gemini"
	ProviderFake       = "fake"
)

// Profile configures one task's LLM access.
type Profile struct {
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	APIKey         string   `json:"api_key,omitempty"`
	APIKeyEnv      string   `json:"api_key_env,omitempty"`
	BaseURL        string   `json:"base_url,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	MaxRetries     int      `json:"max_retries,omitempty"`
	RPM            int      `json:"rpm,omitempty"`
	Temperature    *float32 `json:"temperature,omitempty"`
}

// Timeout returns the per-request timeout.
func (p Profile) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ResolveAPIKey returns the literal key, or the value of the
// configured (or provider-default) environment variable.
func (p Profile) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	env := p.APIKeyEnv
	if env == "" {
		switch p.Provider {
		case ProviderOpenAI:
			env = "OPENAI_API_KEY"
		case ProviderOpenRouter:
			env = "OPENROUTER_API_KEY"
		case ProviderGemini:
			env = "GEMINI_API_KEY"
		default:
			return ""
		}
	}
	return os.Getenv(env)
}

// Validate checks the profile is usable.
func (p Profile) Validate() error {
	switch p.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderLMStudio, ProviderGemini, ProviderFake:
	default:
		return fmt.Errorf("unsupported provider %q", p.Provider)
	}
	if p.Model == "" && p.Provider != ProviderFake {
		return fmt.Errorf("profile for provider %q has no model", p.Provider)
	}
	return nil
}

// Profiles maps tasks to profiles, with a default for tasks that have
// no override.
type Profiles struct {
	Default Profile            `json:"default"`
	Tasks   map[string]Profile `json:"tasks,omitempty"`
}

// DefaultProfiles is the fallback when no ai_profiles.json exists:
// OpenAI for both tasks, key from the environment.
func DefaultProfiles() *Profiles {
	return &Profiles{
		Default: Profile{
			Provider:       ProviderOpenAI,
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 120,
			MaxRetries:     6,
		},
	}
}

// ForTask resolves the effective profile for a task: the task entry
// with unset fields filled from the default.
func (ps *Profiles) ForTask(task Task) Profile {
	base := ps.Default
	override, ok := ps.Tasks[string(task)]
	if !ok {
		return base
	}
	if override.Provider != "" {
		base.Provider = override.Provider
		// A provider switch invalidates inherited endpoint settings.
		base.BaseURL = ""
		base.APIKey = ""
		base.APIKeyEnv = ""
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.APIKey != "" {
		base.APIKey = override.APIKey
	}
	if override.APIKeyEnv != "" {
		base.APIKeyEnv = override.APIKeyEnv
	}
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.TimeoutSeconds > 0 {
		base.TimeoutSeconds = override.TimeoutSeconds
	}
	if override.MaxRetries > 0 {
		base.MaxRetries = override.MaxRetries
	}
	if override.RPM > 0 {
		base.RPM = override.RPM
	}
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	return base
}

// Validate checks the default and every task profile.
func (ps *Profiles) Validate() error {
	if err := ps.Default.Validate(); err != nil {
		return fmt.Errorf("default profile: %w", err)
	}
	for task := range ps.Tasks {
		eff := ps.ForTask(Task(task))
		if err := eff.Validate(); err != nil {
			return fmt.Errorf("task %q: %w", task, err)
		}
	}
	return nil
}

// LoadProfiles reads ai_profiles.json. A missing file yields the
// defaults; a malformed one is an error so a typo never silently
// downgrades the configuration.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if os.IsNotExist(err) {
		return DefaultProfiles(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ai profiles: %w", err)
	}

	ps := &Profiles{}
	if err := json.Unmarshal(data, ps); err != nil {
		return nil, fmt.Errorf("parse ai profiles: %w", err)
	}
	if ps.Default.Provider == "" {
		ps.Default = DefaultProfiles().Default
	}
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}
