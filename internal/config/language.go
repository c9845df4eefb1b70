// SPDX-License-Identifier: MIT

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// TranslationStrategy selects how target subtitles are produced.
type TranslationStrategy string

const (
	StrategyAIOnly             TranslationStrategy = "AI_ONLY"
	StrategyOfficialOnly       TranslationStrategy = "OFFICIAL_ONLY"
	StrategyOfficialAutoThenAI TranslationStrategy = "OFFICIAL_AUTO_THEN_AI"
)

func (s TranslationStrategy) Valid() bool {
	switch s {
	case StrategyAIOnly, StrategyOfficialOnly, StrategyOfficialAutoThenAI:
		return true
	}
	return false
}

// BilingualMode selects whether translated cues also carry the source
// text.
type BilingualMode string

const (
	BilingualNone         BilingualMode = "none"
	BilingualSourceTarget BilingualMode = "source+target"
)

func (m BilingualMode) Valid() bool {
	return m == BilingualNone || m == BilingualSourceTarget
}

// SubtitleFormat selects the written output form.
type SubtitleFormat string

const (
	FormatSRT  SubtitleFormat = "srt"
	FormatTXT  SubtitleFormat = "txt"
	FormatBoth SubtitleFormat = "both"
)

func (f SubtitleFormat) Valid() bool {
	switch f {
	case FormatSRT, FormatTXT, FormatBoth:
		return true
	}
	return false
}

// LanguageConfig holds the language settings that shape outputs. Its
// Hash keys the incremental archive: changing any output-affecting
// field invalidates previously processed videos.
type LanguageConfig struct {
	SubtitleTargetLanguages []string            `json:"subtitle_target_languages" yaml:"subtitle_target_languages"`
	SummaryLanguage         string              `json:"summary_language" yaml:"summary_language"`
	SourceLanguage          string              `json:"source_language,omitempty" yaml:"source_language,omitempty"`
	BilingualMode           BilingualMode       `json:"bilingual_mode" yaml:"bilingual_mode"`
	TranslationStrategy     TranslationStrategy `json:"translation_strategy" yaml:"translation_strategy"`
	SubtitleFormat          SubtitleFormat      `json:"subtitle_format" yaml:"subtitle_format"`
}

// Hash returns a stable 16-hex-char digest over the output-affecting
// fields. Target languages are normalized and sorted so ordering and
// spelling variants (en_us vs en-US) hash identically.
func (c LanguageConfig) Hash() string {
	targets := make([]string, 0, len(c.SubtitleTargetLanguages))
	for _, t := range c.SubtitleTargetLanguages {
		if n := NormalizeLang(t); n != "" {
			targets = append(targets, n)
		}
	}
	sort.Strings(targets)

	canonical := fmt.Sprintf("targets=%s;summary=%s;source=%s;bilingual=%s;strategy=%s;format=%s",
		strings.Join(targets, ","),
		NormalizeLang(c.SummaryLanguage),
		NormalizeLang(c.SourceLanguage),
		c.BilingualMode,
		c.TranslationStrategy,
		c.SubtitleFormat,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:8])
}

// NormalizeLang canonicalizes a language code to BCP-47 form:
// "en_us" and "en-US" both become "en-US". Codes the tag parser
// rejects fall back to lowercase base with an upper-cased region.
func NormalizeLang(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	code = strings.ReplaceAll(code, "_", "-")
	if tag, err := language.Parse(code); err == nil {
		return tag.String()
	}

	parts := strings.Split(code, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) == 2 {
			parts[len(parts)-1] = strings.ToUpper(last)
		}
	}
	return strings.Join(parts, "-")
}

// LangEqual reports whether two codes denote the same language after
// normalization.
func LangEqual(a, b string) bool {
	return NormalizeLang(a) == NormalizeLang(b)
}
