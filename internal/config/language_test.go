// SPDX-License-Identifier: MIT

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLang(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"EN", "en"},
		{"en-US", "en-US"},
		{"en_us", "en-US"},
		{"en-us", "en-US"},
		{"zh-CN", "zh-CN"},
		{"zh_cn", "zh-CN"},
		{"pt-br", "pt-BR"},
		{"  de  ", "de"},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeLang(tc.in))
		})
	}
}

func TestLangEqual(t *testing.T) {
	assert.True(t, LangEqual("en_us", "en-US"))
	assert.True(t, LangEqual("ZH-cn", "zh-CN"))
	assert.False(t, LangEqual("en", "en-US"))
}

func TestLanguageConfigHashStable(t *testing.T) {
	base := LanguageConfig{
		SubtitleTargetLanguages: []string{"zh-CN", "ja"},
		SummaryLanguage:         "zh-CN",
		BilingualMode:           BilingualNone,
		TranslationStrategy:     StrategyAIOnly,
		SubtitleFormat:          FormatSRT,
	}

	h := base.Hash()
	assert.Len(t, h, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", h)
	assert.Equal(t, h, base.Hash(), "hash must be deterministic")
}

func TestLanguageConfigHashIgnoresOrderAndSpelling(t *testing.T) {
	a := LanguageConfig{
		SubtitleTargetLanguages: []string{"zh_cn", "ja"},
		SummaryLanguage:         "zh-CN",
		BilingualMode:           BilingualNone,
		TranslationStrategy:     StrategyAIOnly,
		SubtitleFormat:          FormatSRT,
	}
	b := LanguageConfig{
		SubtitleTargetLanguages: []string{"ja", "zh-CN"},
		SummaryLanguage:         "zh_cn",
		BilingualMode:           BilingualNone,
		TranslationStrategy:     StrategyAIOnly,
		SubtitleFormat:          FormatSRT,
	}
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestLanguageConfigHashChangesWithOutputFields(t *testing.T) {
	base := LanguageConfig{
		SubtitleTargetLanguages: []string{"de"},
		SummaryLanguage:         "de",
		BilingualMode:           BilingualNone,
		TranslationStrategy:     StrategyAIOnly,
		SubtitleFormat:          FormatSRT,
	}

	variants := []LanguageConfig{
		{SubtitleTargetLanguages: []string{"fr"}, SummaryLanguage: "de", BilingualMode: BilingualNone, TranslationStrategy: StrategyAIOnly, SubtitleFormat: FormatSRT},
		{SubtitleTargetLanguages: []string{"de"}, SummaryLanguage: "fr", BilingualMode: BilingualNone, TranslationStrategy: StrategyAIOnly, SubtitleFormat: FormatSRT},
		{SubtitleTargetLanguages: []string{"de"}, SummaryLanguage: "de", BilingualMode: BilingualSourceTarget, TranslationStrategy: StrategyAIOnly, SubtitleFormat: FormatSRT},
		{SubtitleTargetLanguages: []string{"de"}, SummaryLanguage: "de", BilingualMode: BilingualNone, TranslationStrategy: StrategyOfficialOnly, SubtitleFormat: FormatSRT},
		{SubtitleTargetLanguages: []string{"de"}, SummaryLanguage: "de", BilingualMode: BilingualNone, TranslationStrategy: StrategyAIOnly, SubtitleFormat: FormatBoth},
	}
	for i, v := range variants {
		assert.NotEqual(t, base.Hash(), v.Hash(), "variant %d must change the hash", i)
	}
}
