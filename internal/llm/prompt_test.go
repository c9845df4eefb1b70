// SPDX-License-Identifier: MIT

package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

func sampleCues() []subtitle.Cue {
	return []subtitle.Cue{
		{Index: 1, Start: 0, End: 2 * time.Second, Lines: []string{"Hello there"}},
		{Index: 2, Start: 2 * time.Second, End: 4 * time.Second, Lines: []string{"How are you?", "Fine."}},
		{Index: 3, Start: 4 * time.Second, End: 6 * time.Second, Lines: []string{"Goodbye"}},
	}
}

func TestBuildBatchText(t *testing.T) {
	got := buildBatchText(sampleCues())
	want := "[1]\nHello there\n\n===SUBTITLE===\n[2]\nHow are you?\nFine.\n\n===SUBTITLE===\n[3]\nGoodbye\n"
	assert.Equal(t, want, got)
}

func TestParseBatchResponseRoundTrip(t *testing.T) {
	resp := "[1]\nHallo du\n===SUBTITLE===\n[2]\nWie geht's?\nGut.\n===SUBTITLE===\n[3]\nTschüss"
	entries, err := parseBatchResponse(resp, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"Hallo du"}, entries[0])
	assert.Equal(t, []string{"Wie geht's?", "Gut."}, entries[1])
	assert.Equal(t, []string{"Tschüss"}, entries[2])
}

func TestParseBatchResponseViolations(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want int
	}{
		{"missing entry", "[1]\nonly one", 2},
		{"extra entry", "[1]\na\n===SUBTITLE===\n[2]\nb\n===SUBTITLE===\n[3]\nc", 2},
		{"reordered markers", "[2]\nb\n===SUBTITLE===\n[1]\na", 2},
		{"duplicate marker", "[1]\na\n===SUBTITLE===\n[1]\nb", 2},
		{"missing marker", "no marker here\ntext", 1},
		{"empty entry text", "[1]\n\n===SUBTITLE===\n[2]\nb", 2},
		{"marker with inline text", "[1] hello inline", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBatchResponse(tt.resp, tt.want)
			assert.Error(t, err)
		})
	}
}

func TestParseBatchResponseStripsCodeFence(t *testing.T) {
	resp := "```\n[1]\ntranslated\n```"
	entries, err := parseBatchResponse(resp, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"translated"}, entries[0])
}

func TestParseMarker(t *testing.T) {
	tests := []struct {
		line   string
		wantN  int
		wantOK bool
	}{
		{"[1]", 1, true},
		{"  [42]  ", 42, true},
		{"[0]", 0, false},
		{"[-3]", 0, false},
		{"[abc]", 0, false},
		{"1]", 0, false},
		{"[1] trailing words", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		n, ok := parseMarker(tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %q", tt.line)
		assert.Equal(t, tt.wantN, n, "line %q", tt.line)
	}
}

func TestBuildSummaryUserPrompt(t *testing.T) {
	t.Run("without chapters", func(t *testing.T) {
		got := buildSummaryUserPrompt("the transcript", nil)
		assert.Equal(t, "the transcript", got)
	})

	t.Run("with chapters", func(t *testing.T) {
		chapters := []ports.Chapter{
			{StartSeconds: 0, Title: "Intro"},
			{StartSeconds: 3725, Title: "Deep dive"},
		}
		got := buildSummaryUserPrompt("the transcript", chapters)
		assert.Contains(t, got, "- [00:00:00] Intro\n")
		assert.Contains(t, got, "- [01:02:05] Deep dive\n")
		assert.Contains(t, got, "Transcript:\nthe transcript")
	})
}
