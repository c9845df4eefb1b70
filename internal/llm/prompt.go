// SPDX-License-Identifier: MIT

package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// subtitleSeparator splits numbered entries in both the prompt and the
// expected response.
const subtitleSeparator = "===SUBTITLE==="

const translateSystemPrompt = `You are a professional subtitle translator. Translate subtitle entries from %s to %s.

Rules:
- The input contains numbered entries, each starting with a marker line [N] and separated by lines containing only %s.
- Reply with the translated entries using exactly the same markers, the same separator, and the same order.
- Translate only the text; never translate or alter the [N] markers.
- Keep each entry's line structure where natural; never merge or split entries.
- Preserve meaning, tone and register; keep names, numbers and technical terms accurate.
- Output nothing except the translated entries.`

const summarySystemPrompt = `You are an expert content summarizer. Write a well-structured Markdown summary of a video transcript in %s.

Rules:
- Start with a one-paragraph overview.
- Follow with the key points as a bulleted list.
- When chapter markers are provided, structure the summary along them with ### headings.
- Write entirely in %s; do not include the original transcript.`

// buildBatchText renders cues as numbered entries. Markers are
// 1-based to match how models count.
func buildBatchText(cues []subtitle.Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n" + subtitleSeparator + "\n")
		}
		fmt.Fprintf(&b, "[%d]\n", i+1)
		b.WriteString(cue.Text())
		b.WriteString("\n")
	}
	return b.String()
}

// buildSummaryUserPrompt renders the transcript plus optional chapter
// hints.
func buildSummaryUserPrompt(transcript string, chapters []ports.Chapter) string {
	var b strings.Builder
	if len(chapters) > 0 {
		b.WriteString("Chapters:\n")
		for _, ch := range chapters {
			secs := int(ch.StartSeconds)
			fmt.Fprintf(&b, "- [%02d:%02d:%02d] %s\n", secs/3600, (secs%3600)/60, secs%60, ch.Title)
		}
		b.WriteString("\nTranscript:\n")
	}
	b.WriteString(transcript)
	return b.String()
}

// parseBatchResponse validates and extracts translated entries. The
// response must contain exactly one entry per input cue, with markers
// in ascending order; anything else is a contract violation the
// caller classifies as a parse failure.
func parseBatchResponse(response string, want int) ([][]string, error) {
	response = stripCodeFence(response)

	blocks := strings.Split(response, subtitleSeparator)
	entries := make([][]string, 0, want)
	nextIndex := 1

	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
			continue
		}
		idx, ok := parseMarker(lines[0])
		if !ok {
			return nil, fmt.Errorf("entry %d: missing [N] marker", nextIndex)
		}
		if idx != nextIndex {
			return nil, fmt.Errorf("marker out of order: want [%d], got [%d]", nextIndex, idx)
		}

		var text []string
		for _, line := range lines[1:] {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" && len(text) == 0 {
				continue
			}
			text = append(text, line)
		}
		// Trim trailing blank lines.
		for len(text) > 0 && strings.TrimSpace(text[len(text)-1]) == "" {
			text = text[:len(text)-1]
		}
		if len(text) == 0 {
			return nil, fmt.Errorf("entry [%d] has no text", idx)
		}

		entries = append(entries, text)
		nextIndex++
	}

	if len(entries) != want {
		return nil, fmt.Errorf("entry count mismatch: want %d, got %d", want, len(entries))
	}
	return entries, nil
}

// parseMarker reads a "[N]" line, tolerating surrounding whitespace
// and trailing punctuation some models add.
func parseMarker(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return 0, false
	}
	end := strings.Index(line, "]")
	if end < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(line[1:end]))
	if err != nil || n < 1 {
		return 0, false
	}
	// Anything after the marker on the same line is noise only when
	// non-empty text follows; allow bare markers only.
	if strings.TrimSpace(line[end+1:]) != "" {
		return 0, false
	}
	return n, true
}

// stripCodeFence removes a wrapping Markdown code fence some models
// insist on adding.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
