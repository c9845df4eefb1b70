// SPDX-License-Identifier: MIT

package subtitle

import (
	"strings"
)

// Plaintext renders cues as a plain transcript: one line per cue line,
// consecutive near-duplicates collapsed. Auto-generated captions
// repeat rolling lines; a line that contains (or is contained by) its
// predecessor is dropped.
func Plaintext(cues []Cue) string {
	var lines []string
	for _, cue := range cues {
		for _, line := range cue.Lines {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	}

	var sb strings.Builder
	prev := ""
	for _, line := range lines {
		dup := prev != "" && (strings.Contains(line, prev) || strings.Contains(prev, line))
		if !dup {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(line)
		} else if strings.Contains(line, prev) && len(line) > len(prev) {
			// The longer rolling line supersedes the shorter one.
			replaceLastLine(&sb, line)
		}
		prev = line
	}
	return sb.String()
}

func replaceLastLine(sb *strings.Builder, line string) {
	s := sb.String()
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[:i+1] + line
	} else {
		s = line
	}
	sb.Reset()
	sb.WriteString(s)
}

// MergeBilingual pairs translated cues with their source cues,
// producing cues that show the translation above the original text.
// The slices must be index-aligned; extra source cues are passed
// through untranslated.
func MergeBilingual(translated, source []Cue) []Cue {
	out := make([]Cue, 0, len(source))
	for i, src := range source {
		cue := src
		if i < len(translated) {
			merged := make([]string, 0, len(translated[i].Lines)+len(src.Lines))
			merged = append(merged, translated[i].Lines...)
			merged = append(merged, src.Lines...)
			cue.Lines = merged
		}
		out = append(out, cue)
	}
	return out
}
