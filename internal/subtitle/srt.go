// SPDX-License-Identifier: MIT

// Package subtitle parses and formats subtitles. SRT is the canonical
// in-pipeline representation; VTT, JSON3 and SRV3 payloads from the
// caption endpoints are converted to it on ingestion.
package subtitle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Cue is one subtitle entry. Index is the original 1-based SRT index
// where known; Format re-numbers sequentially.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lines []string
}

// Text returns the cue text with lines joined by newline.
func (c Cue) Text() string {
	return strings.Join(c.Lines, "\n")
}

// TextLen returns the cue text length in code points.
func (c Cue) TextLen() int {
	n := 0
	for _, line := range c.Lines {
		n += utf8.RuneCountInString(line)
	}
	return n
}

// Parse decodes SRT text into cues. It tolerates CRLF line endings, a
// UTF-8 BOM, missing index lines and stray blank lines. An input with
// no parseable cues yields an error.
func Parse(text string) ([]Cue, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var cues []Cue
	for _, block := range strings.Split(text, "\n\n") {
		lines := splitNonEmpty(block)
		if len(lines) == 0 {
			continue
		}

		// Optional numeric index line before the timestamp line.
		idx := len(cues) + 1
		if !strings.Contains(lines[0], "-->") {
			if n, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
				idx = n
				lines = lines[1:]
			}
		}
		if len(lines) == 0 || !strings.Contains(lines[0], "-->") {
			continue
		}

		start, end, err := parseTimeRange(lines[0])
		if err != nil {
			continue
		}

		cues = append(cues, Cue{
			Index: idx,
			Start: start,
			End:   end,
			Lines: lines[1:],
		})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no subtitle cues found")
	}
	return cues, nil
}

// Format renders cues as SRT, re-numbering from 1.
func Format(cues []Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&sb, "%d\n", i+1)
		sb.WriteString(formatTimestamp(cue.Start))
		sb.WriteString(" --> ")
		sb.WriteString(formatTimestamp(cue.End))
		sb.WriteByte('\n')
		for _, line := range cue.Lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func splitNonEmpty(block string) []string {
	var out []string
	for _, raw := range strings.Split(block, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseTimeRange(line string) (start, end time.Duration, err error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time range: %q", line)
	}
	start, err = parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	// VTT carries cue settings after the end time; drop them.
	endField := strings.Fields(strings.TrimSpace(parts[1]))
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("invalid time range: %q", line)
	}
	end, err = parseTimestamp(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseTimestamp accepts "HH:MM:SS,mmm" (SRT), "HH:MM:SS.mmm" and
// "MM:SS.mmm" (VTT).
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.ReplaceAll(s, ",", ".")
	fields := strings.Split(s, ":")

	var h, m int
	var sec float64
	var err error
	switch len(fields) {
	case 3:
		if h, err = strconv.Atoi(fields[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if m, err = strconv.Atoi(fields[1]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if sec, err = strconv.ParseFloat(fields[2], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
	case 2:
		if m, err = strconv.Atoi(fields[0]); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if sec, err = strconv.ParseFloat(fields[1], 64); err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
	default:
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec*float64(time.Second)), nil
}

func formatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
