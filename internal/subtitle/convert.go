// SPDX-License-Identifier: MIT

package subtitle

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind identifies a caption payload format.
type Kind string

const (
	KindSRT     Kind = "srt"
	KindVTT     Kind = "vtt"
	KindJSON3   Kind = "json3"
	KindSRV3    Kind = "srv3"
	KindUnknown Kind = "unknown"
)

// DetectKind sniffs the payload format from its leading bytes.
func DetectKind(data []byte) Kind {
	head := strings.TrimLeft(string(data[:min(len(data), 512)]), "\ufeff \t\r\n")
	switch {
	case strings.HasPrefix(head, "WEBVTT"):
		return KindVTT
	case strings.HasPrefix(head, "{"):
		if strings.Contains(head, `"events"`) {
			return KindJSON3
		}
		return KindUnknown
	case strings.HasPrefix(head, "<"):
		return KindSRV3
	}
	// SRT: numeric index or a timestamp line near the top.
	if strings.Contains(head, "-->") {
		return KindSRT
	}
	return KindUnknown
}

// Convert decodes a caption payload of any supported format into cues.
func Convert(data []byte) ([]Cue, error) {
	switch kind := DetectKind(data); kind {
	case KindSRT:
		return Parse(string(data))
	case KindVTT:
		return parseVTT(string(data))
	case KindJSON3:
		return parseJSON3(data)
	case KindSRV3:
		return parseSRV3(data)
	default:
		return nil, fmt.Errorf("unrecognized caption format")
	}
}

var vttTagRe = regexp.MustCompile(`<[^>]*>`)

var vttEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ")

// parseVTT converts WebVTT to cues: header and NOTE/STYLE blocks are
// skipped, cue identifiers and settings dropped, inline tags stripped.
func parseVTT(text string) ([]Cue, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var cues []Cue
	blocks := strings.Split(text, "\n\n")
	for _, block := range blocks {
		lines := splitNonEmpty(block)
		if len(lines) == 0 {
			continue
		}
		first := strings.TrimSpace(lines[0])
		if strings.HasPrefix(first, "WEBVTT") || strings.HasPrefix(first, "NOTE") ||
			strings.HasPrefix(first, "STYLE") || strings.HasPrefix(first, "REGION") {
			continue
		}

		// Optional cue identifier line before the timestamp.
		if !strings.Contains(lines[0], "-->") {
			lines = lines[1:]
			if len(lines) == 0 || !strings.Contains(lines[0], "-->") {
				continue
			}
		}

		start, end, err := parseTimeRange(lines[0])
		if err != nil {
			continue
		}

		var textLines []string
		for _, raw := range lines[1:] {
			clean := strings.TrimSpace(vttEntities.Replace(vttTagRe.ReplaceAllString(raw, "")))
			if clean != "" {
				textLines = append(textLines, clean)
			}
		}
		if len(textLines) == 0 {
			continue
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Lines: textLines})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues in VTT payload")
	}
	return cues, nil
}

type json3Doc struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	StartMs int64       `json:"tStartMs"`
	DurMs   int64       `json:"dDurMs"`
	Segs    []json3Seg  `json:"segs"`
	Append  json.Number `json:"aAppend"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// parseJSON3 converts the json3 timedtext payload. Events without text
// are skipped; an event with no duration extends to the next event's
// start.
func parseJSON3(data []byte) ([]Cue, error) {
	var doc json3Doc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse json3 payload: %w", err)
	}

	var cues []Cue
	for i, ev := range doc.Events {
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		textLines := splitEventText(sb.String())
		if len(textLines) == 0 {
			continue
		}

		start := time.Duration(ev.StartMs) * time.Millisecond
		var end time.Duration
		switch {
		case ev.DurMs > 0:
			end = start + time.Duration(ev.DurMs)*time.Millisecond
		case i+1 < len(doc.Events):
			end = time.Duration(doc.Events[i+1].StartMs) * time.Millisecond
		default:
			end = start + 2*time.Second
		}

		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: end, Lines: textLines})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues in json3 payload")
	}
	return cues, nil
}

func splitEventText(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

type srv3Doc struct {
	XMLName xml.Name `xml:"timedtext"`
	Body    struct {
		Paragraphs []srv3Para `xml:"p"`
	} `xml:"body"`
}

type srv3Para struct {
	StartMs int64  `xml:"t,attr"`
	DurMs   int64  `xml:"d,attr"`
	Text    string `xml:",chardata"`
	Spans   []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

// parseSRV3 converts the srv3/timedtext XML payload.
func parseSRV3(data []byte) ([]Cue, error) {
	var doc srv3Doc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse srv3 payload: %w", err)
	}

	var cues []Cue
	for _, p := range doc.Body.Paragraphs {
		var sb strings.Builder
		sb.WriteString(p.Text)
		for _, s := range p.Spans {
			sb.WriteString(s.Text)
		}
		textLines := splitEventText(sb.String())
		if len(textLines) == 0 {
			continue
		}

		start := time.Duration(p.StartMs) * time.Millisecond
		dur := time.Duration(p.DurMs) * time.Millisecond
		if dur <= 0 {
			dur = 2 * time.Second
		}
		cues = append(cues, Cue{Index: len(cues) + 1, Start: start, End: start + dur, Lines: textLines})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues in srv3 payload")
	}
	return cues, nil
}
