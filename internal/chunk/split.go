// SPDX-License-Identifier: MIT

// Package chunk splits subtitles into translation units and tracks
// which units have completed, surviving process restarts via an
// atomically rewritten progress file.
package chunk

import (
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// Default split thresholds: a chunk closes when it holds this many
// cues or this many code points of text, whichever fires first.
const (
	DefaultMaxCues  = 40
	DefaultMaxChars = 4000
)

// Chunk is the atomic translation unit.
type Chunk struct {
	Index int
	Start time.Duration
	End   time.Duration
	Cues  []subtitle.Cue
}

// Split partitions cues into chunks deterministically: same input and
// thresholds always yield the same chunks. Cue order and original
// indices are preserved; the last chunk may be short.
func Split(cues []subtitle.Cue, maxCues, maxChars int) []Chunk {
	if maxCues <= 0 {
		maxCues = DefaultMaxCues
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	var chunks []Chunk
	var current []subtitle.Cue
	chars := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: current[0].Start,
			End:   current[len(current)-1].End,
			Cues:  current,
		})
		current = nil
		chars = 0
	}

	for _, cue := range cues {
		current = append(current, cue)
		chars += cue.TextLen()
		if len(current) >= maxCues || chars >= maxChars {
			flush()
		}
	}
	flush()

	return chunks
}
