// SPDX-License-Identifier: MIT

package chunk

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

func makeCues(n, charsPer int) []subtitle.Cue {
	cues := make([]subtitle.Cue, n)
	for i := range cues {
		cues[i] = subtitle.Cue{
			Index: i + 1,
			Start: time.Duration(i) * time.Second,
			End:   time.Duration(i+1) * time.Second,
			Lines: []string{strings.Repeat("x", charsPer)},
		}
	}
	return cues
}

func TestSplitByCueCount(t *testing.T) {
	cues := makeCues(100, 10)
	chunks := Split(cues, 40, 4000)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Cues, 40)
	assert.Len(t, chunks[1].Cues, 40)
	assert.Len(t, chunks[2].Cues, 20)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
	// Chunk boundaries carry the outer cue timestamps.
	assert.Equal(t, time.Duration(0), chunks[0].Start)
	assert.Equal(t, 40*time.Second, chunks[0].End)
	assert.Equal(t, 40*time.Second, chunks[1].Start)
}

func TestSplitByCharCount(t *testing.T) {
	// 10 cues of 1000 chars: char threshold fires every 4 cues.
	cues := makeCues(10, 1000)
	chunks := Split(cues, 40, 4000)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Cues, 4)
	assert.Len(t, chunks[1].Cues, 4)
	assert.Len(t, chunks[2].Cues, 2)
}

func TestSplitDeterministic(t *testing.T) {
	cues := makeCues(75, 120)
	a := Split(cues, 40, 4000)
	b := Split(cues, 40, 4000)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Index, b[i].Index)
		assert.Equal(t, len(a[i].Cues), len(b[i].Cues))
	}
}

func TestSplitPreservesOriginalIndices(t *testing.T) {
	cues := makeCues(50, 10)
	chunks := Split(cues, 40, 4000)
	assert.Equal(t, 41, chunks[1].Cues[0].Index)
}

func TestSplitEmpty(t *testing.T) {
	assert.Empty(t, Split(nil, 40, 4000))
}

func chunkSRT(idx int) string {
	return fmt.Sprintf("1\n00:00:0%d,000 --> 00:00:0%d,500\ntranslated %d\n", idx, idx, idx)
}

func TestTrackerMarkAndPending(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(dir, "vid1", "zh-CN", 4)

	assert.Equal(t, []int{0, 1, 2, 3}, tr.Pending())

	require.NoError(t, tr.MarkCompleted(1, chunkSRT(1)))
	require.NoError(t, tr.MarkCompleted(3, chunkSRT(3)))

	assert.Equal(t, []int{0, 2}, tr.Pending())
	assert.True(t, tr.IsCompleted(1))
	assert.False(t, tr.IsCompleted(0))

	total, completed := tr.Status()
	assert.Equal(t, 4, total)
	assert.Equal(t, 2, completed)
}

func TestTrackerMarkIdempotent(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(dir, "vid1", "de", 2)

	require.NoError(t, tr.MarkCompleted(0, chunkSRT(0)))
	require.NoError(t, tr.MarkCompleted(0, "different content ignored"))

	// The first write wins; the second call was a no-op.
	data, err := os.ReadFile(tr.ChunkPath(0))
	require.NoError(t, err)
	assert.Contains(t, string(data), "translated 0")
}

func TestTrackerRejectsOutOfRange(t *testing.T) {
	tr := NewTracker(t.TempDir(), "vid1", "de", 2)
	assert.Error(t, tr.MarkCompleted(-1, "x"))
	assert.Error(t, tr.MarkCompleted(2, "x"))
}

func TestTrackerRestore(t *testing.T) {
	dir := t.TempDir()

	tr := NewTracker(dir, "vid1", "ja", 3)
	require.NoError(t, tr.MarkCompleted(0, chunkSRT(0)))
	require.NoError(t, tr.MarkCompleted(2, chunkSRT(2)))

	// New process, same layout.
	tr2 := NewTracker(dir, "vid1", "ja", 3)
	require.NoError(t, tr2.Restore())
	assert.Equal(t, []int{1}, tr2.Pending())
	assert.Equal(t, []int{0, 2}, tr2.Completed())
}

func TestTrackerRestoreDiscardsOnTotalMismatch(t *testing.T) {
	dir := t.TempDir()

	tr := NewTracker(dir, "vid1", "ja", 3)
	require.NoError(t, tr.MarkCompleted(0, chunkSRT(0)))

	// Thresholds changed: 5 chunks now. Stored progress is unusable.
	tr2 := NewTracker(dir, "vid1", "ja", 5)
	require.NoError(t, tr2.Restore())
	assert.Len(t, tr2.Pending(), 5)
}

func TestTrackerRestoreIgnoresMissingChunkCache(t *testing.T) {
	dir := t.TempDir()

	tr := NewTracker(dir, "vid1", "ja", 2)
	require.NoError(t, tr.MarkCompleted(0, chunkSRT(0)))
	require.NoError(t, tr.MarkCompleted(1, chunkSRT(1)))

	// Simulate a lost cache file: completion must not be trusted.
	require.NoError(t, os.Remove(tr.ChunkPath(1)))

	tr2 := NewTracker(dir, "vid1", "ja", 2)
	require.NoError(t, tr2.Restore())
	assert.Equal(t, []int{1}, tr2.Pending())
}

func TestTrackerAssemble(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker(dir, "vid1", "fr", 2)

	_, err := tr.Assemble()
	assert.Error(t, err, "assemble before completion must fail")

	require.NoError(t, tr.MarkCompleted(0, "1\n00:00:01,000 --> 00:00:02,000\nfirst\n"))
	require.NoError(t, tr.MarkCompleted(1, "1\n00:00:03,000 --> 00:00:04,000\nsecond\n"))

	out, err := tr.Assemble()
	require.NoError(t, err)

	cues, err := subtitle.Parse(out)
	require.NoError(t, err)
	require.Len(t, cues, 2)
	assert.Equal(t, 1, cues[0].Index)
	assert.Equal(t, 2, cues[1].Index)
	assert.Equal(t, []string{"first"}, cues[0].Lines)
	assert.Equal(t, []string{"second"}, cues[1].Lines)
}
