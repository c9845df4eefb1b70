// SPDX-License-Identifier: MIT

package writer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

func TestWriteVideoArtifactsFullSet(t *testing.T) {
	outDir := t.TempDir()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w := New(outDir, WithClock(func() time.Time { return fixed }))

	req := ports.WriteRequest{
		Video: ports.VideoInfo{
			VideoID:     "dQw4w9WgXcQ",
			URL:         "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			Title:       "A Video",
			ChannelID:   "UC123",
			ChannelName: "Channel",
			Duration:    212,
		},
		SourceLang:  "en",
		OriginalSRT: []byte("1\n00:00:00,000 --> 00:00:02,000\nHello\n"),
		Translations: map[string][]byte{
			"zh-CN": []byte("1\n00:00:00,000 --> 00:00:02,000\n你好\n"),
			"de":    []byte("1\n00:00:00,000 --> 00:00:02,000\nHallo\n"),
		},
		Transcripts: map[string]string{"zh-CN": "你好"},
		Summaries:   map[string]string{"de": "# Zusammenfassung\n"},
		Chapters:    []ports.Chapter{{StartSeconds: 0, Title: "Intro"}},
	}

	files, err := w.WriteVideoArtifacts(context.Background(), req)
	require.NoError(t, err)

	videoDir := filepath.Join(outDir, "videos", "dQw4w9WgXcQ")
	wantFiles := map[string]string{
		"original":         filepath.Join(videoDir, "original.en.srt"),
		"translated.zh-CN": filepath.Join(videoDir, "translated.zh-CN.srt"),
		"translated.de":    filepath.Join(videoDir, "translated.de.srt"),
		"transcript.zh-CN": filepath.Join(videoDir, "transcript.zh-CN.txt"),
		"summary.de":       filepath.Join(videoDir, "summary.de.md"),
		"metadata":         filepath.Join(videoDir, "metadata.json"),
	}
	assert.Equal(t, wantFiles, files)

	for kind, path := range wantFiles {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "artifact %s missing on disk", kind)
	}

	data, err := os.ReadFile(wantFiles["metadata"])
	require.NoError(t, err)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, "dQw4w9WgXcQ", meta["video_id"])
	assert.Equal(t, "en", meta["source_lang"])
	assert.ElementsMatch(t, []any{"de", "zh-CN"}, meta["target_langs"])
	assert.Equal(t, "2025-03-01T12:00:00Z", meta["generated_at"])
}

func TestWriteVideoArtifactsMinimal(t *testing.T) {
	outDir := t.TempDir()
	w := New(outDir)

	req := ports.WriteRequest{
		Video:       ports.VideoInfo{VideoID: "abc123def45", URL: "u", Title: "t"},
		SourceLang:  "en",
		OriginalSRT: []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"),
	}
	files, err := w.WriteVideoArtifacts(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, files, "original")
	assert.Contains(t, files, "metadata")
	assert.Len(t, files, 2)
}

func TestWriteVideoArtifactsRejectsEmptyID(t *testing.T) {
	w := New(t.TempDir())
	_, err := w.WriteVideoArtifacts(context.Background(), ports.WriteRequest{})
	require.Error(t, err)
	assert.Equal(t, errclass.InvalidInput, errclass.Classify(err))
}

func TestWriteVideoArtifactsCancelled(t *testing.T) {
	w := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.WriteVideoArtifacts(ctx, ports.WriteRequest{
		Video: ports.VideoInfo{VideoID: "abc123def45"},
	})
	require.Error(t, err)
	assert.Equal(t, errclass.Cancelled, errclass.Classify(err))
}

func TestWriteVideoArtifactsOverwriteIsAtomicReplace(t *testing.T) {
	outDir := t.TempDir()
	w := New(outDir)
	req := ports.WriteRequest{
		Video:       ports.VideoInfo{VideoID: "abc123def45", URL: "u"},
		SourceLang:  "en",
		OriginalSRT: []byte("first\n"),
	}
	_, err := w.WriteVideoArtifacts(context.Background(), req)
	require.NoError(t, err)

	req.OriginalSRT = []byte("second\n")
	files, err := w.WriteVideoArtifacts(context.Background(), req)
	require.NoError(t, err)

	data, err := os.ReadFile(files["original"])
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	// No temp droppings next to the artifacts.
	entries, err := os.ReadDir(filepath.Dir(files["original"]))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
