// SPDX-License-Identifier: MIT

// Package writer persists the final per-video artifacts into the
// stable output tree: original and translated subtitles, plaintext
// transcripts, summaries and a metadata document. Every file lands via
// atomic replace so a crash never leaves a truncated artifact behind.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

// VideosDirName is the subdirectory of the output dir holding one
// directory per finished video.
const VideosDirName = "videos"

// Writer implements ports.ArtifactWriter on the local filesystem.
type Writer struct {
	outputDir string
	clock     func() time.Time
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.clock = now }
}

// New builds a writer rooted at outputDir.
func New(outputDir string, opts ...Option) *Writer {
	w := &Writer{outputDir: outputDir, clock: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// metadata is the schema of videos/<id>/metadata.json.
type metadata struct {
	VideoID       string          `json:"video_id"`
	URL           string          `json:"url"`
	Title         string          `json:"title"`
	ChannelID     string          `json:"channel_id,omitempty"`
	ChannelName   string          `json:"channel_name,omitempty"`
	Duration      float64         `json:"duration,omitempty"`
	UploadDate    string          `json:"upload_date,omitempty"`
	Description   string          `json:"description,omitempty"`
	SourceLang    string          `json:"source_lang"`
	TargetLangs   []string        `json:"target_langs,omitempty"`
	SummaryLangs  []string        `json:"summary_langs,omitempty"`
	Chapters      []ports.Chapter `json:"chapters,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
	ArtifactFiles []string        `json:"artifact_files"`
}

// WriteVideoArtifacts writes every artifact carried by req under
// videos/<video_id>/ and returns artifact kind -> absolute path. The
// returned map feeds the manifest's output_files; keys are stable
// ("original", "translated.<lang>", "transcript.<lang>",
// "summary.<lang>", "metadata").
func (w *Writer) WriteVideoArtifacts(ctx context.Context, req ports.WriteRequest) (map[string]string, error) {
	if req.Video.VideoID == "" {
		return nil, errclass.New(errclass.InvalidInput, "output", "write request without video id")
	}
	if err := ctx.Err(); err != nil {
		return nil, errclass.Wrap(errclass.Cancelled, "output", err)
	}

	dir := filepath.Join(w.outputDir, VideosDirName, fs.SanitizeName(req.Video.VideoID))
	if err := fs.EnsureDir(dir); err != nil {
		return nil, errclass.Wrap(errclass.FileIO, "output", err)
	}

	files := make(map[string]string)
	write := func(kind, name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := fs.WriteFileAtomic(path, data, 0o644); err != nil {
			return errclass.Wrap(errclass.FileIO, "output", fmt.Errorf("write %s: %w", name, err))
		}
		files[kind] = path
		return nil
	}

	if len(req.OriginalSRT) > 0 {
		name := fmt.Sprintf("original.%s.srt", langOrUnknown(req.SourceLang))
		if err := write("original", name, req.OriginalSRT); err != nil {
			return nil, err
		}
	}

	for _, lang := range sortedKeys(req.Translations) {
		name := fmt.Sprintf("translated.%s.srt", lang)
		if err := write("translated."+lang, name, req.Translations[lang]); err != nil {
			return nil, err
		}
	}

	for _, lang := range sortedKeys(req.Transcripts) {
		name := fmt.Sprintf("transcript.%s.txt", lang)
		if err := write("transcript."+lang, name, []byte(req.Transcripts[lang])); err != nil {
			return nil, err
		}
	}

	for _, lang := range sortedKeys(req.Summaries) {
		name := fmt.Sprintf("summary.%s.md", lang)
		if err := write("summary."+lang, name, []byte(req.Summaries[lang])); err != nil {
			return nil, err
		}
	}

	meta := metadata{
		VideoID:      req.Video.VideoID,
		URL:          req.Video.URL,
		Title:        req.Video.Title,
		ChannelID:    req.Video.ChannelID,
		ChannelName:  req.Video.ChannelName,
		Duration:     req.Video.Duration,
		UploadDate:   req.Video.UploadDate,
		Description:  req.Video.Description,
		SourceLang:   req.SourceLang,
		TargetLangs:  sortedKeys(req.Translations),
		SummaryLangs: sortedKeys(req.Summaries),
		Chapters:     req.Chapters,
		GeneratedAt:  w.clock().UTC(),
	}
	for _, kind := range sortedKeys(files) {
		meta.ArtifactFiles = append(meta.ArtifactFiles, filepath.Base(files[kind]))
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, errclass.Wrap(errclass.Parse, "output", err)
	}
	if err := write("metadata", "metadata.json", data); err != nil {
		return nil, err
	}

	log.WithComponentFromContext(ctx, "writer").Debug().
		Str("event", "writer.artifacts_written").
		Str(log.FieldVideoID, req.Video.VideoID).
		Int("files", len(files)).
		Msg("artifacts written")
	return files, nil
}

func langOrUnknown(lang string) string {
	if lang == "" {
		return "und"
	}
	return lang
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
