// SPDX-License-Identifier: MIT

// Package ports declares the adapter contracts the pipeline consumes:
// URL resolution, subtitle cataloging and download, LLM translation
// and summarization, and artifact writing. Stages depend on these
// interfaces; concrete adapters (yt-dlp, OpenAI, Gemini, filesystem
// writer) live in their own packages.
package ports

import (
	"context"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// VideoInfo identifies one video. Immutable after fetch; identity is
// VideoID (the 11-character YouTube ID).
type VideoInfo struct {
	VideoID     string  `json:"video_id"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	ChannelID   string  `json:"channel_id,omitempty"`
	ChannelName string  `json:"channel_name,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	UploadDate  string  `json:"upload_date,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Chapter is one chapter marker from video metadata.
type Chapter struct {
	StartSeconds float64 `json:"start_seconds"`
	Title        string  `json:"title"`
}

// SubtitleTrack is one downloadable subtitle rendition.
type SubtitleTrack struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}

// DetectionResult describes the subtitle inventory of one video.
// Language codes are normalized (en_us -> en-US) before they are
// stored here, so stages compare them directly.
type DetectionResult struct {
	VideoID          string
	HasSubtitles     bool
	ManualLanguages  []string
	AutoLanguages    []string
	Chapters         []Chapter
	SubtitleURLs     map[string][]SubtitleTrack
	AutoSubtitleURLs map[string][]SubtitleTrack
}

// URLKind classifies an input URL.
type URLKind string

const (
	KindVideo    URLKind = "video"
	KindChannel  URLKind = "channel"
	KindPlaylist URLKind = "playlist"
	KindUnknown  URLKind = "unknown"
)

// FetchOptions carries per-request authentication and routing.
type FetchOptions struct {
	// CookieFile is a Netscape-format cookie file path, or empty.
	CookieFile string
	// Proxy is a proxy URL, or empty for a direct connection.
	Proxy string
}

// Resolver expands user input into concrete videos.
type Resolver interface {
	// Identify classifies a URL without network access.
	Identify(rawURL string) URLKind
	// Resolve expands channels and playlists into their videos; a
	// plain video URL yields exactly one entry.
	Resolve(ctx context.Context, rawURL string, opts FetchOptions) ([]VideoInfo, error)
	// ExtractVideoID pulls the 11-char video ID out of a URL, when
	// the URL addresses a single video.
	ExtractVideoID(rawURL string) (string, bool)
}

// Catalog lists available subtitles and chapters for one video.
type Catalog interface {
	ListSubtitles(ctx context.Context, rawURL string, opts FetchOptions) (*DetectionResult, error)
}

// Downloader fetches one subtitle track as raw bytes in whatever
// format the platform serves; callers convert to SRT.
type Downloader interface {
	DownloadSubtitle(ctx context.Context, rawURL, lang string, auto bool, opts FetchOptions) ([]byte, error)
}

// LLM translates subtitle chunks and produces summaries. Both calls
// block until the provider answers, honoring ctx.
type LLM interface {
	// TranslateChunk translates cues preserving count and order; the
	// returned slice is index-aligned with the input.
	TranslateChunk(ctx context.Context, cues []subtitle.Cue, sourceLang, targetLang string) ([]subtitle.Cue, error)
	// Summarize renders a Markdown summary of the transcript in the
	// target language, using chapters for structure when present.
	Summarize(ctx context.Context, transcript, targetLang string, chapters []Chapter) (string, error)
}

// WriteRequest carries everything the OUTPUT stage persists for one
// video.
type WriteRequest struct {
	Video        VideoInfo
	SourceLang   string
	OriginalSRT  []byte
	Translations map[string][]byte // lang -> SRT bytes
	Transcripts  map[string]string // lang -> plain text
	Summaries    map[string]string // lang -> Markdown
	Chapters     []Chapter
}

// ArtifactWriter persists final artifacts and returns a map of
// artifact kind to absolute path (mirrored into the manifest's
// output_files).
type ArtifactWriter interface {
	WriteVideoArtifacts(ctx context.Context, req WriteRequest) (map[string]string, error)
}
