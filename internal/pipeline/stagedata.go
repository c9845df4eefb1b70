// SPDX-License-Identifier: MIT

// Package pipeline orchestrates the five processing stages (detect,
// download, translate, summarize, output) as chained bounded worker
// queues. Items flow forward only; any failure routes the video to the
// manifest and failure log and stops its progression. The scheduler
// owns drain order and aggregate statistics.
package pipeline

import (
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

// Stage names, used for queue labels, classified errors and failure
// records.
const (
	StageDetect    = "detect"
	StageDownload  = "download"
	StageTranslate = "translate"
	StageSummarize = "summarize"
	StageOutput    = "output"
)

// DownloadResult is what the download stage leaves in the temp dir.
type DownloadResult struct {
	// SourceLang is the normalized language of the original subtitle.
	SourceLang string
	// SourceAuto marks the original as an auto-generated caption.
	SourceAuto bool
	// OriginalPath is the source-language SRT inside the temp dir.
	OriginalPath string
	// OfficialPaths maps target language -> SRT path for translations
	// that were downloaded rather than AI-produced.
	OfficialPaths map[string]string
	// AITargets lists target languages still needing AI translation.
	AITargets []string
}

// TranslationResult maps every configured target language to its
// translated SRT inside the temp dir (official and AI alike).
type TranslationResult struct {
	Paths map[string]string
}

// SummaryResult is the optional summary artifact.
type SummaryResult struct {
	Lang     string
	Path     string
	Markdown string
}

// StageData is the mutable item flowing through the stage queues. A
// stage reads the fields it requires and sets its own result field;
// a non-nil result field means that stage completed for this video.
type StageData struct {
	Video ports.VideoInfo
	RunID string

	Detection   *ports.DetectionResult
	TempDir     string
	Download    *DownloadResult
	Translation *TranslationResult
	Summary     *SummaryResult
}
