// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// processSummarize renders the optional Markdown summary. Summaries
// are best-effort: any failure short of cancellation logs a warning
// and forwards the item without one.
func (p *Pipeline) processSummarize(ctx context.Context, item *StageData) (*StageData, error) {
	ctx = log.ContextWithVideoID(ctx, item.Video.VideoID)
	logger := log.WithComponentFromContext(ctx, StageSummarize)

	p.setStage(item, manifest.StageSummarizing)

	sumLang := config.NormalizeLang(p.cfg.Language.SummaryLanguage)
	if sumLang == "" {
		return item, nil
	}

	transcript, err := p.summaryTranscript(item, sumLang)
	if err != nil {
		logger.Warn().
			Str(log.FieldEvent, "summarize.transcript_failed").
			Err(err).
			Msg("summary input unavailable, continuing without summary")
		return item, nil
	}

	var chapters []ports.Chapter
	if item.Detection != nil {
		chapters = item.Detection.Chapters
	}
	md, err := p.llm.Summarize(ctx, transcript, sumLang, chapters)
	if err != nil {
		if errclass.Classify(err) == errclass.Cancelled {
			return item, stageErr(StageSummarize, err)
		}
		logger.Warn().
			Str(log.FieldEvent, "summarize.failed").
			Str(log.FieldTargetLang, sumLang).
			Err(err).
			Msg("summary generation failed, continuing without summary")
		return item, nil
	}

	path := filepath.Join(item.TempDir, "summary."+sumLang+".md")
	if err := fs.WriteFileAtomic(path, []byte(md), 0o644); err != nil {
		logger.Warn().
			Str(log.FieldEvent, "summarize.write_failed").
			Str(log.FieldPath, path).
			Err(err).
			Msg("summary write failed, continuing without summary")
		return item, nil
	}

	item.Summary = &SummaryResult{Lang: sumLang, Path: path, Markdown: md}
	logger.Info().
		Str(log.FieldEvent, "summarize.done").
		Str(log.FieldTargetLang, sumLang).
		Msg("summary written")
	return item, nil
}

// summaryTranscript picks the subtitle the summary is based on: the
// summary-language translation when it exists, else any completed
// translation (deterministically the first by language code), else the
// original.
func (p *Pipeline) summaryTranscript(item *StageData, sumLang string) (string, error) {
	path := ""
	if item.Translation != nil {
		if tp, ok := item.Translation.Paths[sumLang]; ok {
			path = tp
		} else if len(item.Translation.Paths) > 0 {
			langs := make([]string, 0, len(item.Translation.Paths))
			for l := range item.Translation.Paths {
				langs = append(langs, l)
			}
			sort.Strings(langs)
			path = item.Translation.Paths[langs[0]]
		}
	}
	if path == "" {
		if item.Download == nil {
			return "", errclass.New(errclass.InvalidInput, StageSummarize, "no subtitle available")
		}
		path = item.Download.OriginalPath
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return "", errclass.Wrap(errclass.FileIO, StageSummarize, err)
	}
	cues, err := subtitle.Parse(string(data))
	if err != nil {
		return "", errclass.Wrap(errclass.Parse, StageSummarize, err)
	}
	return subtitle.Plaintext(cues), nil
}
