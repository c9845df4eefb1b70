// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"os"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/archive"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// processOutput persists the final artifacts, records the video in the
// incremental archive, marks it done, and releases its temp dir.
// Artifacts land before the archive line: a video present in the
// archive always has its outputs on disk.
func (p *Pipeline) processOutput(ctx context.Context, item *StageData) (*StageData, error) {
	ctx = log.ContextWithVideoID(ctx, item.Video.VideoID)
	logger := log.WithComponentFromContext(ctx, StageOutput)

	p.setStage(item, manifest.StageOutputting)

	if item.Download == nil {
		return item, errclass.New(errclass.InvalidInput, StageOutput, "no download result")
	}

	req, err := p.buildWriteRequest(item)
	if err != nil {
		return item, err
	}
	files, err := p.writer.WriteVideoArtifacts(ctx, req)
	if err != nil {
		return item, stageErr(StageOutput, err)
	}

	if p.batch != nil {
		if merr := p.store.SetOutputFiles(p.batch, item.Video.VideoID, files); merr != nil {
			logger.Warn().
				Str(log.FieldEvent, "output.manifest_files_failed").
				Err(merr).
				Msg("manifest output files update failed")
		}
	}

	if p.archivePath != "" {
		if aerr := archive.MarkProcessed(p.archivePath, item.Video.VideoID, p.configHash); aerr != nil {
			return item, errclass.Wrap(errclass.FileIO, StageOutput, aerr)
		}
	}

	p.setStage(item, manifest.StageDone)

	if item.TempDir != "" {
		if rerr := os.RemoveAll(item.TempDir); rerr != nil {
			logger.Warn().
				Str(log.FieldEvent, "output.temp_release_failed").
				Str(log.FieldPath, item.TempDir).
				Err(rerr).
				Msg("temp dir release failed")
		}
		item.TempDir = ""
	}

	logger.Info().
		Str(log.FieldEvent, "output.done").
		Int("artifacts", len(files)).
		Msg("video complete")
	return item, nil
}

// buildWriteRequest loads the temp-dir artifacts into one write
// request. The configured subtitle_format decides whether translations
// ship as SRT, plaintext, or both; the original always ships as SRT.
func (p *Pipeline) buildWriteRequest(item *StageData) (ports.WriteRequest, error) {
	dl := item.Download
	req := ports.WriteRequest{
		Video:      item.Video,
		SourceLang: dl.SourceLang,
	}
	if item.Detection != nil {
		req.Chapters = item.Detection.Chapters
	}

	orig, err := fs.ReadFile(dl.OriginalPath)
	if err != nil {
		return req, errclass.Wrap(errclass.FileIO, StageOutput, err)
	}
	req.OriginalSRT = orig

	format := p.cfg.Language.SubtitleFormat
	wantSRT := format == config.FormatSRT || format == config.FormatBoth || format == ""
	wantTXT := format == config.FormatTXT || format == config.FormatBoth

	if item.Translation != nil {
		for lang, path := range item.Translation.Paths {
			data, rerr := fs.ReadFile(path)
			if rerr != nil {
				return req, errclass.Wrap(errclass.FileIO, StageOutput, rerr)
			}
			if wantSRT {
				if req.Translations == nil {
					req.Translations = make(map[string][]byte)
				}
				req.Translations[lang] = data
			}
			if wantTXT {
				cues, perr := subtitle.Parse(string(data))
				if perr != nil {
					return req, errclass.Wrap(errclass.Parse, StageOutput, perr)
				}
				if req.Transcripts == nil {
					req.Transcripts = make(map[string]string)
				}
				req.Transcripts[lang] = subtitle.Plaintext(cues)
			}
		}
	}

	if item.Summary != nil {
		req.Summaries = map[string]string{item.Summary.Lang: item.Summary.Markdown}
	}
	return req, nil
}
