// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/chunk"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/telemetry"
)

// processTranslate produces every configured target subtitle that the
// platform could not supply. Work is chunked and resumable: each
// completed chunk is cached in the temp dir before the next begins, so
// an interrupted video restarts at its first pending chunk.
func (p *Pipeline) processTranslate(ctx context.Context, item *StageData) (*StageData, error) {
	ctx = log.ContextWithVideoID(ctx, item.Video.VideoID)
	logger := log.WithComponentFromContext(ctx, StageTranslate)

	p.setStage(item, manifest.StageTranslating)

	dl := item.Download
	if dl == nil {
		return item, errclass.New(errclass.InvalidInput, StageTranslate, "no download result")
	}

	res := &TranslationResult{Paths: make(map[string]string, len(dl.OfficialPaths)+len(dl.AITargets))}
	for lang, path := range dl.OfficialPaths {
		res.Paths[lang] = path
	}

	var srcCues []subtitle.Cue
	for _, target := range dl.AITargets {
		if ctx.Err() != nil {
			return item, errclass.Wrap(errclass.Cancelled, StageTranslate, context.Cause(ctx))
		}
		if srcCues == nil {
			data, err := fs.ReadFile(dl.OriginalPath)
			if err != nil {
				return item, errclass.Wrap(errclass.FileIO, StageTranslate, err)
			}
			srcCues, err = subtitle.Parse(string(data))
			if err != nil {
				return item, errclass.Wrap(errclass.Parse, StageTranslate, err)
			}
		}
		path, err := p.translateTarget(ctx, item, srcCues, dl.SourceLang, target)
		if err != nil {
			return item, err
		}
		res.Paths[target] = path
	}

	item.Translation = res
	logger.Info().
		Str(log.FieldEvent, "translate.done").
		Int("targets", len(res.Paths)).
		Int("ai_targets", len(dl.AITargets)).
		Msg("translations ready")
	return item, nil
}

// translateTarget runs the chunked translation of srcCues into one
// target language and writes the assembled SRT to the temp dir.
func (p *Pipeline) translateTarget(ctx context.Context, item *StageData, srcCues []subtitle.Cue, srcLang, target string) (string, error) {
	logger := log.WithComponentFromContext(ctx, StageTranslate)

	chunks := chunk.Split(srcCues, p.cfg.ChunkMaxCues, p.cfg.ChunkMaxChars)
	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.TranslationAttributes(srcLang, target, len(chunks))...)
	tracker := chunk.NewTracker(item.TempDir, item.Video.VideoID, target, len(chunks))
	if err := tracker.Restore(); err != nil {
		// Corrupt progress costs reuse, not correctness; translate
		// everything again.
		logger.Warn().
			Str(log.FieldEvent, "translate.progress_restore_failed").
			Str(log.FieldTargetLang, target).
			Err(err).
			Msg("chunk progress unreadable, starting fresh")
	}

	pending := tracker.Pending()
	total, done := tracker.Status()
	if done > 0 {
		logger.Info().
			Str(log.FieldEvent, "translate.resumed").
			Str(log.FieldTargetLang, target).
			Int(log.FieldChunkDone, done).
			Int(log.FieldChunkTotal, total).
			Msg("resuming chunked translation")
	}

	for _, idx := range pending {
		if ctx.Err() != nil {
			return "", errclass.Wrap(errclass.Cancelled, StageTranslate, context.Cause(ctx))
		}
		translated, err := p.translateChunk(ctx, chunks[idx], srcLang, target)
		if err != nil {
			return "", err
		}
		if p.cfg.Language.BilingualMode == config.BilingualSourceTarget {
			translated = subtitle.MergeBilingual(translated, chunks[idx].Cues)
		}
		if err := tracker.MarkCompleted(idx, subtitle.Format(translated)); err != nil {
			return "", errclass.Wrap(errclass.FileIO, StageTranslate, err)
		}
		p.noteChunk(item, idx)
		logger.Debug().
			Str(log.FieldEvent, "translate.chunk_done").
			Str(log.FieldTargetLang, target).
			Int(log.FieldChunkIndex, idx).
			Int(log.FieldChunkTotal, len(chunks)).
			Msg("chunk translated")
	}

	srt, err := tracker.Assemble()
	if err != nil {
		return "", errclass.Wrap(errclass.FileIO, StageTranslate, err)
	}
	path := filepath.Join(item.TempDir, "translated."+target+".srt")
	if err := fs.WriteFileAtomic(path, []byte(srt), 0o644); err != nil {
		return "", errclass.Wrap(errclass.FileIO, StageTranslate, err)
	}
	return path, nil
}

// translateChunk calls the LLM with a bounded retry budget. The
// adapter absorbs rate-limit backoff internally without consuming
// budget here; these attempts cover parse violations and transient
// provider failures.
func (p *Pipeline) translateChunk(ctx context.Context, c chunk.Chunk, srcLang, target string) ([]subtitle.Cue, error) {
	logger := log.WithComponentFromContext(ctx, StageTranslate)

	var lastErr error
	for attempt := 0; attempt <= p.cfg.ChunkMaxRetries; attempt++ {
		if attempt > 0 {
			metrics.IncChunkRetry()
		}
		out, err := p.llm.TranslateChunk(ctx, c.Cues, srcLang, target)
		if err == nil {
			return out, nil
		}
		if errclass.Classify(err) == errclass.Cancelled {
			return nil, stageErr(StageTranslate, err)
		}
		lastErr = err
		logger.Warn().
			Str(log.FieldEvent, "translate.chunk_attempt_failed").
			Str(log.FieldTargetLang, target).
			Int(log.FieldChunkIndex, c.Index).
			Int("attempt", attempt).
			Err(err).
			Msg("chunk translation attempt failed")
	}
	return nil, stageErr(StageTranslate, lastErr)
}

// noteChunk mirrors chunk completion into the manifest. The tracker's
// progress file is authoritative; the manifest copy is advisory, so
// write errors only log.
func (p *Pipeline) noteChunk(item *StageData, index int) {
	metrics.IncChunksTranslated()
	if p.batch == nil {
		return
	}
	if err := p.store.AddCompletedChunk(p.batch, item.Video.VideoID, index); err != nil {
		log.WithComponent(StageTranslate).Warn().
			Str(log.FieldEvent, "translate.manifest_chunk_failed").
			Str(log.FieldVideoID, item.Video.VideoID).
			Int(log.FieldChunkIndex, index).
			Err(err).
			Msg("manifest chunk update failed")
	}
}
