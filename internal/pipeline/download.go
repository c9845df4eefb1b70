// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// processDownload fetches the source subtitle and whatever target
// translations the platform already has, per the configured strategy.
// Everything lands in the item's temp directory as SRT; targets the
// platform lacks are flagged for AI translation.
func (p *Pipeline) processDownload(ctx context.Context, item *StageData) (*StageData, error) {
	ctx = log.ContextWithVideoID(ctx, item.Video.VideoID)
	logger := log.WithComponentFromContext(ctx, StageDownload)

	p.setStage(item, manifest.StageDownloading)

	det := item.Detection
	if det == nil {
		return item, errclass.New(errclass.InvalidInput, StageDownload, "no detection result")
	}

	srcLang, srcAuto, err := p.pickSourceLang(det)
	if err != nil {
		return item, err
	}
	if err := p.ensureTempDir(item); err != nil {
		return item, err
	}

	srcCues, err := p.fetchSubtitle(ctx, item, srcLang, srcAuto)
	if err != nil {
		return item, err
	}
	originalPath := filepath.Join(item.TempDir, "original."+srcLang+".srt")
	if werr := fs.WriteFileAtomic(originalPath, []byte(subtitle.Format(srcCues)), 0o644); werr != nil {
		return item, errclass.Wrap(errclass.FileIO, StageDownload, werr)
	}

	res := &DownloadResult{
		SourceLang:    srcLang,
		SourceAuto:    srcAuto,
		OriginalPath:  originalPath,
		OfficialPaths: make(map[string]string),
	}

	seen := make(map[string]struct{})
	for _, raw := range p.cfg.Language.SubtitleTargetLanguages {
		target := config.NormalizeLang(raw)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		// The source subtitle already covers its own language.
		if config.LangEqual(target, srcLang) {
			continue
		}

		manualLang, hasManual := matchLang(det.ManualLanguages, target)
		autoLang, hasAuto := matchLang(det.AutoLanguages, target)

		switch p.cfg.Language.TranslationStrategy {
		case config.StrategyAIOnly:
			res.AITargets = append(res.AITargets, target)

		case config.StrategyOfficialOnly:
			if !hasManual {
				return item, errclass.Newf(errclass.Content, StageDownload,
					"no official %s subtitle for %s", target, item.Video.VideoID)
			}
			if err := p.fetchTarget(ctx, item, res, target, manualLang, false); err != nil {
				return item, err
			}

		case config.StrategyOfficialAutoThenAI:
			switch {
			case hasManual:
				if err := p.fetchTarget(ctx, item, res, target, manualLang, false); err != nil {
					return item, err
				}
			case hasAuto:
				if err := p.fetchTarget(ctx, item, res, target, autoLang, true); err != nil {
					return item, err
				}
			default:
				res.AITargets = append(res.AITargets, target)
			}

		default:
			return item, errclass.Newf(errclass.InvalidInput, StageDownload,
				"unknown translation strategy %q", p.cfg.Language.TranslationStrategy)
		}
	}

	item.Download = res
	logger.Info().
		Str(log.FieldEvent, "download.done").
		Str(log.FieldSourceLang, srcLang).
		Bool("source_auto", srcAuto).
		Int("official_targets", len(res.OfficialPaths)).
		Int("ai_targets", len(res.AITargets)).
		Msg("subtitles downloaded")
	return item, nil
}

// fetchTarget downloads one platform-provided target translation into
// the temp dir. A failed download fails the video: the track exists,
// so silently degrading to AI would mask a transient error that a
// resume can retry.
func (p *Pipeline) fetchTarget(ctx context.Context, item *StageData, res *DownloadResult, target, catalogLang string, auto bool) error {
	cues, err := p.fetchSubtitle(ctx, item, catalogLang, auto)
	if err != nil {
		return err
	}
	path := filepath.Join(item.TempDir, "translated."+target+".srt")
	if err := fs.WriteFileAtomic(path, []byte(subtitle.Format(cues)), 0o644); err != nil {
		return errclass.Wrap(errclass.FileIO, StageDownload, err)
	}
	res.OfficialPaths[target] = path
	return nil
}

// fetchSubtitle downloads one track and converts it to cues.
func (p *Pipeline) fetchSubtitle(ctx context.Context, item *StageData, lang string, auto bool) ([]subtitle.Cue, error) {
	proxy := p.nextProxy()
	data, err := p.downloader.DownloadSubtitle(ctx, item.Video.URL, lang, auto, p.fetchOptions(proxy))
	p.noteProxy(proxy, err)
	if err != nil {
		return nil, stageErr(StageDownload, err)
	}
	cues, err := subtitle.Convert(data)
	if err != nil {
		return nil, errclass.Wrap(errclass.Parse, StageDownload, err)
	}
	if len(cues) == 0 {
		return nil, errclass.Newf(errclass.Content, StageDownload, "empty %s subtitle", lang)
	}
	return cues, nil
}

// pickSourceLang chooses the subtitle treated as the original. A
// configured source_language must exist in the catalog. Unconfigured,
// preference is manual English, any manual, auto English, any auto;
// OFFICIAL_ONLY never accepts an auto-generated source.
func (p *Pipeline) pickSourceLang(det *ports.DetectionResult) (lang string, auto bool, err error) {
	officialOnly := p.cfg.Language.TranslationStrategy == config.StrategyOfficialOnly

	if want := config.NormalizeLang(p.cfg.Language.SourceLanguage); want != "" {
		if l, ok := matchLang(det.ManualLanguages, want); ok {
			return l, false, nil
		}
		if !officialOnly {
			if l, ok := matchLang(det.AutoLanguages, want); ok {
				return l, true, nil
			}
		}
		return "", false, errclass.Newf(errclass.Content, StageDownload,
			"configured source language %s not available", want)
	}

	if l, ok := matchLang(det.ManualLanguages, "en"); ok {
		return l, false, nil
	}
	if len(det.ManualLanguages) > 0 {
		return det.ManualLanguages[0], false, nil
	}
	if officialOnly {
		return "", false, errclass.New(errclass.Content, StageDownload,
			"no manual subtitles for OFFICIAL_ONLY strategy")
	}
	if l, ok := matchLang(det.AutoLanguages, "en"); ok {
		return l, true, nil
	}
	if len(det.AutoLanguages) > 0 {
		return det.AutoLanguages[0], true, nil
	}
	return "", false, errclass.New(errclass.Content, StageDownload, "no subtitles available")
}

// ensureTempDir creates the item's temp directory, or adopts one left
// by an earlier run of the same video so chunk progress survives a
// resume.
func (p *Pipeline) ensureTempDir(item *StageData) error {
	if item.TempDir != "" {
		return nil
	}
	root := p.cfg.EffectiveTempDir()
	if err := fs.EnsureDir(root); err != nil {
		return errclass.Wrap(errclass.FileIO, StageDownload, err)
	}

	prefix := fs.SanitizeName(item.Video.VideoID) + "_"
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
				item.TempDir = filepath.Join(root, e.Name())
				return nil
			}
		}
	}

	dir := filepath.Join(root, prefix+uuid.NewString()[:8])
	if err := fs.EnsureDir(dir); err != nil {
		return errclass.Wrap(errclass.FileIO, StageDownload, err)
	}
	item.TempDir = dir
	return nil
}

// matchLang finds the catalog spelling of a wanted language.
func matchLang(catalog []string, want string) (string, bool) {
	for _, c := range catalog {
		if config.LangEqual(c, want) {
			return c, true
		}
	}
	return "", false
}
