// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/faillog"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/pipeline/queue"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

// Subtitle inventory lists in the output directory, appended during
// detection.
const (
	WithSubtitleListName    = "with_subtitle.txt"
	WithoutSubtitleListName = "without_subtitle.txt"
)

// processDetect resolves the subtitle catalog for one video. Videos
// without any subtitles are terminal here: skipped, listed, recorded,
// never forwarded. In dry runs every video is terminal here.
func (p *Pipeline) processDetect(ctx context.Context, item *StageData) (*StageData, error) {
	ctx = log.ContextWithVideoID(ctx, item.Video.VideoID)
	logger := log.WithComponentFromContext(ctx, StageDetect)

	p.setStage(item, manifest.StageDetecting)

	proxy := p.nextProxy()
	det, err := p.catalog.ListSubtitles(ctx, item.Video.URL, p.fetchOptions(proxy))
	p.noteProxy(proxy, err)
	if err != nil {
		return item, stageErr(StageDetect, err)
	}
	item.Detection = det

	if !det.HasSubtitles {
		p.appendURLList(WithoutSubtitleListName, item.Video.URL)
		p.setStage(item, manifest.StageSkipped)
		p.logSkip(item)
		p.noteSkipped()
		logger.Info().
			Str(log.FieldEvent, "detect.skipped").
			Str(log.FieldURL, item.Video.URL).
			Msg("no subtitles")
		return item, queue.ErrDrop
	}

	p.appendURLList(WithSubtitleListName, item.Video.URL)
	logger.Debug().
		Str(log.FieldEvent, "detect.catalog").
		Int("manual_langs", len(det.ManualLanguages)).
		Int("auto_langs", len(det.AutoLanguages)).
		Int("chapters", len(det.Chapters)).
		Msg("subtitle catalog resolved")

	if p.dryRun {
		return item, queue.ErrDrop
	}
	return item, nil
}

// logSkip records the no-subtitle outcome as a failure-log entry so
// skipped videos are greppable alongside real failures.
func (p *Pipeline) logSkip(item *StageData) {
	err := p.fail.Log(faillog.Record{
		VideoID:     item.Video.VideoID,
		URL:         item.Video.URL,
		Stage:       StageDetect,
		ErrorType:   string(errclass.Content),
		Reason:      "no subtitles",
		Timestamp:   time.Now().UTC(),
		RunID:       p.runID,
		ChannelID:   item.Video.ChannelID,
		ChannelName: item.Video.ChannelName,
	})
	if err != nil {
		log.WithComponent(StageDetect).Warn().
			Str(log.FieldEvent, "detect.skip_record_failed").
			Str(log.FieldVideoID, item.Video.VideoID).
			Err(err).
			Msg("skip record write failed")
	}
}

// appendURLList appends url to a list file in the output directory,
// once per run. The files themselves are append-only across runs.
func (p *Pipeline) appendURLList(name, url string) {
	key := name + "\x00" + url
	p.mu.Lock()
	_, seen := p.listedURLs[key]
	if !seen {
		p.listedURLs[key] = struct{}{}
	}
	p.mu.Unlock()
	if seen {
		return
	}
	if err := fs.AppendLine(filepath.Join(p.cfg.OutputDir, name), url); err != nil {
		log.WithComponent(StageDetect).Warn().
			Str(log.FieldEvent, "detect.url_list_append_failed").
			Str(log.FieldPath, name).
			Err(err).
			Msg("url list append failed")
	}
}

// fetchOptions builds per-request routing for the yt-dlp adapter.
func (p *Pipeline) fetchOptions(proxy string) ports.FetchOptions {
	return ports.FetchOptions{CookieFile: p.cfg.CookieFile, Proxy: proxy}
}

// nextProxy picks a proxy for one external call; empty means direct.
func (p *Pipeline) nextProxy() string {
	if p.proxies == nil {
		return ""
	}
	return p.proxies.Next(true)
}

// noteProxy feeds the call outcome back into the pool. Only failures a
// proxy can plausibly cause count against it: a private video is not
// the proxy's fault, and cancellation says nothing about its health.
func (p *Pipeline) noteProxy(proxy string, err error) {
	if p.proxies == nil || proxy == "" {
		return
	}
	if err == nil {
		p.proxies.MarkSuccess(proxy)
		return
	}
	switch errclass.Classify(err) {
	case errclass.Network, errclass.Timeout, errclass.RateLimit:
		p.proxies.MarkFailure(proxy, err)
	}
}
