// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/cancel"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/faillog"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/pipeline/queue"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/proxypool"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/telemetry"
)

// Options assembles a pipeline run. Manifest and Batch are nil for dry
// runs, which perform detection only and persist nothing beyond the
// subtitle URL lists.
type Options struct {
	Config *config.Config

	Manifest *manifest.Store
	Batch    *manifest.Batch
	FailLog  *faillog.Logger

	Catalog    ports.Catalog
	Downloader ports.Downloader
	LLM        ports.LLM
	Writer     ports.ArtifactWriter

	// Proxies may be nil; stages then connect directly.
	Proxies *proxypool.Pool

	// ArchivePath is the incremental archive for this source; empty
	// disables archive writes (dry runs).
	ArchivePath string
	// ConfigHash is the language-config hash stamped on archive lines.
	ConfigHash string

	RunID  string
	DryRun bool

	Token *cancel.Token
}

// Stats aggregates one run. Success counts videos that reached done;
// skipped videos (no subtitles) are counted separately and never as
// successes.
type Stats struct {
	Total       int
	Success     int
	Failed      int
	Skipped     int
	Cancelled   int
	ErrorCounts map[errclass.Type]int
}

// Pipeline chains the five stage queues and owns failure routing and
// aggregate accounting. One Pipeline serves one batch run.
type Pipeline struct {
	cfg   *config.Config
	store *manifest.Store
	batch *manifest.Batch
	fail  *faillog.Logger

	catalog    ports.Catalog
	downloader ports.Downloader
	llm        ports.LLM
	writer     ports.ArtifactWriter
	proxies    *proxypool.Pool

	archivePath string
	configHash  string
	runID       string
	dryRun      bool

	token *cancel.Token

	detect    *queue.Queue[*StageData]
	download  *queue.Queue[*StageData]
	translate *queue.Queue[*StageData]
	summarize *queue.Queue[*StageData]
	output    *queue.Queue[*StageData]

	mu          sync.Mutex
	success     int
	failed      int
	skipped     int
	cancelled   int
	errorCounts map[errclass.Type]int
	listedURLs  map[string]struct{}
}

// New wires the stage queues back to front so every OnSuccess hook can
// reference its downstream queue.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("pipeline: nil config")
	case opts.Catalog == nil || opts.Downloader == nil:
		return nil, fmt.Errorf("pipeline: nil subtitle adapter")
	case opts.LLM == nil:
		return nil, fmt.Errorf("pipeline: nil llm adapter")
	case opts.Writer == nil:
		return nil, fmt.Errorf("pipeline: nil writer adapter")
	case opts.FailLog == nil:
		return nil, fmt.Errorf("pipeline: nil failure logger")
	case opts.Token == nil:
		return nil, fmt.Errorf("pipeline: nil cancel token")
	case opts.RunID == "":
		return nil, fmt.Errorf("pipeline: empty run id")
	case (opts.Manifest == nil) != (opts.Batch == nil):
		return nil, fmt.Errorf("pipeline: manifest store and batch must be set together")
	case opts.Manifest == nil && !opts.DryRun:
		return nil, fmt.Errorf("pipeline: manifest required outside dry runs")
	}

	p := &Pipeline{
		cfg:         opts.Config,
		store:       opts.Manifest,
		batch:       opts.Batch,
		fail:        opts.FailLog,
		catalog:     opts.Catalog,
		downloader:  opts.Downloader,
		llm:         opts.LLM,
		writer:      opts.Writer,
		proxies:     opts.Proxies,
		archivePath: opts.ArchivePath,
		configHash:  opts.ConfigHash,
		runID:       opts.RunID,
		dryRun:      opts.DryRun,
		token:       opts.Token,
		errorCounts: make(map[errclass.Type]int),
		listedURLs:  make(map[string]struct{}),
	}

	w := opts.Config.Workers
	p.output = queue.New(queue.Config[*StageData]{
		Name:      StageOutput,
		Workers:   w.Output,
		Process:   p.instrument(StageOutput, p.processOutput),
		OnSuccess: p.noteSuccess,
		OnFailure: p.routeFailure,
	})
	p.summarize = queue.New(queue.Config[*StageData]{
		Name:      StageSummarize,
		Workers:   w.Summarize,
		Process:   p.instrument(StageSummarize, p.processSummarize),
		OnSuccess: p.forward(p.output),
		OnFailure: p.routeFailure,
	})
	p.translate = queue.New(queue.Config[*StageData]{
		Name:      StageTranslate,
		Workers:   w.Translate,
		Process:   p.instrument(StageTranslate, p.processTranslate),
		OnSuccess: p.forward(p.summarize),
		OnFailure: p.routeFailure,
	})
	p.download = queue.New(queue.Config[*StageData]{
		Name:      StageDownload,
		Workers:   w.Download,
		Process:   p.instrument(StageDownload, p.processDownload),
		OnSuccess: p.forward(p.translate),
		OnFailure: p.routeFailure,
	})
	p.detect = queue.New(queue.Config[*StageData]{
		Name:      StageDetect,
		Workers:   w.Detect,
		Process:   p.instrument(StageDetect, p.processDetect),
		OnSuccess: p.forward(p.download),
		OnFailure: p.routeFailure,
	})
	return p, nil
}

// instrument wraps a stage handler in a tracing span. Drops (skips,
// dry-run exits) are not errors for the trace.
func (p *Pipeline) instrument(stage string, fn queue.Processor[*StageData]) queue.Processor[*StageData] {
	return func(ctx context.Context, item *StageData) (*StageData, error) {
		ctx, span := telemetry.StartStage(ctx, stage, item.Video.VideoID, p.batchID())
		out, err := fn(ctx, item)
		errType := ""
		if err != nil && !errors.Is(err, queue.ErrDrop) {
			errType = string(errclass.Classify(err))
		}
		telemetry.EndStage(span, errType)
		return out, err
	}
}

func (p *Pipeline) batchID() string {
	if p.batch == nil {
		return ""
	}
	return p.batch.BatchID
}

// ProcessVideos runs the full pipeline over videos and blocks until
// every item has completed, failed, or drained after cancellation.
// Safe to call once per Pipeline.
func (p *Pipeline) ProcessVideos(videos []ports.VideoInfo) Stats {
	ctx := log.ContextWithRunID(p.token.Context(), p.runID)
	logger := log.WithComponentFromContext(ctx, "pipeline")

	for _, q := range p.queues() {
		q.Start(ctx)
	}

	logger.Info().
		Str(log.FieldEvent, "pipeline.start").
		Int("videos", len(videos)).
		Bool("dry_run", p.dryRun).
		Msg("pipeline started")

	for _, v := range videos {
		item := &StageData{Video: v, RunID: p.runID}
		if err := p.detect.Submit(ctx, item); err != nil {
			p.routeFailure(item, err)
		}
	}

	// Close strictly upstream first: WaitDrained on a stage guarantees
	// its workers have stopped forwarding, so the next input can close
	// without racing a late Submit.
	for _, q := range p.queues() {
		q.CloseInput()
		q.WaitDrained()
	}

	stats := p.snapshot(len(videos))
	logger.Info().
		Str(log.FieldEvent, "pipeline.done").
		Int("total", stats.Total).
		Int("success", stats.Success).
		Int("failed", stats.Failed).
		Int("skipped", stats.Skipped).
		Int("cancelled", stats.Cancelled).
		Msg("pipeline drained")
	return stats
}

// Stop cancels the run. In-flight items abort at their next
// cooperative checkpoint; queued items drain as cancelled failures.
func (p *Pipeline) Stop(reason string) {
	p.token.Cancel(reason)
}

func (p *Pipeline) queues() []*queue.Queue[*StageData] {
	return []*queue.Queue[*StageData]{p.detect, p.download, p.translate, p.summarize, p.output}
}

// forward submits a finished item to the next stage; a rejected
// submission (cancellation) is accounted like any other failure.
func (p *Pipeline) forward(next *queue.Queue[*StageData]) func(*StageData) {
	return func(item *StageData) {
		if err := next.Submit(p.token.Context(), item); err != nil {
			p.routeFailure(item, err)
		}
	}
}

// itemContext scopes a stage call: correlation IDs for logging plus
// the shared cancel context.
func (p *Pipeline) itemContext(item *StageData) context.Context {
	ctx := log.ContextWithRunID(p.token.Context(), p.runID)
	return log.ContextWithVideoID(ctx, item.Video.VideoID)
}

// setStage records a manifest stage transition. Dry runs carry no
// manifest; transition errors are logged, never fatal, because the
// files on disk remain the source of truth for resume.
func (p *Pipeline) setStage(item *StageData, stage manifest.Stage) {
	if p.batch == nil {
		return
	}
	if err := p.store.UpdateVideoStage(p.batch, item.Video.VideoID, stage); err != nil {
		log.WithComponent("pipeline").Warn().
			Str(log.FieldEvent, "pipeline.stage_update_failed").
			Str(log.FieldVideoID, item.Video.VideoID).
			Str(log.FieldStage, string(stage)).
			Err(err).
			Msg("manifest stage update failed")
	}
}

// routeFailure is the single terminal sink for non-success items. A
// cancelled item is failure-logged but its manifest entry keeps its
// current stage, so a resumed run picks the video up again; every
// other failure marks the manifest entry failed with its error type.
func (p *Pipeline) routeFailure(item *StageData, err error) {
	et := errclass.Classify(err)
	stage := errclass.StageOf(err)
	if stage == "" {
		stage = StageDetect
	}
	reason := reasonOf(err)

	logger := log.WithComponentFromContext(p.itemContext(item), "pipeline")
	logger.Error().
		Str(log.FieldEvent, "pipeline.video_failed").
		Str(log.FieldStage, stage).
		Str(log.FieldErrorType, string(et)).
		Str(log.FieldURL, item.Video.URL).
		Msg(reason)

	if et != errclass.Cancelled && p.batch != nil {
		if merr := p.store.MarkVideoFailed(p.batch, item.Video.VideoID, reason, et); merr != nil {
			logger.Warn().
				Str(log.FieldEvent, "pipeline.manifest_fail_mark_failed").
				Err(merr).
				Msg("manifest failure mark failed")
		}
	}

	if lerr := p.fail.Log(faillog.Record{
		VideoID:     item.Video.VideoID,
		URL:         item.Video.URL,
		Stage:       stage,
		ErrorType:   string(et),
		Reason:      reason,
		Timestamp:   time.Now().UTC(),
		RunID:       p.runID,
		ChannelID:   item.Video.ChannelID,
		ChannelName: item.Video.ChannelName,
	}); lerr != nil {
		logger.Warn().
			Str(log.FieldEvent, "pipeline.faillog_write_failed").
			Err(lerr).
			Msg("failure record write failed")
	}

	p.cleanupTemp(item, et)

	p.mu.Lock()
	if et == errclass.Cancelled {
		p.cancelled++
	} else {
		p.failed++
	}
	p.errorCounts[et]++
	p.mu.Unlock()

	if et == errclass.Cancelled {
		metrics.IncVideoOutcome("cancelled")
	} else {
		metrics.IncVideoOutcome("failed")
	}
}

// cleanupTemp removes a failed item's temp directory when configured
// to. Cancelled items always keep theirs: chunk progress inside is
// what makes the eventual resume cheap.
func (p *Pipeline) cleanupTemp(item *StageData, et errclass.Type) {
	if item.TempDir == "" {
		return
	}
	if et == errclass.Cancelled || p.cfg.KeepTempOnError {
		return
	}
	if err := os.RemoveAll(item.TempDir); err != nil {
		log.WithComponent("pipeline").Warn().
			Str(log.FieldEvent, "pipeline.temp_cleanup_failed").
			Str(log.FieldVideoID, item.Video.VideoID).
			Str(log.FieldPath, item.TempDir).
			Err(err).
			Msg("temp dir cleanup failed")
	}
	item.TempDir = ""
}

// noteSuccess is the output queue's OnSuccess hook.
func (p *Pipeline) noteSuccess(item *StageData) {
	p.mu.Lock()
	p.success++
	p.mu.Unlock()
	metrics.IncVideoOutcome("success")
}

// noteSkipped accounts a video dropped at detect for lack of
// subtitles.
func (p *Pipeline) noteSkipped() {
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()
	metrics.IncVideoOutcome("skipped")
}

func (p *Pipeline) snapshot(total int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[errclass.Type]int, len(p.errorCounts))
	for k, v := range p.errorCounts {
		counts[k] = v
	}
	return Stats{
		Total:       total,
		Success:     p.success,
		Failed:      p.failed,
		Skipped:     p.skipped,
		Cancelled:   p.cancelled,
		ErrorCounts: counts,
	}
}

// reasonOf extracts the human-readable failure reason. It walks to the
// innermost classified error: outer wraps accumulate type prefixes the
// failure log would otherwise repeat.
func reasonOf(err error) string {
	var ce *errclass.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	for {
		var inner *errclass.Error
		if ce.Err == nil || !errors.As(ce.Err, &inner) {
			break
		}
		ce = inner
	}
	if ce.Reason != "" {
		return ce.Reason
	}
	if ce.Err != nil {
		return ce.Err.Error()
	}
	return err.Error()
}

// stageErr stamps the stage onto an adapter error, keeping the inner
// classification.
func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return errclass.Wrap(errclass.Unknown, stage, err)
}
