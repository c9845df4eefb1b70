// SPDX-License-Identifier: MIT

// Package batch turns user input (a channel, playlist or video URL, or
// a flat URL list) into one pipeline run: it expands sources, filters
// against the incremental archive, creates or resumes the batch
// manifest, and reports aggregate results.
package batch

import (
	"context"
	"fmt"
	iofs "io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/archive"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/cancel"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/faillog"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/pipeline"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/fs"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/proxypool"
)

// VideoListName is the per-run submission log in the output directory.
const VideoListName = "video_list.txt"

// Options assembles a Runner.
type Options struct {
	Config   *config.Config
	Resolver ports.Resolver
	Catalog  ports.Catalog
	Download ports.Downloader
	LLM      ports.LLM
	Writer   ports.ArtifactWriter
	// Proxies may be nil for direct connections.
	Proxies *proxypool.Pool
	// Store holds batch manifests. Required for real runs; dry runs
	// never touch it.
	Store *manifest.Store
	// Clock overrides time for batch ids and archive names in tests.
	Clock func() time.Time
}

// RunOptions are the per-invocation switches.
type RunOptions struct {
	// DryRun performs detection only: no manifest, no archive writes,
	// no outputs.
	DryRun bool
	// Force bypasses the archive filter and abandons any resumable
	// batch for the source, reprocessing everything from scratch.
	Force bool
}

// Result is one run's outcome.
type Result struct {
	BatchID string
	RunID   string
	// Resumed reports whether an unfinished batch was picked up.
	Resumed bool
	// AlreadyProcessed counts videos the archive filtered out.
	AlreadyProcessed int
	// ResolveFailed counts input URLs that could not be expanded.
	ResolveFailed int
	Stats         pipeline.Stats
}

// Runner owns source expansion and batch lifecycle around the
// pipeline.
type Runner struct {
	cfg      *config.Config
	resolver ports.Resolver
	catalog  ports.Catalog
	download ports.Downloader
	llm      ports.LLM
	writer   ports.ArtifactWriter
	proxies  *proxypool.Pool
	store    *manifest.Store
	clock    func() time.Time
}

// New validates deps and builds a Runner.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("batch: nil config")
	case opts.Resolver == nil:
		return nil, fmt.Errorf("batch: nil resolver")
	case opts.Catalog == nil || opts.Download == nil:
		return nil, fmt.Errorf("batch: nil subtitle adapter")
	case opts.LLM == nil:
		return nil, fmt.Errorf("batch: nil llm adapter")
	case opts.Writer == nil:
		return nil, fmt.Errorf("batch: nil writer adapter")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Runner{
		cfg:      opts.Config,
		resolver: opts.Resolver,
		catalog:  opts.Catalog,
		download: opts.Download,
		llm:      opts.LLM,
		writer:   opts.Writer,
		proxies:  opts.Proxies,
		store:    opts.Store,
		clock:    clock,
	}, nil
}

// RunSource processes one channel, playlist or video URL.
func (r *Runner) RunSource(ctx context.Context, rawURL string, opt RunOptions) (*Result, error) {
	kind := r.resolver.Identify(rawURL)
	if kind == ports.KindUnknown {
		return nil, errclass.Newf(errclass.InvalidInput, "", "unrecognized YouTube URL: %s", rawURL)
	}

	videos, failed, firstErr := r.expand(ctx, []string{rawURL})
	if len(videos) == 0 && failed > 0 {
		return nil, errclass.Wrap(errclass.Classify(firstErr), "", firstErr)
	}

	archiveName := r.archiveNameFor(kind, rawURL, videos)
	return r.run(ctx, rawURL, archiveName, videos, failed, opt)
}

// RunURLs processes a flat list of URLs, expanding any channels or
// playlists among them. URLs that fail to resolve are counted, not
// fatal.
func (r *Runner) RunURLs(ctx context.Context, urls []string, opt RunOptions) (*Result, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "#") {
			continue
		}
		cleaned = append(cleaned, u)
	}
	if len(cleaned) == 0 {
		return nil, errclass.New(errclass.InvalidInput, "", "no URLs to process")
	}

	videos, failed, _ := r.expand(ctx, cleaned)
	source := fmt.Sprintf("urls:%d", len(cleaned))
	return r.run(ctx, source, archive.BatchArchiveName(r.clock()), videos, failed, opt)
}

// expand resolves each input URL into videos, deduplicated by video
// id. Resolution failures are logged and counted, and the first one is
// returned for callers that treat an all-failed expansion as fatal.
// resolveConcurrency bounds parallel URL expansion; each resolution
// is one yt-dlp subprocess.
const resolveConcurrency = 4

func (r *Runner) expand(ctx context.Context, urls []string) ([]ports.VideoInfo, int, error) {
	logger := log.WithComponent("batch")
	opts := ports.FetchOptions{CookieFile: r.cfg.CookieFile}
	if r.proxies != nil {
		opts.Proxy = r.proxies.Next(true)
	}

	type outcome struct {
		videos []ports.VideoInfo
		err    error
	}
	results := make([]outcome, len(urls))

	// Resolution failures are counted, never fatal, so the group
	// only bounds concurrency.
	g := new(errgroup.Group)
	g.SetLimit(resolveConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			resolved, err := r.resolver.Resolve(ctx, u, opts)
			results[i] = outcome{videos: resolved, err: err}
			return nil
		})
	}
	_ = g.Wait()

	// Merge in input order so batch submission stays deterministic.
	var (
		videos   []ports.VideoInfo
		firstErr error
	)
	seen := make(map[string]struct{})
	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			if firstErr == nil {
				firstErr = res.err
			}
			logger.Error().
				Str(log.FieldEvent, "batch.resolve_failed").
				Str(log.FieldURL, urls[i]).
				Str(log.FieldErrorType, string(errclass.Classify(res.err))).
				Err(res.err).
				Msg("url resolution failed")
			continue
		}
		for _, v := range res.videos {
			if _, dup := seen[v.VideoID]; dup {
				continue
			}
			seen[v.VideoID] = struct{}{}
			videos = append(videos, v)
		}
	}
	return videos, failed, firstErr
}

// archiveNameFor picks the incremental archive file per source kind.
// Single videos are not incremental.
func (r *Runner) archiveNameFor(kind ports.URLKind, rawURL string, videos []ports.VideoInfo) string {
	switch kind {
	case ports.KindChannel:
		if len(videos) > 0 && videos[0].ChannelID != "" {
			return archive.ChannelArchiveName(videos[0].ChannelID)
		}
		return archive.BatchArchiveName(r.clock())
	case ports.KindPlaylist:
		if id := playlistID(rawURL); id != "" {
			return archive.PlaylistArchiveName(id)
		}
		return archive.BatchArchiveName(r.clock())
	default:
		return ""
	}
}

func playlistID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

// run is the shared tail of both entry points: archive filter, batch
// create-or-resume, pipeline execution.
func (r *Runner) run(ctx context.Context, source, archiveName string, videos []ports.VideoInfo, resolveFailed int, opt RunOptions) (*Result, error) {
	if !opt.DryRun && r.store == nil {
		return nil, fmt.Errorf("batch: manifest store required outside dry runs")
	}

	runID := uuid.NewString()[:8]
	ctx = log.ContextWithRunID(ctx, runID)
	logger := log.WithComponentFromContext(ctx, "batch")

	if err := fs.EnsureDir(r.cfg.OutputDir); err != nil {
		return nil, errclass.Wrap(errclass.FileIO, "", err)
	}
	r.sweepStale()

	if err := archive.MigrateLegacy(r.cfg.ArchiveDir(), []string{
		filepath.Join(r.cfg.OutputDir, "archive.txt"),
		"archive.txt",
	}); err != nil {
		logger.Warn().
			Str(log.FieldEvent, "batch.archive_migration_failed").
			Err(err).
			Msg("legacy archive migration failed")
	}

	archivePath := ""
	if archiveName != "" {
		if err := fs.EnsureDir(r.cfg.ArchiveDir()); err != nil {
			return nil, errclass.Wrap(errclass.FileIO, "", err)
		}
		archivePath = filepath.Join(r.cfg.ArchiveDir(), archiveName)
	}
	configHash := r.cfg.Language.Hash()

	kept, alreadyDone, err := r.filterByArchive(videos, archivePath, opt.Force, configHash)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:            runID,
		AlreadyProcessed: alreadyDone,
		ResolveFailed:    resolveFailed,
	}

	var (
		store *manifest.Store
		batch *manifest.Batch
	)
	if !opt.DryRun {
		store = r.store
		var resumed bool
		batch, resumed, err = r.prepareBatch(source, kept, archivePath, configHash, opt.Force)
		if err != nil {
			return nil, err
		}
		res.BatchID = batch.BatchID
		res.Resumed = resumed
		kept = r.submissionSet(batch, kept)
		r.writeVideoList(batch.BatchID, source, kept)
	}

	token := cancel.New(ctx)
	defer token.Cancel("run finished")

	archiveForRun := archivePath
	if opt.DryRun {
		archiveForRun = ""
	}
	p, err := pipeline.New(pipeline.Options{
		Config:      r.cfg,
		Manifest:    store,
		Batch:       batch,
		FailLog:     faillog.New(r.cfg.OutputDir),
		Catalog:     r.catalog,
		Downloader:  r.download,
		LLM:         r.llm,
		Writer:      r.writer,
		Proxies:     r.proxies,
		ArchivePath: archiveForRun,
		ConfigHash:  configHash,
		RunID:       runID,
		DryRun:      opt.DryRun,
		Token:       token,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str(log.FieldEvent, "batch.run_start").
		Str("source", source).
		Int("videos", len(kept)).
		Int("already_processed", alreadyDone).
		Int("resolve_failed", resolveFailed).
		Bool("dry_run", opt.DryRun).
		Bool("force", opt.Force).
		Msg("batch run starting")

	res.Stats = p.ProcessVideos(kept)
	res.Stats.Failed += resolveFailed
	res.Stats.Total += resolveFailed

	if store != nil {
		if err := store.Flush(); err != nil {
			logger.Warn().
				Str(log.FieldEvent, "batch.flush_failed").
				Err(err).
				Msg("manifest flush failed")
		}
	}
	return res, nil
}

// filterByArchive drops videos already processed under the current
// language config.
func (r *Runner) filterByArchive(videos []ports.VideoInfo, archivePath string, force bool, configHash string) ([]ports.VideoInfo, int, error) {
	if archivePath == "" || len(videos) == 0 {
		return videos, 0, nil
	}
	ids := make([]string, len(videos))
	byID := make(map[string]ports.VideoInfo, len(videos))
	for i, v := range videos {
		ids[i] = v.VideoID
		byID[v.VideoID] = v
	}
	keepIDs, err := archive.FilterUnprocessed(ids, archivePath, force, configHash)
	if err != nil {
		return nil, 0, errclass.Wrap(errclass.FileIO, "", err)
	}
	kept := make([]ports.VideoInfo, 0, len(keepIDs))
	for _, id := range keepIDs {
		kept = append(kept, byID[id])
	}
	skipped := len(videos) - len(kept)
	for i := 0; i < skipped; i++ {
		metrics.IncArchiveSkip()
	}
	return kept, skipped, nil
}

// prepareBatch resumes the newest unfinished batch for source, or
// creates a fresh one. Force wipes resumable batches first: a forced
// rerun starts from a clean manifest.
func (r *Runner) prepareBatch(source string, videos []ports.VideoInfo, archivePath, configHash string, force bool) (*manifest.Batch, bool, error) {
	logger := log.WithComponent("batch")

	if force {
		r.wipeUnfinished(source)
	} else if b := r.findResumable(source); b != nil {
		r.reconcile(b, archivePath, configHash)
		r.registerNew(b, videos)
		if err := r.store.SaveBatch(b, true); err != nil {
			return nil, false, errclass.Wrap(errclass.FileIO, "", err)
		}
		logger.Info().
			Str(log.FieldEvent, "batch.resumed").
			Str(log.FieldBatchID, b.BatchID).
			Msg("resuming unfinished batch")
		return b, true, nil
	}

	batchID := r.clock().Format("20060102_150405")
	b := r.store.CreateBatch(batchID, source)
	r.registerNew(b, videos)
	if err := r.store.SaveBatch(b, true); err != nil {
		return nil, false, errclass.Wrap(errclass.FileIO, "", err)
	}
	return b, false, nil
}

// findResumable returns the newest batch for source that still has
// unfinished videos.
func (r *Runner) findResumable(source string) *manifest.Batch {
	ids, err := r.store.ListBatches()
	if err != nil {
		return nil
	}
	for i := len(ids) - 1; i >= 0; i-- {
		b, err := r.store.LoadBatch(ids[i])
		if err != nil || b == nil {
			continue
		}
		if b.Source != source {
			continue
		}
		if hasUnfinished(b) {
			return b
		}
	}
	return nil
}

func hasUnfinished(b *manifest.Batch) bool {
	for _, v := range b.Videos {
		if !v.Stage.Terminal() {
			return true
		}
		if v.Stage == manifest.StageFailed && errclass.TypeFromString(v.ErrorType).Retryable() {
			return true
		}
	}
	return false
}

// wipeUnfinished deletes every batch for source, terminal or not. Used
// by force reruns.
func (r *Runner) wipeUnfinished(source string) {
	ids, err := r.store.ListBatches()
	if err != nil {
		return
	}
	for _, id := range ids {
		b, err := r.store.LoadBatch(id)
		if err != nil || b == nil || b.Source != source {
			continue
		}
		if derr := r.store.DeleteBatch(id); derr != nil {
			log.WithComponent("batch").Warn().
				Str(log.FieldEvent, "batch.wipe_failed").
				Str(log.FieldBatchID, id).
				Err(derr).
				Msg("stale batch delete failed")
		}
	}
}

// reconcile prepares a resumed batch: videos whose archive line
// already matches the current config are promoted to done (the crash
// happened between archive append and the final stage write);
// in-flight videos and retryably-failed videos return to pending.
func (r *Runner) reconcile(b *manifest.Batch, archivePath, configHash string) {
	logger := log.WithComponent("batch")

	var inArchive map[string]string
	if archivePath != "" {
		if entries, err := archive.Entries(archivePath); err == nil {
			inArchive = entries
		}
	}

	for id, v := range b.Videos {
		if hash, ok := inArchive[id]; ok && hash == configHash && !v.Stage.Terminal() {
			if err := r.store.UpdateVideoStage(b, id, manifest.StageDone); err == nil {
				continue
			}
		}

		switch {
		case v.Stage.Terminal():
			if v.Stage == manifest.StageFailed && errclass.TypeFromString(v.ErrorType).Retryable() {
				r.resetVideo(b, id)
			}
		case v.Stage == manifest.StagePending:
			// Untouched, submit as-is.
		default:
			// In flight when the previous run stopped.
			r.resetVideo(b, id)
			logger.Info().
				Str(log.FieldEvent, "batch.video_requeued").
				Str(log.FieldVideoID, id).
				Msg("in-flight video returned to pending")
		}
	}
}

func (r *Runner) resetVideo(b *manifest.Batch, id string) {
	if err := r.store.ResetVideo(b, id); err != nil {
		log.WithComponent("batch").Warn().
			Str(log.FieldEvent, "batch.reset_failed").
			Str(log.FieldVideoID, id).
			Err(err).
			Msg("video reset failed")
	}
}

// registerNew adds videos the manifest has not seen.
func (r *Runner) registerNew(b *manifest.Batch, videos []ports.VideoInfo) {
	for _, v := range videos {
		if b.Video(v.VideoID) != nil {
			continue
		}
		if err := b.AddVideo(v.VideoID, v.URL, v.Title); err != nil {
			log.WithComponent("batch").Warn().
				Str(log.FieldEvent, "batch.register_failed").
				Str(log.FieldVideoID, v.VideoID).
				Err(err).
				Msg("video registration failed")
		}
	}
}

// submissionSet merges the archive-filtered resolve result with the
// manifest's own pending videos: a resumed batch may hold videos the
// source no longer lists (deleted or hidden), and those resume from
// manifest data alone.
func (r *Runner) submissionSet(b *manifest.Batch, resolved []ports.VideoInfo) []ports.VideoInfo {
	out := make([]ports.VideoInfo, 0, len(resolved))
	seen := make(map[string]struct{}, len(resolved))

	for _, v := range resolved {
		mv := b.Video(v.VideoID)
		if mv != nil && mv.Stage.Terminal() {
			continue
		}
		out = append(out, v)
		seen[v.VideoID] = struct{}{}
	}

	for id, mv := range b.Videos {
		if _, ok := seen[id]; ok {
			continue
		}
		if mv.Stage.Terminal() {
			continue
		}
		out = append(out, ports.VideoInfo{VideoID: id, URL: mv.URL, Title: mv.Title})
	}
	return out
}

// writeVideoList appends the run header and submitted URLs to
// video_list.txt.
func (r *Runner) writeVideoList(batchID, source string, videos []ports.VideoInfo) {
	path := filepath.Join(r.cfg.OutputDir, VideoListName)
	header := fmt.Sprintf("# batch %s started %s source=%s videos=%d",
		batchID, r.clock().UTC().Format(time.RFC3339), source, len(videos))
	lines := []string{header}
	for _, v := range videos {
		lines = append(lines, v.URL)
	}
	for _, line := range lines {
		if err := fs.AppendLine(path, line); err != nil {
			log.WithComponent("batch").Warn().
				Str(log.FieldEvent, "batch.video_list_failed").
				Err(err).
				Msg("video list append failed")
			return
		}
	}
}

// orphanTempAge is how old a per-video temp dir must be before the
// startup sweep reclaims it. Younger dirs may hold chunk progress a
// resume is about to reuse.
const orphanTempAge = 48 * time.Hour

// sweepStale removes atomic-write leftovers (*.tmp, *.part) from the
// output tree and per-video temp dirs nothing has touched in two days.
func (r *Runner) sweepStale() {
	logger := log.WithComponent("batch")
	removed := 0
	_ = filepath.WalkDir(r.cfg.OutputDir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part") {
			if rerr := os.Remove(path); rerr == nil {
				removed++
			}
		}
		return nil
	})

	dirs := 0
	cutoff := r.clock().Add(-orphanTempAge)
	if entries, err := os.ReadDir(r.cfg.EffectiveTempDir()); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if rerr := os.RemoveAll(filepath.Join(r.cfg.EffectiveTempDir(), e.Name())); rerr == nil {
				dirs++
			}
		}
	}

	if removed > 0 || dirs > 0 {
		logger.Info().
			Str(log.FieldEvent, "batch.sweep").
			Int("removed_files", removed).
			Int("removed_dirs", dirs).
			Msg("removed stale temp leftovers")
	}
}
