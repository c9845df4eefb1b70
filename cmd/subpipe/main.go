// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/batch"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/health"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/llm"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/manifest"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/proxypool"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/telemetry"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/transcache"
	appversion "github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/version"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/writer"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ytdlp"
)

var (
	version   = appversion.Version
	commit    = appversion.Commit
	buildDate = appversion.Date
)

const (
	cmdChannel = "channel"
	cmdURLs    = "urls"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return 0
	case "version", "-version", "--version":
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		return 0
	case cmdChannel, cmdURLs:
		return runBatch(args[0], args[1:])
	case "test-cookie":
		return runTestCookie(args[1:])
	case "cache":
		return runCache(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  subpipe channel --url URL [--run|--dry-run] [--force] [flags]")
	fmt.Fprintln(os.Stderr, "  subpipe urls --file FILE [--run|--dry-run] [--force] [flags]")
	fmt.Fprintln(os.Stderr, "  subpipe test-cookie [--cookie FILE]")
	fmt.Fprintln(os.Stderr, "  subpipe cache <verify|prune> [--db PATH]")
	fmt.Fprintln(os.Stderr, "  subpipe version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  --config PATH        config file (JSON or YAML)")
	fmt.Fprintln(os.Stderr, "  --output-dir DIR     override output directory")
	fmt.Fprintln(os.Stderr, "  --metrics-addr ADDR  serve /metrics and /healthz on this address")
	fmt.Fprintln(os.Stderr, "  --log-level LEVEL    debug, info, warn or error")
}

// runBatch drives the channel and urls subcommands; they differ only
// in how the input is read.
func runBatch(cmd string, args []string) int {
	fs := flag.NewFlagSet("subpipe "+cmd, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		sourceURL   string
		listFile    string
		realRun     bool
		dryRun      bool
		force       bool
		configPath  string
		outputDir   string
		metricsAddr string
		logLevel    string
	)
	switch cmd {
	case cmdChannel:
		fs.StringVar(&sourceURL, "url", "", "video, channel or playlist URL")
	case cmdURLs:
		fs.StringVar(&listFile, "file", "", "file with one URL per line")
	}
	fs.BoolVar(&realRun, "run", false, "process fully (the default)")
	fs.BoolVar(&dryRun, "dry-run", false, "detect subtitles only, write nothing but the detection lists")
	fs.BoolVar(&force, "force", false, "ignore the archive and abandon any unfinished batch")
	fs.StringVar(&configPath, "config", "", "path to config file (JSON or YAML)")
	fs.StringVar(&outputDir, "output-dir", "", "override output directory")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if dryRun && realRun {
		fmt.Fprintln(os.Stderr, "Error: --run and --dry-run are mutually exclusive")
		return 1
	}
	if cmd == cmdChannel && strings.TrimSpace(sourceURL) == "" {
		fmt.Fprintln(os.Stderr, "Error: --url is required")
		return 1
	}
	if cmd == cmdURLs && strings.TrimSpace(listFile) == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		return 1
	}

	log.Configure(log.Config{
		Level:   logLevel,
		Service: "subpipe",
		Version: version,
	})
	logger := log.WithComponent("cli")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.invalid").
			Msg("configuration invalid after flag overrides")
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Bool("dry_run", dryRun).
		Bool("force", force).
		Msg("starting subpipe")

	logger.Info().Msgf("→ Output dir: %s", cfg.OutputDir)
	logger.Info().Msgf("→ Targets: %s (summary: %s)",
		strings.Join(cfg.Language.SubtitleTargetLanguages, ", "), cfg.Language.SummaryLanguage)
	logger.Info().Msgf("→ Strategy: %s, bilingual: %s, format: %s",
		cfg.Language.TranslationStrategy, cfg.Language.BilingualMode, cfg.Language.SubtitleFormat)
	if cfg.CookieFile != "" {
		logger.Info().Msg("→ Cookies: configured")
	}
	if len(cfg.Proxies) > 0 {
		logger.Info().Msgf("→ Proxies: %d configured", len(cfg.Proxies))
	}
	if cfg.TranslationCache.Enabled {
		logger.Info().Msgf("→ Translation cache: %s", cfg.EffectiveCachePath())
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "startup.init_failed").
			Msg("failed to initialise components")
	}
	defer a.shutdown()

	opt := batch.RunOptions{DryRun: dryRun, Force: force}
	var res *batch.Result
	switch cmd {
	case cmdChannel:
		res, err = a.runner.RunSource(ctx, sourceURL, opt)
	case cmdURLs:
		var urls []string
		urls, err = readURLFile(listFile)
		if err != nil {
			logger.Error().
				Err(err).
				Str(log.FieldEvent, "run.input_failed").
				Str("file", listFile).
				Msg("could not read URL file")
			return 1
		}
		res, err = a.runner.RunURLs(ctx, urls, opt)
	}
	if err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "run.failed").
			Msg("run failed")
		return 1
	}

	printSummary(res, dryRun)
	if res.Stats.Failed > 0 || res.Stats.Cancelled > 0 {
		return 1
	}
	return 0
}

// readURLFile returns the raw lines of the file; blank lines and
// comments are filtered by the runner.
func readURLFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n"), nil
}

func printSummary(res *batch.Result, dryRun bool) {
	s := res.Stats
	if dryRun {
		detected := s.Total - s.Skipped - s.Failed - s.Cancelled
		fmt.Printf("Dry run: %d with subtitles, %d without, %d failed", detected, s.Skipped, s.Failed)
		if res.AlreadyProcessed > 0 {
			fmt.Printf(" (%d already archived)", res.AlreadyProcessed)
		}
		fmt.Println()
		return
	}

	verb := "created"
	if res.Resumed {
		verb = "resumed"
	}
	fmt.Printf("Batch %s (%s): %d processed, %d failed, %d skipped",
		res.BatchID, verb, s.Success, s.Failed, s.Skipped)
	if s.Cancelled > 0 {
		fmt.Printf(", %d cancelled", s.Cancelled)
	}
	if res.AlreadyProcessed > 0 {
		fmt.Printf(" (%d already archived)", res.AlreadyProcessed)
	}
	fmt.Println()

	if len(s.ErrorCounts) > 0 {
		parts := make([]string, 0, len(s.ErrorCounts))
		for et, n := range s.ErrorCounts {
			parts = append(parts, fmt.Sprintf("%s=%d", et, n))
		}
		fmt.Printf("Failures by type: %s\n", strings.Join(parts, " "))
	}
}

// app bundles everything a run needs plus the pieces that want an
// orderly shutdown.
type app struct {
	runner  *batch.Runner
	store   *manifest.Store
	holder  *llm.ProfileHolder
	cache   *transcache.Store
	tele    *telemetry.Provider
	metrics *metrics.Server
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	tele, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "subpipe",
		ServiceVersion: version,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.tele = tele

	var pool *proxypool.Pool
	if len(cfg.Proxies) > 0 {
		pool = proxypool.New(cfg.Proxies,
			proxypool.WithThreshold(cfg.ProxyFailureThreshold),
			proxypool.WithCooldown(cfg.ProxyRetryDelay()))
	}

	client := ytdlp.New(ytdlp.WithTimeout(cfg.DetectTimeout()))

	holder, err := llm.NewProfileHolder(cfg.EffectiveAIProfilesPath())
	if err != nil {
		a.shutdown()
		return nil, fmt.Errorf("load ai profiles: %w", err)
	}
	a.holder = holder
	if err := holder.StartWatcher(ctx); err != nil {
		logger := log.WithComponent("cli")
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "profiles.watch_failed").
			Msg("profile hot reload unavailable")
	}

	var topts []llm.TranslatorOption
	if cfg.TranslationCache.Enabled {
		cache, err := transcache.Open(cfg.EffectiveCachePath())
		if err != nil {
			a.shutdown()
			return nil, fmt.Errorf("open translation cache: %w", err)
		}
		a.cache = cache
		topts = append(topts, llm.WithCache(cache))
	}
	translator := llm.NewTranslator(holder, topts...)

	store, err := manifest.NewStore(cfg.StateDir(), manifest.WithAutoSave(cfg.AutoSave))
	if err != nil {
		a.shutdown()
		return nil, fmt.Errorf("open manifest store: %w", err)
	}
	a.store = store

	if cfg.MetricsAddr != "" {
		hm := health.NewManager(version)
		if pool != nil {
			hm.RegisterChecker(&health.ProxyPoolChecker{Pool: pool})
		}
		a.metrics = metrics.NewServer(cfg.MetricsAddr, hm)
		a.metrics.Start()
	}

	runner, err := batch.New(batch.Options{
		Config:   cfg,
		Resolver: client,
		Catalog:  client,
		Download: client,
		LLM:      translator,
		Writer:   writer.New(cfg.OutputDir),
		Proxies:  pool,
		Store:    store,
	})
	if err != nil {
		a.shutdown()
		return nil, err
	}
	a.runner = runner
	return a, nil
}

// shutdown releases components in reverse construction order. Safe to
// call on a partially built app.
func (a *app) shutdown() {
	logger := log.WithComponent("cli")
	if a.metrics != nil {
		if err := a.metrics.Shutdown(context.Background()); err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "metrics.shutdown_failed").
				Msg("metrics listener shutdown failed")
		}
	}
	if a.store != nil {
		if err := a.store.Shutdown(); err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "manifest.shutdown_failed").
				Msg("manifest store shutdown failed")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "cache.close_failed").
				Msg("translation cache close failed")
		}
	}
	if a.holder != nil {
		a.holder.Stop()
	}
	if a.tele != nil {
		if err := a.tele.Shutdown(context.Background()); err != nil {
			logger.Warn().
				Err(err).
				Str(log.FieldEvent, "telemetry.shutdown_failed").
				Msg("trace exporter shutdown failed")
		}
	}
}
