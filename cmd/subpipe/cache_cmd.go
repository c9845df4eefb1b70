// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/persistence/sqlite"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/transcache"
)

// runCache dispatches the translation cache maintenance subcommands.
func runCache(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: subpipe cache <verify|prune> [flags]")
		return 1
	}
	switch args[0] {
	case "verify":
		return runCacheVerify(args[1:])
	case "prune":
		return runCachePrune(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: subpipe cache <verify|prune> [flags]")
		return 1
	}
}

// cacheDBPath resolves the database path: an explicit --db wins,
// otherwise the config decides.
func cacheDBPath(dbPath, configPath string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	return cfg.EffectiveCachePath(), nil
}

// runCacheVerify checks the cache database for structural corruption.
func runCacheVerify(args []string) int {
	fs := flag.NewFlagSet("subpipe cache verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		dbPath     string
		mode       string
		configPath string
	)
	fs.StringVar(&dbPath, "db", "", "database to check (default: translation cache from config)")
	fs.StringVar(&mode, "mode", "quick", "quick or full integrity check")
	fs.StringVar(&configPath, "config", "", "path to config file (JSON or YAML)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if mode != "quick" && mode != "full" {
		fmt.Fprintf(os.Stderr, "Error: invalid mode %q (want quick or full)\n", mode)
		return 1
	}

	path, err := cacheDBPath(dbPath, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cache database not found: %s\n", path)
		return 1
	}

	issues, err := sqlite.VerifyIntegrity(path, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ verification failed: %v\n", err)
		return 1
	}
	if issues != nil {
		fmt.Fprintf(os.Stderr, "✗ corruption detected in %s:\n", path)
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		return 1
	}

	fmt.Printf("✓ %s integrity ok (mode: %s)\n", path, mode)
	return 0
}

// runCachePrune drops cache entries that have not been used recently.
func runCachePrune(args []string) int {
	fs := flag.NewFlagSet("subpipe cache prune", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		dbPath     string
		configPath string
		maxAge     time.Duration
	)
	fs.StringVar(&dbPath, "db", "", "database to prune (default: translation cache from config)")
	fs.StringVar(&configPath, "config", "", "path to config file (JSON or YAML)")
	fs.DurationVar(&maxAge, "max-age", 90*24*time.Hour, "drop entries unused for this long")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if maxAge <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --max-age must be positive")
		return 1
	}

	path, err := cacheDBPath(dbPath, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cache database not found: %s\n", path)
		return 1
	}

	store, err := transcache.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ open failed: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	dropped, err := store.Prune(ctx, maxAge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ prune failed: %v\n", err)
		return 1
	}
	remaining, err := store.Len(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ count failed: %v\n", err)
		return 1
	}

	fmt.Printf("✓ pruned %d entries, %d remain\n", dropped, remaining)
	return 0
}
