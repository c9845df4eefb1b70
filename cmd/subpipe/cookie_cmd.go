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

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ytdlp"
)

// runTestCookie probes a known public video with the cookie file and
// reports whether YouTube accepts it.
func runTestCookie(args []string) int {
	fs := flag.NewFlagSet("subpipe test-cookie", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		cookieFile string
		configPath string
		logLevel   string
	)
	fs.StringVar(&cookieFile, "cookie", "", "cookie file to test (default: cookie_file from config)")
	fs.StringVar(&configPath, "config", "", "path to config file (JSON or YAML)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	log.Configure(log.Config{
		Level:   logLevel,
		Service: "subpipe",
		Version: version,
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(cookieFile) == "" {
		cookieFile = cfg.CookieFile
	}
	if strings.TrimSpace(cookieFile) == "" {
		fmt.Fprintln(os.Stderr, "Error: no cookie file (pass --cookie or set cookie_file in config)")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ytdlp.New(ytdlp.WithTimeout(cfg.DetectTimeout()))
	if err := client.TestCookie(ctx, cookieFile); err != nil {
		fmt.Fprintf(os.Stderr, "✗ cookie check failed (%s): %v\n", errclass.Classify(err), err)
		return 1
	}

	fmt.Printf("✓ %s is valid\n", cookieFile)
	return 0
}
