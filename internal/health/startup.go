// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
)

// PerformStartupChecks validates the environment before a run starts:
// writable directories, the yt-dlp binary, the cookie file and proxy
// URL syntax. Failing fast here beats failing one video at a time.
func PerformStartupChecks(_ context.Context, cfg *config.Config) error {
	logger := log.WithComponent("startup-check")

	if err := checkWritableDir(logger, cfg.OutputDir); err != nil {
		return fmt.Errorf("output directory check failed: %w", err)
	}
	if err := checkWritableDir(logger, cfg.UserDataDir); err != nil {
		return fmt.Errorf("user data directory check failed: %w", err)
	}

	if _, err := exec.LookPath("yt-dlp"); err != nil {
		return fmt.Errorf("yt-dlp not found in PATH: %w", err)
	}

	if cfg.CookieFile != "" {
		if _, err := os.Stat(cfg.CookieFile); err != nil {
			return fmt.Errorf("cookie file not readable: %w", err)
		}
	}

	for _, p := range cfg.Proxies {
		u, err := url.Parse(p)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid proxy url: %s", p)
		}
	}

	logger.Info().
		Str("event", "startup.checks_passed").
		Msg("all startup checks passed")
	return nil
}

// checkWritableDir creates the directory if missing and verifies a
// file can be written into it.
func checkWritableDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", path, err)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(testFile)

	logger.Debug().
		Str("event", "startup.dir_writable").
		Str("path", path).
		Msg("directory writable")
	return nil
}

// PoolHealth is the view of the proxy pool the checker needs.
type PoolHealth interface {
	Len() int
	HealthyCount() int
}

// ProxyPoolChecker reports degraded when every configured proxy is in
// cooldown.
type ProxyPoolChecker struct {
	Pool PoolHealth
}

func (c ProxyPoolChecker) Name() string { return "proxy_pool" }

func (c ProxyPoolChecker) Check(context.Context) CheckResult {
	if c.Pool == nil || c.Pool.Len() == 0 {
		return CheckResult{Status: StatusHealthy, Message: "no proxies configured"}
	}
	healthy := c.Pool.HealthyCount()
	if healthy == 0 {
		return CheckResult{Status: StatusDegraded, Message: "all proxies in cooldown"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d healthy", healthy)}
}
