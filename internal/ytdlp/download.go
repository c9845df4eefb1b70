// SPDX-License-Identifier: MIT

package ytdlp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/httpx"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

// maxSubtitleBytes caps one subtitle download. Real tracks are tens of
// kilobytes; anything near this limit is garbage.
const maxSubtitleBytes = 20 << 20

// formatRank orders subtitle renditions by how cheaply they convert
// to SRT. Lower is better.
var formatRank = map[string]int{
	"srt": 0, "vtt": 1, "json3": 2, "srv3": 3,
}

// DownloadSubtitle fetches one subtitle track as raw bytes. The track
// URL comes from the cached detection result for the video; a cache
// miss triggers a fresh probe.
func (c *Client) DownloadSubtitle(ctx context.Context, rawURL, lang string, auto bool, opts ports.FetchOptions) ([]byte, error) {
	videoID, ok := ExtractVideoID(rawURL)
	if !ok {
		return nil, errclass.New(errclass.InvalidInput, "", fmt.Sprintf("not a video URL: %s", rawURL))
	}

	det := c.cachedDetection(videoID)
	if det == nil {
		var err error
		det, err = c.ListSubtitles(ctx, rawURL, opts)
		if err != nil {
			return nil, err
		}
	}

	tracks := det.SubtitleURLs[lang]
	if auto {
		tracks = det.AutoSubtitleURLs[lang]
	}
	if len(tracks) == 0 {
		return nil, errclass.New(errclass.Content, "", fmt.Sprintf("no %s subtitle track for %s (auto=%v)", lang, videoID, auto))
	}

	track := pickTrack(tracks)
	data, err := c.fetchTrack(ctx, track.URL, opts.Proxy)
	if err != nil {
		return nil, err
	}

	logger := log.WithComponentFromContext(ctx, "ytdlp")
	logger.Debug().
		Str("event", "ytdlp.subtitle_fetched").
		Str(log.FieldVideoID, videoID).
		Str("lang", lang).
		Bool("auto", auto).
		Str("format", track.Format).
		Int("bytes", len(data)).
		Msg("subtitle track fetched")
	return data, nil
}

func pickTrack(tracks []ports.SubtitleTrack) ports.SubtitleTrack {
	best := tracks[0]
	bestRank, ok := formatRank[best.Format]
	if !ok {
		bestRank = len(formatRank)
	}
	for _, tr := range tracks[1:] {
		rank, ok := formatRank[tr.Format]
		if !ok {
			rank = len(formatRank)
		}
		if rank < bestRank {
			best, bestRank = tr, rank
		}
	}
	return best
}

// fetchAttempts bounds the inner retry on transient HTTP statuses when
// fetching a track directly. Transport errors are not retried here;
// the download stage retry re-probes and covers those.
const fetchAttempts = 3

func (c *Client) fetchTrack(ctx context.Context, trackURL, proxy string) ([]byte, error) {
	client, err := httpx.NewClientWithProxy(c.httpTimeout, proxy)
	if err != nil {
		return nil, errclass.Wrap(errclass.InvalidInput, "", err)
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		data, wait, err := c.fetchOnce(ctx, client, trackURL, attempt)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if wait <= 0 || attempt == fetchAttempts-1 {
			break
		}
		logger := log.WithComponentFromContext(ctx, "ytdlp")
		logger.Debug().
			Str("event", "ytdlp.track_fetch_retry").
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("transient status fetching subtitle track")
		if serr := c.sleep(ctx, wait); serr != nil {
			return nil, errclass.Wrap(errclass.Cancelled, "", serr)
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single GET. A non-zero wait alongside the error
// marks the status as transient and carries the server's Retry-After
// wish, capped and defaulted to exponential backoff.
func (c *Client) fetchOnce(ctx context.Context, client *http.Client, trackURL string, attempt int) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, 0, errclass.Wrap(errclass.InvalidInput, "", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, errclass.Wrap(errclass.Classify(err), "", fmt.Errorf("fetch subtitle track: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t := errclass.ClassifyHTTPStatus(resp.StatusCode)
		if t == "" {
			t = errclass.Unknown
		}
		ferr := errclass.New(t, "", fmt.Sprintf("subtitle track fetch returned HTTP %d", resp.StatusCode))
		if httpx.IsRetryableStatus(resp.StatusCode) {
			return nil, httpx.RetryAfterDuration(resp, httpx.Backoff(attempt), httpx.BackoffCap), ferr
		}
		return nil, 0, ferr
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSubtitleBytes+1))
	if err != nil {
		return nil, 0, errclass.Wrap(errclass.Classify(err), "", fmt.Errorf("read subtitle track: %w", err))
	}
	if len(data) > maxSubtitleBytes {
		return nil, 0, errclass.New(errclass.Parse, "", "subtitle track exceeds size limit")
	}
	return data, 0, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// checkCookieFile validates that the file exists and carries at least
// one youtube.com cookie line in Netscape format.
func checkCookieFile(path string) error {
	if path == "" {
		return errclass.New(errclass.InvalidInput, "", "no cookie file configured")
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return errclass.Wrap(errclass.FileIO, "", fmt.Errorf("read cookie file: %w", err))
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, "youtube.com") && strings.Contains(line, "\t") {
			return nil
		}
	}
	return errclass.New(errclass.Auth, "", "cookie file contains no youtube.com cookies")
}
