// SPDX-License-Identifier: MIT

// Package ytdlp drives the yt-dlp binary for video metadata, channel
// and playlist expansion, and subtitle track discovery. All failures
// at this boundary are classified into the pipeline error taxonomy.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/config"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/procgroup"
)

const (
	// DefaultBinary is the yt-dlp executable looked up on PATH.
	DefaultBinary = "yt-dlp"
	// DefaultTimeout bounds a single metadata probe.
	DefaultTimeout = 60 * time.Second
)

// runFunc executes the binary and returns captured stdout/stderr.
// Injected in tests.
type runFunc func(ctx context.Context, bin string, args []string) (stdout, stderr []byte, err error)

// killGrace bounds how long a cancelled yt-dlp gets to exit on
// SIGTERM before its process group is killed.
const killGrace = 5 * time.Second

func execRun(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
	cmd := exec.Command(bin, args...) // #nosec G204 -- bin and args are built internally
	procgroup.Set(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return stdout.Bytes(), stderr.Bytes(), err
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, killGrace)
		return stdout.Bytes(), stderr.Bytes(), ctx.Err()
	}
}

// Client wraps yt-dlp. It implements ports.Resolver, ports.Catalog
// and ports.Downloader. Safe for concurrent use.
type Client struct {
	bin         string
	timeout     time.Duration
	httpTimeout time.Duration
	run         runFunc
	sleep       func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	probes map[string]*ports.DetectionResult
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the yt-dlp executable path.
func WithBinary(bin string) Option {
	return func(c *Client) {
		if bin != "" {
			c.bin = bin
		}
	}
}

// WithTimeout overrides the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRunFunc injects the subprocess runner. Tests only.
func WithRunFunc(run runFunc) Option {
	return func(c *Client) { c.run = run }
}

// New creates a yt-dlp client.
func New(opts ...Option) *Client {
	c := &Client{
		bin:         DefaultBinary,
		timeout:     DefaultTimeout,
		httpTimeout: DefaultTimeout,
		run:         execRun,
		sleep:       sleepCtx,
		probes:      make(map[string]*ports.DetectionResult),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rawInfo mirrors the subset of yt-dlp's --dump-single-json output the
// pipeline consumes. Flat playlist probes nest further rawInfo values
// under entries.
type rawInfo struct {
	Type        string    `json:"_type"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	WebpageURL  string    `json:"webpage_url"`
	URL         string    `json:"url"`
	ChannelID   string    `json:"channel_id"`
	Channel     string    `json:"channel"`
	Uploader    string    `json:"uploader"`
	Duration    float64   `json:"duration"`
	UploadDate  string    `json:"upload_date"`
	Description string    `json:"description"`
	Entries     []rawInfo `json:"entries"`

	Subtitles         map[string][]rawTrack `json:"subtitles"`
	AutomaticCaptions map[string][]rawTrack `json:"automatic_captions"`
	Chapters          []rawChapter          `json:"chapters"`
}

type rawTrack struct {
	Ext string `json:"ext"`
	URL string `json:"url"`
}

type rawChapter struct {
	StartTime float64 `json:"start_time"`
	Title     string  `json:"title"`
}

// probe runs one --dump-single-json invocation and decodes the result.
func (c *Client) probe(ctx context.Context, rawURL string, flat bool, opts ports.FetchOptions) (*rawInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"--dump-single-json", "--no-warnings", "--no-progress", "--skip-download"}
	if flat {
		args = append(args, "--flat-playlist")
	}
	if opts.CookieFile != "" {
		args = append(args, "--cookies", opts.CookieFile)
	}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	args = append(args, rawURL)

	started := time.Now()
	stdout, stderr, err := c.run(ctx, c.bin, args)
	logger := log.WithComponentFromContext(ctx, "ytdlp")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errclass.Wrap(errclass.Timeout, "", fmt.Errorf("yt-dlp probe: %w", ctxErr))
		}
		exitCode := 1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		t := errclass.ClassifyOutput(string(stderr), exitCode)
		logger.Warn().
			Str("event", "ytdlp.probe_failed").
			Str(log.FieldURL, rawURL).
			Int("exit_code", exitCode).
			Str(log.FieldErrorType, string(t)).
			Msg("yt-dlp probe failed")
		return nil, errclass.New(t, "", fmt.Sprintf("yt-dlp exited %d: %s", exitCode, stderrTail(stderr)))
	}

	var info rawInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, errclass.Wrap(errclass.Parse, "", fmt.Errorf("decode yt-dlp output: %w", err))
	}

	logger.Debug().
		Str("event", "ytdlp.probe_done").
		Str(log.FieldURL, rawURL).
		Bool("flat", flat).
		Dur("elapsed", time.Since(started)).
		Msg("yt-dlp probe complete")
	return &info, nil
}

// stderrTail extracts the most useful line from yt-dlp stderr: the
// last ERROR line if present, otherwise the last non-empty line.
func stderrTail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	var last string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		last = line
		if strings.Contains(line, "ERROR") {
			return line
		}
	}
	// Walk backwards for a late ERROR line.
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.Contains(line, "ERROR") {
			return line
		}
	}
	return last
}

// Identify implements ports.Resolver.
func (c *Client) Identify(rawURL string) ports.URLKind { return Identify(rawURL) }

// ExtractVideoID implements ports.Resolver.
func (c *Client) ExtractVideoID(rawURL string) (string, bool) { return ExtractVideoID(rawURL) }

// Resolve expands a URL into its videos. Channels and playlists use a
// flat probe; single videos use a full metadata probe.
func (c *Client) Resolve(ctx context.Context, rawURL string, opts ports.FetchOptions) ([]ports.VideoInfo, error) {
	switch Identify(rawURL) {
	case ports.KindVideo:
		info, err := c.probe(ctx, rawURL, false, opts)
		if err != nil {
			return nil, err
		}
		v, ok := toVideoInfo(*info)
		if !ok {
			return nil, errclass.New(errclass.Parse, "", fmt.Sprintf("yt-dlp returned no usable video for %s", rawURL))
		}
		return []ports.VideoInfo{v}, nil
	case ports.KindChannel, ports.KindPlaylist:
		info, err := c.probe(ctx, listingURL(rawURL), true, opts)
		if err != nil {
			return nil, err
		}
		videos := flattenEntries(info.Entries, nil)
		logger := log.WithComponentFromContext(ctx, "ytdlp")
		logger.Info().
			Str("event", "ytdlp.resolved").
			Str(log.FieldURL, rawURL).
			Int("videos", len(videos)).
			Msg("listing resolved")
		return videos, nil
	default:
		return nil, errclass.New(errclass.InvalidInput, "", fmt.Sprintf("unrecognized YouTube URL: %s", rawURL))
	}
}

// flattenEntries walks possibly nested flat-playlist entries and
// collects everything that looks like a single video.
func flattenEntries(entries []rawInfo, acc []ports.VideoInfo) []ports.VideoInfo {
	for _, e := range entries {
		if len(e.Entries) > 0 {
			acc = flattenEntries(e.Entries, acc)
			continue
		}
		if v, ok := toVideoInfo(e); ok {
			acc = append(acc, v)
		}
	}
	return acc
}

func toVideoInfo(e rawInfo) (ports.VideoInfo, bool) {
	if !videoIDRe.MatchString(e.ID) {
		return ports.VideoInfo{}, false
	}
	u := e.WebpageURL
	if u == "" && strings.HasPrefix(e.URL, "http") {
		u = e.URL
	}
	if u == "" {
		u = WatchURL(e.ID)
	}
	name := e.Channel
	if name == "" {
		name = e.Uploader
	}
	return ports.VideoInfo{
		VideoID:     e.ID,
		URL:         u,
		Title:       e.Title,
		ChannelID:   e.ChannelID,
		ChannelName: name,
		Duration:    e.Duration,
		UploadDate:  e.UploadDate,
		Description: e.Description,
	}, true
}

// ListSubtitles probes one video's subtitle inventory. The result is
// cached so a later DownloadSubtitle for the same video does not probe
// again.
func (c *Client) ListSubtitles(ctx context.Context, rawURL string, opts ports.FetchOptions) (*ports.DetectionResult, error) {
	info, err := c.probe(ctx, rawURL, false, opts)
	if err != nil {
		return nil, err
	}

	res := &ports.DetectionResult{
		VideoID:          info.ID,
		SubtitleURLs:     normalizeTracks(info.Subtitles),
		AutoSubtitleURLs: normalizeTracks(info.AutomaticCaptions),
	}
	res.ManualLanguages = sortedLangs(res.SubtitleURLs)
	res.AutoLanguages = sortedLangs(res.AutoSubtitleURLs)
	res.HasSubtitles = len(res.ManualLanguages) > 0 || len(res.AutoLanguages) > 0
	for _, ch := range info.Chapters {
		res.Chapters = append(res.Chapters, ports.Chapter{StartSeconds: ch.StartTime, Title: ch.Title})
	}

	c.mu.Lock()
	if len(c.probes) > 512 {
		c.probes = make(map[string]*ports.DetectionResult)
	}
	c.probes[info.ID] = res
	c.mu.Unlock()
	return res, nil
}

// normalizeTracks rewrites language keys to canonical form and keeps
// only tracks with a fetchable URL.
func normalizeTracks(raw map[string][]rawTrack) map[string][]ports.SubtitleTrack {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]ports.SubtitleTrack, len(raw))
	for lang, tracks := range raw {
		norm := config.NormalizeLang(lang)
		for _, tr := range tracks {
			if tr.URL == "" {
				continue
			}
			out[norm] = append(out[norm], ports.SubtitleTrack{Format: tr.Ext, URL: tr.URL})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedLangs(m map[string][]ports.SubtitleTrack) []string {
	if len(m) == 0 {
		return nil
	}
	langs := make([]string, 0, len(m))
	for lang := range m {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func (c *Client) cachedDetection(videoID string) *ports.DetectionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.probes[videoID]
}

// TestCookie verifies a cookie file is usable: it must contain at
// least one youtube.com cookie and authenticate a probe of a public
// video.
func (c *Client) TestCookie(ctx context.Context, cookieFile string) error {
	if err := checkCookieFile(cookieFile); err != nil {
		return err
	}
	// "Me at the zoo": stable since 2005, safe probe target.
	_, err := c.probe(ctx, WatchURL("jNQXAC9IVRw"), false, ports.FetchOptions{CookieFile: cookieFile})
	return err
}
