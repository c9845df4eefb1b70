// SPDX-License-Identifier: MIT

// Package proxypool rotates upstream proxies for yt-dlp and HTTP
// traffic. Proxies that keep failing are benched for a cooldown and
// probed again afterwards, so one dead exit node never stalls a batch.
package proxypool

import (
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
)

const (
	// DefaultFailureThreshold is the consecutive-failure count that
	// benches a proxy.
	DefaultFailureThreshold = 3
	// DefaultCooldown is how long a benched proxy sits out before it
	// becomes retryable again.
	DefaultCooldown = 10 * time.Minute
)

// validSchemes lists proxy schemes yt-dlp accepts. The in-process
// HTTP client supports a subset; socks4 proxies are only ever handed
// to the subprocess.
var validSchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks4":  true,
	"socks5":  true,
	"socks5h": true,
}

// Status is a point-in-time snapshot of one proxy's health.
type Status struct {
	URL                 string     `json:"url"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalFailures       int        `json:"total_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastSuccessTime     *time.Time `json:"last_success_time,omitempty"`
	MarkedUnhealthyTime *time.Time `json:"marked_unhealthy_time,omitempty"`
	Unhealthy           bool       `json:"is_unhealthy"`
}

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	url                 string
	consecutiveFailures int
	totalFailures       int
	lastError           string
	lastSuccess         time.Time
	markedUnhealthy     time.Time
	unhealthy           bool
}

// Pool selects proxies round-robin, preferring healthy entries, then
// benched entries whose cooldown has elapsed. All methods are safe
// for concurrent use.
type Pool struct {
	mu        sync.Mutex
	entries   []*entry
	cursor    int
	threshold int
	cooldown  time.Duration
	clock     clock
}

// Option configures a Pool.
type Option func(*Pool)

// WithThreshold overrides the consecutive-failure bench threshold.
func WithThreshold(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.threshold = n
		}
	}
}

// WithCooldown overrides the bench cooldown.
func WithCooldown(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.cooldown = d
		}
	}
}

// WithClock injects a clock. Tests only.
func WithClock(c clock) Option {
	return func(p *Pool) { p.clock = c }
}

// New builds a pool from raw proxy URLs. Invalid entries are dropped
// with a warning and never cause runtime errors.
func New(proxies []string, opts ...Option) *Pool {
	p := &Pool{
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
		clock:     realClock{},
	}
	for _, opt := range opts {
		opt(p)
	}

	logger := log.WithComponent("proxypool")
	for _, raw := range proxies {
		if err := Validate(raw); err != nil {
			logger.Warn().
				Str("event", "proxypool.invalid_proxy").
				Str(log.FieldProxy, raw).
				Err(err).
				Msg("dropping invalid proxy")
			continue
		}
		p.entries = append(p.entries, &entry{url: raw})
		metrics.SetProxyHealthy(raw, true)
	}

	logger.Info().
		Str("event", "proxypool.initialized").
		Int("proxies", len(p.entries)).
		Msg("proxy pool ready")
	return p
}

// Validate reports whether raw is a usable proxy URL: known scheme,
// a hostname, and an in-range port when one is given.
func Validate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !validSchemes[u.Scheme] {
		return &url.Error{Op: "proxy", URL: raw, Err: errUnsupportedScheme}
	}
	if u.Hostname() == "" {
		return &url.Error{Op: "proxy", URL: raw, Err: errMissingHost}
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return &url.Error{Op: "proxy", URL: raw, Err: errBadPort}
		}
	}
	return nil
}

var (
	errUnsupportedScheme = errorString("unsupported proxy scheme")
	errMissingHost       = errorString("proxy URL missing host")
	errBadPort           = errorString("proxy port out of range")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// Len reports how many valid proxies the pool holds.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// HealthyCount reports how many proxies are currently usable.
func (p *Pool) HealthyCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.entries {
		if !e.unhealthy {
			n++
		}
	}
	return n
}

// Next picks the next proxy URL. An empty string means "connect
// directly". Healthy proxies rotate round-robin; with none healthy,
// the longest-benched retryable proxy is probed; with none retryable
// either, allowDirect decides between direct connection and the
// least-failed proxy.
func (p *Pool) Next(allowDirect bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return ""
	}

	now := p.clock.Now()

	// Round-robin across healthy entries.
	for i := 0; i < len(p.entries); i++ {
		e := p.entries[p.cursor%len(p.entries)]
		p.cursor++
		if !e.unhealthy {
			return e.url
		}
	}

	// All benched: probe the one that has cooled down the longest.
	var probe *entry
	for _, e := range p.entries {
		if now.Sub(e.markedUnhealthy) < p.cooldown {
			continue
		}
		if probe == nil || e.markedUnhealthy.Before(probe.markedUnhealthy) {
			probe = e
		}
	}
	if probe != nil {
		log.WithComponent("proxypool").Info().
			Str("event", "proxypool.probing").
			Str(log.FieldProxy, probe.url).
			Msg("probing benched proxy after cooldown")
		return probe.url
	}

	if allowDirect {
		return ""
	}

	// Last resort: the proxy that failed the least.
	best := p.entries[0]
	for _, e := range p.entries[1:] {
		if e.consecutiveFailures < best.consecutiveFailures {
			best = e
		}
	}
	return best.url
}

// MarkSuccess restores a proxy to healthy and clears its consecutive
// failure count.
func (p *Pool) MarkSuccess(proxyURL string) {
	if proxyURL == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(proxyURL)
	if e == nil {
		return
	}
	wasUnhealthy := e.unhealthy
	e.consecutiveFailures = 0
	e.lastError = ""
	e.lastSuccess = p.clock.Now()
	e.unhealthy = false
	e.markedUnhealthy = time.Time{}
	metrics.SetProxyHealthy(proxyURL, true)

	if wasUnhealthy {
		log.WithComponent("proxypool").Info().
			Str("event", "proxypool.recovered").
			Str(log.FieldProxy, proxyURL).
			Msg("proxy recovered")
	}
}

// MarkFailure records a failure. Reaching the threshold benches the
// proxy for the cooldown period.
func (p *Pool) MarkFailure(proxyURL string, cause error) {
	if proxyURL == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.find(proxyURL)
	if e == nil {
		return
	}
	e.consecutiveFailures++
	e.totalFailures++
	if cause != nil {
		e.lastError = cause.Error()
	}
	metrics.IncProxyFailure(proxyURL)

	if !e.unhealthy && e.consecutiveFailures >= p.threshold {
		e.unhealthy = true
		e.markedUnhealthy = p.clock.Now()
		metrics.SetProxyHealthy(proxyURL, false)
		log.WithComponent("proxypool").Warn().
			Str("event", "proxypool.benched").
			Str(log.FieldProxy, proxyURL).
			Int("consecutive_failures", e.consecutiveFailures).
			Msg("proxy benched after repeated failures")
	}
}

// ResetProxy clears all counters for one proxy.
func (p *Pool) ResetProxy(proxyURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e := p.find(proxyURL); e != nil {
		p.resetLocked(e)
	}
}

// ResetAll clears all counters for every proxy.
func (p *Pool) ResetAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		p.resetLocked(e)
	}
}

func (p *Pool) resetLocked(e *entry) {
	e.consecutiveFailures = 0
	e.totalFailures = 0
	e.lastError = ""
	e.unhealthy = false
	e.markedUnhealthy = time.Time{}
	metrics.SetProxyHealthy(e.url, true)
}

// Statuses returns a snapshot of every proxy, in construction order.
func (p *Pool) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.entries))
	for _, e := range p.entries {
		s := Status{
			URL:                 e.url,
			ConsecutiveFailures: e.consecutiveFailures,
			TotalFailures:       e.totalFailures,
			LastError:           e.lastError,
			Unhealthy:           e.unhealthy,
		}
		if !e.lastSuccess.IsZero() {
			t := e.lastSuccess
			s.LastSuccessTime = &t
		}
		if !e.markedUnhealthy.IsZero() {
			t := e.markedUnhealthy
			s.MarkedUnhealthyTime = &t
		}
		out = append(out, s)
	}
	return out
}

func (p *Pool) find(proxyURL string) *entry {
	for _, e := range p.entries {
		if e.url == proxyURL {
			return e
		}
	}
	return nil
}
