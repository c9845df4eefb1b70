// SPDX-License-Identifier: MIT

// Package httpx builds the hardened HTTP clients used for all outbound
// calls, including proxied variants for rotating through the proxy
// pool, plus shared retry-after and backoff helpers.
package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"
)

const (
	defaultClientTimeout         = 60 * time.Second
	defaultDialTimeout           = 10 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 32
	defaultMaxIdleConnsPerHost   = 8
)

func newTransport(dialTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
}

// NewClient returns a hardened HTTP client. The overall timeout covers
// the full request including body; LLM completions can legitimately
// take most of it, so no separate response-header timeout is set.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	dialTimeout := timeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(dialTimeout),
	}
}

// NewClientWithProxy returns a hardened client routing through the
// given proxy URL. Supported schemes: http, https, socks5, socks5h.
// An empty proxyURL yields a direct client.
func NewClientWithProxy(timeout time.Duration, proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return NewClient(timeout), nil
	}
	u, err := ValidateProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	dialTimeout := timeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}
	transport := newTransport(dialTimeout)

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := xproxy.FromURL(u, &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("socks proxy %s: %w", u.Host, err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			return nil, fmt.Errorf("socks proxy %s: dialer does not support context", u.Host)
		}
	}

	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

// ValidateProxyURL parses a proxy URL and enforces the scheme
// whitelist. Credentials in the URL are allowed.
func ValidateProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (want http, https, socks5 or socks5h)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy url %q has no host", raw)
	}
	return u, nil
}
