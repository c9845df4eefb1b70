// SPDX-License-Identifier: MIT

package httpx

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// BackoffBase is the first rate-limit wait; each subsequent attempt
	// doubles it up to BackoffCap.
	BackoffBase = 1 * time.Second
	BackoffCap  = 60 * time.Second

	backoffJitter = 0.25
)

// IsRetryableStatus reports whether an HTTP status is worth retrying:
// 408, 429 and all 5xx.
func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// Backoff returns the wait before retry number attempt (0-based):
// base * 2^attempt with ±25% jitter, capped at BackoffCap. The cap is
// applied before jitter so the worst case stays near one minute.
func Backoff(attempt int) time.Duration {
	d := BackoffBase
	for i := 0; i < attempt && d < BackoffCap; i++ {
		d *= 2
	}
	if d > BackoffCap {
		d = BackoffCap
	}
	delta := float64(d) * backoffJitter
	low := float64(d) - delta
	v := low + rand.Float64()*2*delta
	return time.Duration(v)
}

// RetryAfterDuration honors a Retry-After header carrying a delay in
// seconds, falling back to fallback and clamping to max.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}
