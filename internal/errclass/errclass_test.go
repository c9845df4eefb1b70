// SPDX-License-Identifier: MIT

package errclass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Type
	}{
		{"timed out", "ERROR: Connection timed out after 30s", Timeout},
		{"timeout word", "read timeout on socket", Timeout},
		{"http 429", "HTTP Error 429: Too Many Requests", RateLimit},
		{"rate limit", "openai: rate limit exceeded, retry later", RateLimit},
		{"http 403", "HTTP Error 403: Forbidden", Auth},
		{"unauthorized", "401 Unauthorized: cookie expired", Auth},
		{"video private", "ERROR: Private video. Sign in if you've been granted access", Content},
		{"removed", "ERROR: This video has been removed by the uploader", Content},
		{"geo blocked", "ERROR: The uploader has not made this video available in your region", Content},
		{"copyright", "Video unavailable due to a copyright claim", Content},
		{"not found", "playlist not found", Content},
		{"dns", "dns lookup failed for youtube.com", Network},
		{"refused", "connect: connection refused", Network},
		{"reset", "read: connection reset by peer", Network},
		{"unreachable", "network is unreachable", Network},
		{"no match", "something inexplicable happened", Unknown},
		{"empty", "", Unknown},
		// Precedence: TIMEOUT beats NETWORK for combined messages.
		{"connection timed out", "connection timed out", Timeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyText(tc.text))
		})
	}
}

func TestClassifyOutput(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		exit   int
		want   Type
	}{
		{"stderr rule wins", "HTTP Error 429: Too Many Requests", 1, RateLimit},
		{"unmatched nonzero exit", "unexpected internal failure", 1, ExternalService},
		{"unmatched zero exit", "warning only", 0, Unknown},
		{"private video exit 1", "ERROR: Private video", 1, Content},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyOutput(tc.stderr, tc.exit))
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want Type
	}{
		{200, ""},
		{301, ""},
		{400, InvalidInput},
		{401, Auth},
		{403, Auth},
		{404, Content},
		{408, Timeout},
		{410, Content},
		{422, InvalidInput},
		{429, RateLimit},
		{451, Content},
		{500, ExternalService},
		{502, ExternalService},
		{503, ExternalService},
		{418, Unknown},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.code), func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyHTTPStatus(tc.code))
		})
	}
}

func TestClassifyErrorChains(t *testing.T) {
	syntaxErr := json.Unmarshal([]byte("{nope"), &struct{}{})
	require.Error(t, syntaxErr)

	tests := []struct {
		name string
		err  error
		want Type
	}{
		{"nil", nil, ""},
		{"canceled", context.Canceled, Cancelled},
		{"wrapped canceled", fmt.Errorf("stage aborted: %w", context.Canceled), Cancelled},
		{"deadline", context.DeadlineExceeded, Timeout},
		{"dns error", &net.DNSError{Err: "no such host", Name: "youtube.com"}, Network},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, Network},
		{"path error", &os.PathError{Op: "open", Path: "/tmp/x", Err: os.ErrPermission}, FileIO},
		{"json syntax", syntaxErr, Parse},
		{"classified kept", New(RateLimit, "translate", "upstream throttle"), RateLimit},
		{"text fallback", errors.New("This video has been deleted"), Content},
		{"unknown", errors.New("weird"), Unknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	retryable := []Type{Network, Timeout, RateLimit, ExternalService}
	terminal := []Type{Auth, Content, InvalidInput, Parse, FileIO, Cancelled, Unknown}

	for _, tt := range retryable {
		assert.True(t, tt.Retryable(), "%s should be retryable", tt)
	}
	for _, tt := range terminal {
		assert.False(t, tt.Retryable(), "%s should not be retryable", tt)
	}
}

func TestErrorFormatting(t *testing.T) {
	e := New(Timeout, "download", "subprocess exceeded 60s")
	assert.Equal(t, "TIMEOUT [download]: subprocess exceeded 60s", e.Error())

	noStage := New(FileIO, "", "disk full")
	assert.Equal(t, "FILE_IO: disk full", noStage.Error())
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(Network, "detect", nil))

	cause := errors.New("boom")
	e := Wrap(Network, "detect", cause)
	assert.Equal(t, Network, e.Type)
	assert.Equal(t, "detect", e.Stage)
	assert.ErrorIs(t, e, cause)

	// Inner classification wins over the fallback type.
	inner := New(Auth, "detect", "cookie rejected")
	outer := Wrap(Network, "detect", fmt.Errorf("resolve failed: %w", inner))
	assert.Equal(t, Auth, outer.Type)

	// Cancellation is never masked.
	cancelled := Wrap(Network, "translate", fmt.Errorf("call: %w", context.Canceled))
	assert.Equal(t, Cancelled, cancelled.Type)

	var target *Error
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", e), &target)
	assert.Equal(t, Network, target.Type)
}

func TestTypeFromString(t *testing.T) {
	assert.Equal(t, RateLimit, TypeFromString("RATE_LIMIT"))
	assert.Equal(t, Unknown, TypeFromString("bogus"))
	assert.Equal(t, Unknown, TypeFromString(""))
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, "summarize", StageOf(New(Parse, "summarize", "bad json")))
	assert.Empty(t, StageOf(errors.New("plain")))
}
