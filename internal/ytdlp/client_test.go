// SPDX-License-Identifier: MIT

package ytdlp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
)

func fixedRun(stdout, stderr string, err error) runFunc {
	return func(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
		return []byte(stdout), []byte(stderr), err
	}
}

func TestResolveSingleVideo(t *testing.T) {
	payload := `{
		"id": "dQw4w9WgXcQ",
		"title": "Test Video",
		"webpage_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"channel_id": "UCx",
		"channel": "Test Channel",
		"duration": 212.5,
		"upload_date": "20231001"
	}`
	c := New(WithRunFunc(fixedRun(payload, "", nil)))

	videos, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ", ports.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "dQw4w9WgXcQ", videos[0].VideoID)
	assert.Equal(t, "Test Video", videos[0].Title)
	assert.Equal(t, "Test Channel", videos[0].ChannelName)
	assert.Equal(t, 212.5, videos[0].Duration)
}

func TestResolveChannelFlattensNestedEntries(t *testing.T) {
	payload := `{
		"_type": "playlist",
		"id": "UCx",
		"entries": [
			{"_type": "playlist", "id": "PLvideos", "entries": [
				{"id": "aaaaaaaaaaa", "title": "First", "url": "https://www.youtube.com/watch?v=aaaaaaaaaaa"},
				{"id": "bbbbbbbbbbb", "title": "Second"}
			]},
			{"id": "ccccccccccc", "title": "Third"},
			{"id": "not-a-video-id", "title": "tab noise"}
		]
	}`

	var gotArgs []string
	run := func(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
		gotArgs = args
		return []byte(payload), nil, nil
	}
	c := New(WithRunFunc(run))

	videos, err := c.Resolve(context.Background(), "https://www.youtube.com/@SomeCreator", ports.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "aaaaaaaaaaa", videos[0].VideoID)
	assert.Equal(t, "bbbbbbbbbbb", videos[1].VideoID)
	assert.Equal(t, "https://www.youtube.com/watch?v=bbbbbbbbbbb", videos[1].URL)
	assert.Equal(t, "ccccccccccc", videos[2].VideoID)

	assert.Contains(t, gotArgs, "--flat-playlist")
	assert.Contains(t, gotArgs, "https://www.youtube.com/@SomeCreator/videos")
}

func TestResolveUnknownURL(t *testing.T) {
	c := New(WithRunFunc(fixedRun("", "", nil)))
	_, err := c.Resolve(context.Background(), "https://example.com/nope", ports.FetchOptions{})
	assert.Equal(t, errclass.InvalidInput, errclass.Classify(err))
}

func TestProbeFailureClassification(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   errclass.Type
	}{
		{"unavailable video", "ERROR: [youtube] xyz: Video unavailable", errclass.Content},
		{"rate limited", "ERROR: HTTP Error 429: Too Many Requests", errclass.RateLimit},
		{"auth required", "ERROR: Sign in to confirm. 401 Unauthorized", errclass.Auth},
		{"dns failure", "ERROR: Unable to download webpage: DNS lookup failed", errclass.Network},
		{"opaque failure", "ERROR: something exotic happened", errclass.ExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithRunFunc(fixedRun("", tt.stderr, errors.New("exit status 1"))))
			_, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ", ports.FetchOptions{})
			require.Error(t, err)
			assert.Equal(t, tt.want, errclass.Classify(err))
		})
	}
}

func TestProbeTimeout(t *testing.T) {
	run := func(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	c := New(WithRunFunc(run), WithTimeout(20*time.Millisecond))

	_, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ", ports.FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, errclass.Timeout, errclass.Classify(err))
}

func TestProbeBadJSON(t *testing.T) {
	c := New(WithRunFunc(fixedRun("{not json", "", nil)))
	_, err := c.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ", ports.FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, errclass.Parse, errclass.Classify(err))
}

func TestListSubtitlesNormalizesLanguages(t *testing.T) {
	payload := `{
		"id": "dQw4w9WgXcQ",
		"title": "Test",
		"subtitles": {
			"en_US": [{"ext": "vtt", "url": "https://captions/en.vtt"}],
			"zh-Hans": [{"ext": "srv3", "url": "https://captions/zh.srv3"}]
		},
		"automatic_captions": {
			"de": [{"ext": "json3", "url": "https://captions/de.json3"}],
			"empty": [{"ext": "vtt", "url": ""}]
		},
		"chapters": [{"start_time": 0, "title": "Intro"}, {"start_time": 60.5, "title": "Main"}]
	}`
	c := New(WithRunFunc(fixedRun(payload, "", nil)))

	res, err := c.ListSubtitles(context.Background(), WatchURL("dQw4w9WgXcQ"), ports.FetchOptions{})
	require.NoError(t, err)
	assert.True(t, res.HasSubtitles)
	assert.Equal(t, []string{"en-US", "zh-Hans"}, res.ManualLanguages)
	assert.Equal(t, []string{"de"}, res.AutoLanguages, "tracks without URLs are dropped")
	require.Len(t, res.Chapters, 2)
	assert.Equal(t, 60.5, res.Chapters[1].StartSeconds)
	assert.Equal(t, "Main", res.Chapters[1].Title)
}

func TestListSubtitlesNoTracks(t *testing.T) {
	c := New(WithRunFunc(fixedRun(`{"id": "dQw4w9WgXcQ", "title": "Silent"}`, "", nil)))

	res, err := c.ListSubtitles(context.Background(), WatchURL("dQw4w9WgXcQ"), ports.FetchOptions{})
	require.NoError(t, err)
	assert.False(t, res.HasSubtitles)
	assert.Empty(t, res.ManualLanguages)
	assert.Empty(t, res.AutoLanguages)
}

func TestDownloadSubtitleUsesCachedProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nhello\n"))
	}))
	defer srv.Close()

	payload := `{
		"id": "dQw4w9WgXcQ",
		"subtitles": {"en": [{"ext": "vtt", "url": "` + srv.URL + `/track.vtt"}]}
	}`

	var probes atomic.Int32
	run := func(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
		probes.Add(1)
		return []byte(payload), nil, nil
	}
	c := New(WithRunFunc(run))

	_, err := c.ListSubtitles(context.Background(), WatchURL("dQw4w9WgXcQ"), ports.FetchOptions{})
	require.NoError(t, err)

	data, err := c.DownloadSubtitle(context.Background(), WatchURL("dQw4w9WgXcQ"), "en", false, ports.FetchOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(data), "WEBVTT")
	assert.Equal(t, int32(1), probes.Load(), "download must reuse the cached probe")
}

func TestDownloadSubtitleMissingTrack(t *testing.T) {
	payload := `{"id": "dQw4w9WgXcQ", "subtitles": {"en": [{"ext": "vtt", "url": "https://captions/en.vtt"}]}}`
	c := New(WithRunFunc(fixedRun(payload, "", nil)))

	_, err := c.DownloadSubtitle(context.Background(), WatchURL("dQw4w9WgXcQ"), "fr", false, ports.FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, errclass.Content, errclass.Classify(err))
}

func TestDownloadSubtitleHTTPFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	payload := `{"id": "dQw4w9WgXcQ", "subtitles": {"en": [{"ext": "vtt", "url": "` + srv.URL + `/track.vtt"}]}}`
	c := New(WithRunFunc(fixedRun(payload, "", nil)))
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := c.DownloadSubtitle(context.Background(), WatchURL("dQw4w9WgXcQ"), "en", false, ports.FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, errclass.RateLimit, errclass.Classify(err))
	assert.Equal(t, int32(fetchAttempts), hits.Load(), "429 is retried before giving up")
}

func TestDownloadSubtitleRecoversAfterTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nhello\n"))
	}))
	defer srv.Close()

	payload := `{"id": "dQw4w9WgXcQ", "subtitles": {"en": [{"ext": "srt", "url": "` + srv.URL + `/track.srt"}]}}`
	c := New(WithRunFunc(fixedRun(payload, "", nil)))
	var slept time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	data, err := c.DownloadSubtitle(context.Background(), WatchURL("dQw4w9WgXcQ"), "en", false, ports.FetchOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, time.Second, slept, "Retry-After steers the wait")
}

func TestPickTrackPrefersCheapestConversion(t *testing.T) {
	tracks := []ports.SubtitleTrack{
		{Format: "srv3", URL: "u1"},
		{Format: "vtt", URL: "u2"},
		{Format: "json3", URL: "u3"},
	}
	assert.Equal(t, "vtt", pickTrack(tracks).Format)

	tracks = append(tracks, ports.SubtitleTrack{Format: "srt", URL: "u4"})
	assert.Equal(t, "srt", pickTrack(tracks).Format)
}

func TestProbeArgsCarryCookieAndProxy(t *testing.T) {
	var gotArgs []string
	run := func(ctx context.Context, bin string, args []string) ([]byte, []byte, error) {
		gotArgs = args
		return []byte(`{"id": "dQw4w9WgXcQ"}`), nil, nil
	}
	c := New(WithRunFunc(run))

	_, err := c.ListSubtitles(context.Background(), WatchURL("dQw4w9WgXcQ"), ports.FetchOptions{
		CookieFile: "/tmp/cookies.txt",
		Proxy:      "socks5://127.0.0.1:1080",
	})
	require.NoError(t, err)
	assert.Contains(t, gotArgs, "--cookies")
	assert.Contains(t, gotArgs, "/tmp/cookies.txt")
	assert.Contains(t, gotArgs, "--proxy")
	assert.Contains(t, gotArgs, "socks5://127.0.0.1:1080")
}

func TestTestCookie(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		c := New(WithRunFunc(fixedRun("", "", nil)))
		err := c.TestCookie(context.Background(), filepath.Join(dir, "nope.txt"))
		assert.Equal(t, errclass.FileIO, errclass.Classify(err))
	})

	t.Run("no youtube cookies", func(t *testing.T) {
		path := filepath.Join(dir, "other.txt")
		require.NoError(t, os.WriteFile(path, []byte("# Netscape HTTP Cookie File\nexample.com\tTRUE\t/\tFALSE\t0\tk\tv\n"), 0o644))
		c := New(WithRunFunc(fixedRun("", "", nil)))
		err := c.TestCookie(context.Background(), path)
		assert.Equal(t, errclass.Auth, errclass.Classify(err))
	})

	t.Run("valid cookie probes successfully", func(t *testing.T) {
		path := filepath.Join(dir, "cookies.txt")
		require.NoError(t, os.WriteFile(path, []byte(".youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc\n"), 0o644))
		c := New(WithRunFunc(fixedRun(`{"id": "jNQXAC9IVRw", "title": "Me at the zoo"}`, "", nil)))
		assert.NoError(t, c.TestCookie(context.Background(), path))
	})
}

func TestEmptyCookiePathRejected(t *testing.T) {
	c := New(WithRunFunc(fixedRun("", "", nil)))
	err := c.TestCookie(context.Background(), "")
	assert.Equal(t, errclass.InvalidInput, errclass.Classify(err))
}
