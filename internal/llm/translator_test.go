// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
)

func newFakeHolder(t *testing.T) *ProfileHolder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ai_profiles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default":{"provider":"fake"}}`), 0o644))
	holder, err := NewProfileHolder(path)
	require.NoError(t, err)
	return holder
}

// scriptedProvider returns queued errors first, then delegates to the
// fake echo provider. It records every call.
type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedProvider) Name() string { return ProviderFake }

func (s *scriptedProvider) Complete(ctx context.Context, req completionRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return fakeProvider{}.Complete(ctx, req)
}

func (s *scriptedProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// install registers the stub under the fake profile's fingerprint so
// providerFor hands it out instead of building the real fake.
func (s *scriptedProvider) install(tr *Translator) {
	tr.providers["fake||"] = s
}

type memCache struct {
	mu   sync.Mutex
	m    map[string]string
	puts int
}

func newMemCache() *memCache { return &memCache{m: make(map[string]string)} }

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *memCache) Put(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	c.puts++
	return nil
}

func TestTranslateChunkFakeRoundTrip(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))

	cues := sampleCues()
	out, err := tr.TranslateChunk(context.Background(), cues, "en", "de")
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, []string{"translated: Hello there"}, out[0].Lines)
	assert.Equal(t, []string{"translated: How are you?", "translated: Fine."}, out[1].Lines)
	assert.Equal(t, []string{"translated: Goodbye"}, out[2].Lines)

	// Timing and numbering survive untouched.
	for i := range cues {
		assert.Equal(t, cues[i].Index, out[i].Index)
		assert.Equal(t, cues[i].Start, out[i].Start)
		assert.Equal(t, cues[i].End, out[i].End)
	}

	// The input cues themselves stay unmodified.
	assert.Equal(t, []string{"Hello there"}, cues[0].Lines)
}

func TestTranslateChunkEmptyInput(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))
	out, err := tr.TranslateChunk(context.Background(), nil, "en", "de")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestTranslateChunkRateLimitBackoff(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))
	sp := &scriptedProvider{errs: []error{
		errclass.New(errclass.RateLimit, "", "429 too many requests"),
		errclass.New(errclass.RateLimit, "", "429 too many requests"),
	}}
	sp.install(tr)

	var delays []time.Duration
	tr.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	out, err := tr.TranslateChunk(context.Background(), sampleCues(), "en", "de")
	require.NoError(t, err)
	assert.Equal(t, []string{"translated: Hello there"}, out[0].Lines)

	assert.Equal(t, 3, sp.callCount(), "two rate-limited attempts plus the success")
	require.Len(t, delays, 2)
	// Exponential base 1s with ±25% jitter.
	assert.InDelta(t, float64(time.Second), float64(delays[0]), float64(250*time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(delays[1]), float64(500*time.Millisecond))
}

func TestTranslateChunkNonRetryableErrorSurfaces(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))
	sp := &scriptedProvider{errs: []error{
		errclass.New(errclass.Auth, "", "invalid api key"),
	}}
	sp.install(tr)
	tr.sleep = func(context.Context, time.Duration) error {
		t.Fatal("no backoff expected for non-rate-limit errors")
		return nil
	}

	_, err := tr.TranslateChunk(context.Background(), sampleCues(), "en", "de")
	require.Error(t, err)
	assert.Equal(t, errclass.Auth, errclass.Classify(err))
	assert.Equal(t, 1, sp.callCount())
}

func TestTranslateChunkParseFailure(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))
	tr.providers["fake||"] = &staticProvider{resp: "free-form prose without any markers"}

	_, err := tr.TranslateChunk(context.Background(), sampleCues(), "en", "de")
	require.Error(t, err)
	assert.Equal(t, errclass.Parse, errclass.Classify(err))
	assert.ErrorContains(t, err, "translation response")
}

// staticProvider always returns the same body.
type staticProvider struct{ resp string }

func (s *staticProvider) Name() string { return ProviderFake }

func (s *staticProvider) Complete(context.Context, completionRequest) (string, error) {
	return s.resp, nil
}

func TestTranslateChunkCache(t *testing.T) {
	cache := newMemCache()
	tr := NewTranslator(newFakeHolder(t), WithCache(cache))
	sp := &scriptedProvider{}
	sp.install(tr)

	cues := sampleCues()
	first, err := tr.TranslateChunk(context.Background(), cues, "en", "de")
	require.NoError(t, err)
	assert.Equal(t, 1, sp.callCount())
	assert.Equal(t, 3, cache.puts, "every cue cached after a provider round trip")

	// Identical chunk again: fully served from cache, no provider call.
	second, err := tr.TranslateChunk(context.Background(), cues, "en", "de")
	require.NoError(t, err)
	assert.Equal(t, 1, sp.callCount())
	assert.Equal(t, first, second)
}

func TestTranslateChunkCachePartialMissCallsProvider(t *testing.T) {
	cache := newMemCache()
	tr := NewTranslator(newFakeHolder(t), WithCache(cache))
	sp := &scriptedProvider{}
	sp.install(tr)

	cues := sampleCues()
	// Prime only the first cue.
	key := CacheKey("", "en", "de", cues[0].Text())
	require.NoError(t, cache.Put(context.Background(), key, "cached line"))

	out, err := tr.TranslateChunk(context.Background(), cues, "en", "de")
	require.NoError(t, err)
	assert.Equal(t, 1, sp.callCount(), "partial hit must not skip the provider")
	// The provider's answer wins over the stale single-cue entry.
	assert.Equal(t, []string{"translated: Hello there"}, out[0].Lines)
}

func TestSummarize(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))

	t.Run("returns markdown", func(t *testing.T) {
		got, err := tr.Summarize(context.Background(), "a transcript", "de", nil)
		require.NoError(t, err)
		assert.Contains(t, got, "# Summary")
	})

	t.Run("empty transcript rejected", func(t *testing.T) {
		_, err := tr.Summarize(context.Background(), "", "de", nil)
		require.Error(t, err)
		assert.Equal(t, errclass.InvalidInput, errclass.Classify(err))
	})
}

func TestTranslatorCancelledContext(t *testing.T) {
	tr := NewTranslator(newFakeHolder(t))
	blocked := &blockingProvider{}
	tr.providers["fake||"] = blocked

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.TranslateChunk(ctx, sampleCues(), "en", "de")
	require.Error(t, err)
	assert.Equal(t, errclass.Cancelled, errclass.Classify(err))
}

// blockingProvider waits for context cancellation.
type blockingProvider struct{}

func (b *blockingProvider) Name() string { return ProviderFake }

func (b *blockingProvider) Complete(ctx context.Context, _ completionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}
