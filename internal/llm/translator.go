// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/errclass"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/metrics"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/platform/httpx"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/ports"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/telemetry"
)

// defaultRateLimitAttempts bounds the in-adapter backoff loop for 429
// responses when a profile does not set max_retries.
const defaultRateLimitAttempts = 6

// TranslationCache is an optional exact-match cache consulted before
// any provider call. Implemented by transcache.Store.
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Translator implements ports.LLM on top of profile-selected
// providers, with per-task request pacing and rate-limit backoff.
type Translator struct {
	holder *ProfileHolder
	cache  TranslationCache

	mu        sync.Mutex
	providers map[string]provider    // keyed by provider fingerprint
	limiters  map[Task]*rate.Limiter // lazily built from profile RPM
	sleep     func(context.Context, time.Duration) error
}

// TranslatorOption configures a Translator.
type TranslatorOption func(*Translator)

// WithCache attaches a translation cache.
func WithCache(c TranslationCache) TranslatorOption {
	return func(t *Translator) { t.cache = c }
}

// NewTranslator builds the LLM adapter around a profile holder.
func NewTranslator(holder *ProfileHolder, opts ...TranslatorOption) *Translator {
	t := &Translator{
		holder:    holder,
		providers: make(map[string]provider),
		limiters:  make(map[Task]*rate.Limiter),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
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

// providerFor returns (building if needed) the provider for a
// profile. Providers are cached by endpoint fingerprint so a profile
// reload that changes provider or model takes effect on the next call.
func (t *Translator) providerFor(p Profile) (provider, error) {
	key := fmt.Sprintf("%s|%s|%s", p.Provider, p.Model, p.BaseURL)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prov, ok := t.providers[key]; ok {
		return prov, nil
	}

	var (
		prov provider
		err  error
	)
	switch p.Provider {
	case ProviderGemini:
		prov, err = newGeminiProvider(p)
	case ProviderFake:
		prov = fakeProvider{}
	default:
		prov, err = newOpenAIProvider(p)
	}
	if err != nil {
		return nil, err
	}
	t.providers[key] = prov
	return prov, nil
}

// limiterFor paces requests for one task when the profile sets RPM.
func (t *Translator) limiterFor(task Task, p Profile) *rate.Limiter {
	if p.RPM <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if lim, ok := t.limiters[task]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.RPM)), 1)
	t.limiters[task] = lim
	return lim
}

// complete runs one provider call with pacing, timeout and rate-limit
// backoff. Backoff sleeps do not count against the caller's chunk
// retry budget; only terminal errors surface.
func (t *Translator) complete(ctx context.Context, task Task, req completionRequest) (string, error) {
	profile := t.holder.ForTask(task)
	prov, err := t.providerFor(profile)
	if err != nil {
		return "", err
	}

	maxAttempts := profile.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = defaultRateLimitAttempts
	}
	if req.Temperature == nil {
		req.Temperature = profile.Temperature
	}
	trace.SpanFromContext(ctx).SetAttributes(telemetry.LLMAttributes(prov.Name(), profile.Model)...)

	logger := log.WithComponentFromContext(ctx, "llm")
	taskLabel := taskMetricLabel(task)

	for attempt := 0; ; attempt++ {
		if lim := t.limiterFor(task, profile); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return "", errclass.Wrap(errclass.Cancelled, "", err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, profile.Timeout())
		started := time.Now()
		text, err := prov.Complete(callCtx, req)
		cancel()
		metrics.ObserveLLMRequest(prov.Name(), taskLabel, time.Since(started).Seconds(), err)

		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", errclass.Wrap(errclass.Classify(ctx.Err()), "", ctx.Err())
		}

		if errclass.Classify(err) == errclass.RateLimit && attempt < maxAttempts {
			delay := httpx.Backoff(attempt)
			logger.Warn().
				Str("event", "llm.rate_limited").
				Str("provider", prov.Name()).
				Str("task", string(task)).
				Int("attempt", attempt+1).
				Dur("backoff", delay).
				Msg("rate limit hit, backing off")
			if sleepErr := t.sleep(ctx, delay); sleepErr != nil {
				return "", errclass.Wrap(errclass.Cancelled, "", sleepErr)
			}
			continue
		}
		return "", err
	}
}

func taskMetricLabel(task Task) string {
	if task == TaskSummarize {
		return "summarize"
	}
	return "translate"
}

// TranslateChunk implements ports.LLM. The response must preserve
// entry count and order; any deviation is a parse failure the caller
// may retry.
func (t *Translator) TranslateChunk(ctx context.Context, cues []subtitle.Cue, sourceLang, targetLang string) ([]subtitle.Cue, error) {
	if len(cues) == 0 {
		return nil, nil
	}

	profile := t.holder.ForTask(TaskTranslate)
	out := make([]subtitle.Cue, len(cues))
	copy(out, cues)

	// Exact-match cache pass: only a fully cached chunk skips the
	// provider, keeping response validation simple.
	if t.cache != nil {
		if ok := t.fillFromCache(ctx, out, profile.Model, sourceLang, targetLang); ok {
			metrics.IncTranslationCache(true)
			return out, nil
		}
		metrics.IncTranslationCache(false)
	}

	req := completionRequest{
		System: fmt.Sprintf(translateSystemPrompt, languageLabel(sourceLang), languageLabel(targetLang), subtitleSeparator),
		User:   buildBatchText(cues),
	}

	resp, err := t.complete(ctx, TaskTranslate, req)
	if err != nil {
		return nil, err
	}

	entries, err := parseBatchResponse(resp, len(cues))
	if err != nil {
		return nil, errclass.Wrap(errclass.Parse, "", fmt.Errorf("translation response: %w", err))
	}

	for i := range out {
		out[i].Lines = entries[i]
	}

	if t.cache != nil {
		t.storeInCache(ctx, cues, out, profile.Model, sourceLang, targetLang)
	}
	return out, nil
}

// Summarize implements ports.LLM.
func (t *Translator) Summarize(ctx context.Context, transcript, targetLang string, chapters []ports.Chapter) (string, error) {
	if transcript == "" {
		return "", errclass.New(errclass.InvalidInput, "", "empty transcript")
	}

	lang := languageLabel(targetLang)
	req := completionRequest{
		System: fmt.Sprintf(summarySystemPrompt, lang, lang),
		User:   buildSummaryUserPrompt(transcript, chapters),
	}
	return t.complete(ctx, TaskSummarize, req)
}

// languageLabel keeps prompts readable for bare language codes.
func languageLabel(code string) string {
	if code == "" {
		return "the original language"
	}
	return code
}
