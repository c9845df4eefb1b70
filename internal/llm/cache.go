// SPDX-License-Identifier: MIT

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/log"
	"github.com/alexandriaenglishd6/yt-subtitle-v2-sub001/internal/subtitle"
)

// CacheKey derives the exact-match cache key for one cue text under a
// model and language pair.
func CacheKey(model, sourceLang, targetLang, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(sourceLang))
	h.Write([]byte{0})
	h.Write([]byte(targetLang))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// fillFromCache fills every cue's lines from the cache, returning
// true only when every cue hits. On any miss the slice is left
// untouched.
func (t *Translator) fillFromCache(ctx context.Context, out []subtitle.Cue, model, sourceLang, targetLang string) bool {
	lines := make([][]string, len(out))
	for i := range out {
		val, ok, err := t.cache.Get(ctx, CacheKey(model, sourceLang, targetLang, out[i].Text()))
		if err != nil || !ok {
			return false
		}
		lines[i] = strings.Split(val, "\n")
	}
	for i := range out {
		out[i].Lines = lines[i]
	}
	return true
}

// storeInCache records fresh translations. Failures only log; the
// cache is an accelerator, never a dependency.
func (t *Translator) storeInCache(ctx context.Context, in, out []subtitle.Cue, model, sourceLang, targetLang string) {
	for i := range in {
		key := CacheKey(model, sourceLang, targetLang, in[i].Text())
		if err := t.cache.Put(ctx, key, out[i].Text()); err != nil {
			logger := log.WithComponentFromContext(ctx, "llm")
			logger.Debug().
				Err(err).
				Str("event", "llm.cache_put_failed").
				Msg("translation cache write failed")
			return
		}
	}
}
