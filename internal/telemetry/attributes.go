// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Identity attributes
	VideoIDKey = "video.id"
	BatchIDKey = "batch.id"
	RunIDKey   = "run.id"
	StageKey   = "stage"

	// Translation attributes
	SourceLangKey = "lang.source"
	TargetLangKey = "lang.target"
	ChunkIndexKey = "chunk.index"
	ChunkTotalKey = "chunk.total"

	// LLM attributes
	ModelKey    = "llm.model"
	ProviderKey = "llm.provider"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// VideoAttributes creates the identity attributes for one video. The
// batch id is omitted when empty (dry runs have no batch).
func VideoAttributes(videoID, batchID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if videoID != "" {
		attrs = append(attrs, attribute.String(VideoIDKey, videoID))
	}
	if batchID != "" {
		attrs = append(attrs, attribute.String(BatchIDKey, batchID))
	}
	return attrs
}

// TranslationAttributes creates translation-related span attributes.
func TranslationAttributes(sourceLang, targetLang string, chunkTotal int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SourceLangKey, sourceLang),
		attribute.String(TargetLangKey, targetLang),
		attribute.Int(ChunkTotalKey, chunkTotal),
	}
}

// LLMAttributes creates model-related span attributes.
func LLMAttributes(provider, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ProviderKey, provider),
		attribute.String(ModelKey, model),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
