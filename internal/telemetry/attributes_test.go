// SPDX-License-Identifier: MIT

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestVideoAttributes(t *testing.T) {
	tests := []struct {
		name    string
		videoID string
		batchID string
		wantLen int
	}{
		{
			name:    "both fields",
			videoID: "dQw4w9WgXcQ",
			batchID: "20250101_120000",
			wantLen: 2,
		},
		{
			name:    "dry run without batch",
			videoID: "dQw4w9WgXcQ",
			batchID: "",
			wantLen: 1,
		},
		{
			name:    "empty",
			videoID: "",
			batchID: "",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := VideoAttributes(tt.videoID, tt.batchID)
			if len(attrs) != tt.wantLen {
				t.Fatalf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			if tt.videoID != "" {
				verifyAttribute(t, attrs, VideoIDKey, tt.videoID)
			}
		})
	}
}

func TestTranslationAttributes(t *testing.T) {
	attrs := TranslationAttributes("en", "de", 7)

	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, SourceLangKey, "en")
	verifyAttribute(t, attrs, TargetLangKey, "de")
	verifyIntAttribute(t, attrs, ChunkTotalKey, 7)
}

func TestLLMAttributes(t *testing.T) {
	attrs := LLMAttributes("openai", "gpt-4o-mini")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, ProviderKey, "openai")
	verifyAttribute(t, attrs, ModelKey, "gpt-4o-mini")
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("RATE_LIMIT")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, ErrorTypeKey, "RATE_LIMIT")

	for _, attr := range attrs {
		if string(attr.Key) == ErrorKey && !attr.Value.AsBool() {
			t.Error("Expected error attribute to be true")
		}
	}
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if got := attr.Value.AsString(); got != want {
				t.Errorf("Attribute %s: expected %q, got %q", key, want, got)
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if got := attr.Value.AsInt64(); got != want {
				t.Errorf("Attribute %s: expected %d, got %d", key, want, got)
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
