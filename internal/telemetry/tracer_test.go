// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      false,
		ServiceName:  "test-service",
		ExporterType: "grpc",
	})
	require.NoError(t, err)
	assert.Nil(t, provider.tp, "disabled config must install a noop provider")

	// The globally installed tracer must not record anything.
	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "test-service",
		ExporterType: "invalid",
	})
	require.Error(t, err)
	assert.EqualError(t, err, "unsupported exporter type: invalid (supported: grpc, http)")
}

func TestProvider_Shutdown_Noop(t *testing.T) {
	provider := &Provider{tp: nil}
	assert.NoError(t, provider.Shutdown(context.Background()))

	// A cancelled context is fine too: there is nothing to flush.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestTracer(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "test-service"})
	require.NoError(t, err)

	tracer := Tracer("test-tracer")
	require.NotNil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "test-span")
	require.NotNil(t, span)
	span.End()
	assert.NotNil(t, trace.SpanFromContext(ctx))
}

func TestStartStage(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx, span := StartStage(context.Background(), "detect", "aaaaaaaaaaa", "20250101_000000")
	require.NotNil(t, span)
	assert.NotNil(t, trace.SpanFromContext(ctx))

	// EndStage must be safe both with and without an error type.
	EndStage(span, "")
	_, span2 := StartStage(context.Background(), "download", "aaaaaaaaaaa", "")
	EndStage(span2, "NETWORK")
}

func TestProvider_ConcurrentShutdown(t *testing.T) {
	provider := &Provider{tp: nil}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, provider.Shutdown(context.Background()))
		}()
	}
	wg.Wait()
}
