/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logger

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type captureExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (c *captureExporter) Export(_ context.Context, records []sdklog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		c.records = append(c.records, r.Clone())
	}

	return nil
}

func (*captureExporter) Shutdown(context.Context) error   { return nil }
func (*captureExporter) ForceFlush(context.Context) error { return nil }

func (c *captureExporter) all() []sdklog.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]sdklog.Record(nil), c.records...)
}

func attrsOf(r *sdklog.Record) map[string]otellog.Value {
	out := make(map[string]otellog.Value)

	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value

		return true
	})

	return out
}

func newCaptureWriter(t *testing.T) (*OTelWriter, *captureExporter) {
	t.Helper()

	exp := &captureExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return newOTelWriter(context.Background(), provider), exp
}

func TestOTelWriterMapsZerologLine(t *testing.T) {
	w, exp := newCaptureWriter(t)

	zl := zerolog.New(w).With().Timestamp().Logger()
	Component(New(zl), "proxypool").Warn().
		Str("proxy", "10.0.0.1:8080").
		Int("failures", 3).
		Bool("quarantined", true).
		Float64("ratio", 0.5).
		Msg("proxy quarantined")

	records := exp.all()
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "proxy quarantined", r.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, r.Severity())
	assert.Equal(t, "warn", r.SeverityText())
	assert.Equal(t, "proxypool", r.InstrumentationScope().Name)
	assert.WithinDuration(t, time.Now(), r.Timestamp(), time.Minute)

	attrs := attrsOf(&r)
	assert.Equal(t, "10.0.0.1:8080", attrs["proxy"].AsString())
	assert.Equal(t, int64(3), attrs["failures"].AsInt64())
	assert.True(t, attrs["quarantined"].AsBool())
	assert.InDelta(t, 0.5, attrs["ratio"].AsFloat64(), 1e-9)
	assert.NotContains(t, attrs, "component")
	assert.NotContains(t, attrs, "level")
	assert.NotContains(t, attrs, "message")
}

func TestOTelWriterDefaultScopeAndNestedValues(t *testing.T) {
	w, exp := newCaptureWriter(t)

	n, err := w.Write([]byte(`{"level":"error","message":"boom","lease":{"device_id":"D1"},"note":null}`))
	require.NoError(t, err)
	assert.Positive(t, n)

	records := exp.all()
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, defaultScope, r.InstrumentationScope().Name)
	assert.Equal(t, otellog.SeverityError, r.Severity())

	attrs := attrsOf(&r)
	assert.JSONEq(t, `{"device_id":"D1"}`, attrs["lease"].AsString())
	assert.Equal(t, "null", attrs["note"].AsString())
}

func TestOTelWriterDropsNonJSON(t *testing.T) {
	w, exp := newCaptureWriter(t)

	line := []byte("not json\n")
	n, err := w.Write(line)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	assert.Empty(t, exp.all())
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	long := strings.Repeat("é", maxAttributeValueLength)

	out := truncate(long)
	assert.LessOrEqual(t, len(out), maxAttributeValueLength)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.True(t, utf8.ValidString(out))

	assert.Equal(t, "short", truncate("short"))
}

func TestSeverityOf(t *testing.T) {
	for level, want := range map[string]otellog.Severity{
		"trace":   otellog.SeverityTrace,
		"debug":   otellog.SeverityDebug,
		"info":    otellog.SeverityInfo,
		"WARNING": otellog.SeverityWarn,
		"error":   otellog.SeverityError,
		"panic":   otellog.SeverityFatal,
		"":        otellog.SeverityInfo,
	} {
		assert.Equal(t, want, severityOf(level), level)
	}
}

func TestOTelExportDisabled(t *testing.T) {
	ctx := context.Background()

	for name, cfg := range map[string]*OTelConfig{
		"nil":         nil,
		"disabled":    {Endpoint: "collector:4317"},
		"no endpoint": {Enabled: true},
	} {
		t.Run(name, func(t *testing.T) {
			w, err := NewOTelWriter(ctx, cfg, "test")
			require.ErrorIs(t, err, ErrOTelLoggingDisabled)
			assert.Nil(t, w)

			tp, err := InitializeTracing(ctx, cfg, "test")
			require.ErrorIs(t, err, ErrOTelTracingDisabled)
			assert.Nil(t, tp)
		})
	}

	require.NoError(t, ShutdownOTel(ctx))
}

func TestDefaultOTelConfigFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_LOGS_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS", "authorization=Bearer abc, tenant = edge")
	t.Setenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT", "2s")
	t.Setenv("OTEL_SERVICE_NAME", "")

	cfg := DefaultOTelConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer abc", "tenant": "edge"}, cfg.Headers)
	assert.Equal(t, 2*time.Second, cfg.BatchTimeout.Std())
	assert.Equal(t, defaultServiceName, cfg.serviceName())
}
