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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"

	"github.com/carverauto/fleetsched/pkg/models"
)

var ErrOTelLoggingDisabled = errors.New("OTel log exporter disabled")

const (
	defaultBatchTimeout     = 5 * time.Second
	defaultScope            = "fleetsched"
	maxAttributeValueLength = 4096
)

//nolint:gochecknoglobals // global state is required for coordinated shutdown
var (
	logProvider *sdklog.LoggerProvider
	logMu       sync.Mutex
)

// OTelConfig enables shipping log records (and session spans, see InitializeTracing) to an
// OTLP/gRPC collector.
type OTelConfig struct {
	Enabled      bool              `json:"enabled"`
	Endpoint     string            `json:"endpoint"`
	Headers      map[string]string `json:"headers,omitempty"`
	ServiceName  string            `json:"service_name,omitempty"`
	Insecure     bool              `json:"insecure,omitempty"`
	BatchTimeout models.Duration   `json:"batch_timeout,omitempty"`
}

// DefaultOTelConfig reads the standard OTEL_EXPORTER_OTLP_LOGS_* variables. Export stays off
// unless OTEL_LOGS_ENABLED is set.
func DefaultOTelConfig() *OTelConfig {
	headers := make(map[string]string)

	for _, pair := range strings.Split(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_HEADERS"), ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	batchTimeout := defaultBatchTimeout
	if d, err := time.ParseDuration(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT")); err == nil {
		batchTimeout = d
	}

	return &OTelConfig{
		Enabled:      getEnvBoolOrDefault("OTEL_LOGS_ENABLED", false),
		Endpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", ""),
		Headers:      headers,
		ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", defaultServiceName),
		Insecure:     getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_LOGS_INSECURE", false),
		BatchTimeout: models.Duration(batchTimeout),
	}
}

func (c *OTelConfig) active() bool {
	return c != nil && c.Enabled && c.Endpoint != ""
}

func (c *OTelConfig) serviceName() string {
	if c.ServiceName == "" {
		return defaultServiceName
	}

	return c.ServiceName
}

func otelResource(ctx context.Context, serviceName, serviceVersion string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTel resource: %w", err)
	}

	return res, nil
}

// OTelWriter turns zerolog JSON lines into OTel log records. The component field selects the
// instrumentation scope.
type OTelWriter struct {
	ctx      context.Context
	provider otellog.LoggerProvider

	mu      sync.Mutex
	loggers map[string]otellog.Logger
}

// NewOTelWriter installs a global LoggerProvider exporting over OTLP and returns a writer
// feeding it. Returns ErrOTelLoggingDisabled when cfg does not enable export.
func NewOTelWriter(ctx context.Context, cfg *OTelConfig, serviceVersion string) (*OTelWriter, error) {
	if !cfg.active() {
		return nil, ErrOTelLoggingDisabled
	}

	logMu.Lock()
	defer logMu.Unlock()

	if logProvider == nil {
		opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}

		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}

		if len(cfg.Headers) > 0 {
			opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
		}

		exporter, err := otlploggrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}

		res, err := otelResource(ctx, cfg.serviceName(), serviceVersion)
		if err != nil {
			return nil, err
		}

		processor := sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportTimeout(cfg.BatchTimeout.OrDefault(defaultBatchTimeout)))

		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(processor),
		)

		global.SetLoggerProvider(logProvider)
	}

	return newOTelWriter(ctx, logProvider), nil
}

func newOTelWriter(ctx context.Context, provider otellog.LoggerProvider) *OTelWriter {
	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		loggers:  make(map[string]otellog.Logger),
	}
}

// Write never fails: a line that is not a JSON object is dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	entry := make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()

	if err := dec.Decode(&entry); err != nil {
		return len(p), nil
	}

	var record otellog.Record

	if ts, ok := entry["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, "time")
		}
	}

	if level, ok := entry["level"].(string); ok {
		record.SetSeverity(severityOf(level))
		record.SetSeverityText(level)
		delete(entry, "level")
	}

	if msg, ok := entry["message"].(string); ok {
		record.SetBody(otellog.StringValue(msg))
		delete(entry, "message")
	}

	scope := defaultScope
	if component, ok := entry["component"].(string); ok && component != "" {
		scope = component
		delete(entry, "component")
	}

	for key, value := range entry {
		record.AddAttributes(otellog.KeyValue{Key: key, Value: attributeValue(value)})
	}

	w.scopeLogger(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scopeLogger(scope string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.loggers[scope]
	if !ok {
		l = w.provider.Logger(scope)
		w.loggers[scope] = l
	}

	return l
}

func attributeValue(value any) otellog.Value {
	switch v := value.(type) {
	case string:
		return otellog.StringValue(truncate(v))
	case bool:
		return otellog.BoolValue(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return otellog.Int64Value(n)
		}

		if f, err := v.Float64(); err == nil {
			return otellog.Float64Value(f)
		}

		return otellog.StringValue(v.String())
	case nil:
		return otellog.StringValue("null")
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return otellog.StringValue(truncate(fmt.Sprint(v)))
		}

		return otellog.StringValue(truncate(string(raw)))
	}
}

func truncate(s string) string {
	if len(s) <= maxAttributeValueLength {
		return s
	}

	cut := s[:maxAttributeValueLength-3]
	for !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}

	return cut + "..."
}

func severityOf(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

// ShutdownOTel flushes and stops the log and trace pipelines installed by NewOTelWriter and
// InitializeTracing.
func ShutdownOTel(ctx context.Context) error {
	var errs []error

	logMu.Lock()
	if logProvider != nil {
		errs = append(errs, logProvider.Shutdown(ctx))
		logProvider = nil
	}
	logMu.Unlock()

	errs = append(errs, shutdownTracing(ctx))

	return errors.Join(errs...)
}
