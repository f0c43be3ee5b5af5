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

package fleet

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/fleetsched/pkg/fleet"

	metricSessionTotal    = "fleet_session_total"
	metricSessionDuration = "fleet_session_duration_seconds"
	metricSessionsRunning = "fleet_sessions_running"
	metricDeviceFailed    = "fleet_device_failed_total"
)

const (
	spanSession = "fleet.session"

	attrLeaseID  = "fleetsched.lease.id"
	attrDeviceID = "fleetsched.device.id"
	attrProxy    = "fleetsched.proxy.address"
	attrWorker   = "fleetsched.worker"
	attrOutcome  = "fleetsched.session.outcome"
)

const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeUnavailable = "unavailable"
	outcomeNoProxy     = "no_proxy"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sessionCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sessionDuration metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sessionsRunning metric.Int64UpDownCounter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	deviceFailedCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	sessionCounter, err = meter.Int64Counter(metricSessionTotal,
		metric.WithDescription("Session attempts by outcome"))
	if err != nil {
		otel.Handle(err)
	}

	sessionDuration, err = meter.Float64Histogram(metricSessionDuration,
		metric.WithDescription("Duration of executed sessions"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
	}

	sessionsRunning, err = meter.Int64UpDownCounter(metricSessionsRunning,
		metric.WithDescription("Sessions currently executing"))
	if err != nil {
		otel.Handle(err)
	}

	deviceFailedCounter, err = meter.Int64Counter(metricDeviceFailed,
		metric.WithDescription("Devices that reached the retry limit"))
	if err != nil {
		otel.Handle(err)
	}
}

func recordSession(ctx context.Context, outcome string) {
	meterOnce.Do(initMeter)
	if sessionCounter == nil {
		return
	}

	sessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordDuration(ctx context.Context, d time.Duration, outcome string) {
	meterOnce.Do(initMeter)
	if sessionDuration == nil {
		return
	}

	sessionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordRunning(ctx context.Context, delta int64) {
	meterOnce.Do(initMeter)
	if sessionsRunning == nil {
		return
	}

	sessionsRunning.Add(ctx, delta)
}

func recordDeviceFailed(ctx context.Context) {
	meterOnce.Do(initMeter)
	if deviceFailedCounter == nil {
		return
	}

	deviceFailedCounter.Add(ctx, 1)
}
