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

package proxypool

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/carverauto/fleetsched/pkg/proxypool"

	metricLeaseTotal    = "proxypool_lease_total"
	metricReleaseTotal  = "proxypool_release_total"
	metricProbeTotal    = "proxypool_probe_total"
	metricEvictionTotal = "proxypool_eviction_total"
	metricSupplyTotal   = "proxypool_supplied_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	leaseCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	releaseCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	probeCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	evictionCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	supplyCounter metric.Int64Counter
)

func newCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

func initMeter() {
	meter := otel.Meter(meterName)

	leaseCounter = newCounter(meter, metricLeaseTotal, "Proxy lease attempts by outcome")
	releaseCounter = newCounter(meter, metricReleaseTotal, "Proxy releases by session outcome")
	probeCounter = newCounter(meter, metricProbeTotal, "Proxy health probes by result")
	evictionCounter = newCounter(meter, metricEvictionTotal, "Proxies removed after repeated failures")
	supplyCounter = newCounter(meter, metricSupplyTotal, "Proxies added from the external supplier")
}

func recordLease(ctx context.Context, outcome string) {
	meterOnce.Do(initMeter)
	if leaseCounter == nil {
		return
	}

	leaseCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func recordRelease(ctx context.Context, success bool) {
	meterOnce.Do(initMeter)
	if releaseCounter == nil {
		return
	}

	releaseCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func recordProbe(ctx context.Context, healthy bool) {
	meterOnce.Do(initMeter)
	if probeCounter == nil {
		return
	}

	probeCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("healthy", healthy)))
}

func recordEvictions(ctx context.Context, count int) {
	if count == 0 {
		return
	}

	meterOnce.Do(initMeter)
	if evictionCounter == nil {
		return
	}

	evictionCounter.Add(ctx, int64(count))
}

func recordSupplied(ctx context.Context, count int, trigger string) {
	meterOnce.Do(initMeter)
	if supplyCounter == nil {
		return
	}

	supplyCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("trigger", trigger)))
}
