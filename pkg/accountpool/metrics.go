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

package accountpool

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	meterName = "github.com/carverauto/fleetsched/pkg/accountpool"

	metricAssignTotal     = "accountpool_assign_total"
	metricReportTotal     = "accountpool_report_total"
	metricQuarantineTotal = "accountpool_quarantine_total"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	assignCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	reportCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	quarantineCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	var err error

	assignCounter, err = meter.Int64Counter(metricAssignTotal,
		metric.WithDescription("Account assignment attempts by outcome"))
	if err != nil {
		otel.Handle(err)
	}

	reportCounter, err = meter.Int64Counter(metricReportTotal,
		metric.WithDescription("Session outcomes reported against accounts"))
	if err != nil {
		otel.Handle(err)
	}

	quarantineCounter, err = meter.Int64Counter(metricQuarantineTotal,
		metric.WithDescription("Account quarantine transitions"))
	if err != nil {
		otel.Handle(err)
	}
}

func recordAssign(ctx context.Context, granted bool) {
	meterOnce.Do(initMeter)
	if assignCounter == nil {
		return
	}

	assignCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("granted", granted)))
}

func recordReport(ctx context.Context, success bool) {
	meterOnce.Do(initMeter)
	if reportCounter == nil {
		return
	}

	reportCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

func recordQuarantine(ctx context.Context, action models.QuarantineAction, count int) {
	if count == 0 {
		return
	}

	meterOnce.Do(initMeter)
	if quarantineCounter == nil {
		return
	}

	quarantineCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("action", string(action))))
}
