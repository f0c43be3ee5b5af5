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

//go:generate mockgen -destination=mock_fleet.go -package=fleet github.com/carverauto/fleetsched/pkg/fleet SessionExecutor,DeviceEnumerator,ProxyLeaser,AccountLeaser

// Package fleet schedules sessions across a set of devices with a bounded worker pool, leasing a
// proxy (and through AccountExecutor an account) for each session and quarantining devices that
// keep failing.
package fleet

import (
	"context"

	"github.com/carverauto/fleetsched/pkg/models"
)

// Outcome is the result of one session.
type Outcome struct {
	Success    bool
	Diagnostic string
}

// SessionExecutor runs one session for a lease. Returned errors count as failures, except
// ErrResourceUnavailable.
type SessionExecutor interface {
	ExecuteSession(ctx context.Context, lease *models.Lease) (Outcome, error)
}

// SessionExecutorFunc adapts a function to SessionExecutor.
type SessionExecutorFunc func(ctx context.Context, lease *models.Lease) (Outcome, error)

func (f SessionExecutorFunc) ExecuteSession(ctx context.Context, lease *models.Lease) (Outcome, error) {
	return f(ctx, lease)
}

// DeviceEnumerator lists the devices currently reachable.
type DeviceEnumerator interface {
	EnumerateDevices(ctx context.Context) ([]models.DeviceInfo, error)
}

// ProxyLeaser hands out exclusive proxy leases. Satisfied by *proxypool.Pool.
type ProxyLeaser interface {
	Lease(ctx context.Context) (*models.Proxy, bool)
	Release(ctx context.Context, address string, success bool)
}

// AccountLeaser hands out exclusive account leases. Satisfied by *accountpool.Pool.
type AccountLeaser interface {
	Assign(ctx context.Context, deviceID string) (models.Credential, bool)
	ReportSuccess(ctx context.Context, email, deviceID string)
	ReportFailure(ctx context.Context, email, deviceID, reason string)
	Release(ctx context.Context, email string)
	HasActive() bool
}
