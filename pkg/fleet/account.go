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
	"errors"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	diagNoActiveAccount = "no active account available"
	diagSessionFailed   = "session failed"
	diagSessionAborted  = "session aborted"
)

// AccountExecutor leases an account for each session before handing it to the wrapped executor
// and reports the outcome back to the account pool.
type AccountExecutor struct {
	accounts AccountLeaser
	inner    SessionExecutor
	logger   logger.Logger
}

var _ SessionExecutor = (*AccountExecutor)(nil)

// NewAccountExecutor wraps inner with account assignment from accounts.
func NewAccountExecutor(accounts AccountLeaser, inner SessionExecutor, log logger.Logger) *AccountExecutor {
	return &AccountExecutor{
		accounts: accounts,
		inner:    inner,
		logger:   logger.Component(log, "fleet"),
	}
}

// ExecuteSession assigns an account to the lease's device and runs the wrapped executor. When
// every active account is already leased it returns ErrResourceUnavailable; when none is active
// the session fails.
func (a *AccountExecutor) ExecuteSession(ctx context.Context, lease *models.Lease) (Outcome, error) {
	cred, ok := a.accounts.Assign(ctx, lease.DeviceID)
	if !ok {
		if a.accounts.HasActive() {
			return Outcome{}, ErrResourceUnavailable
		}

		a.logger.Warn().Str("device_id", lease.DeviceID).Msg(diagNoActiveAccount)

		return Outcome{Diagnostic: diagNoActiveAccount}, nil
	}

	reported := false

	defer func() {
		if !reported {
			a.accounts.ReportFailure(ctx, cred.Email, lease.DeviceID, diagSessionAborted)
		}
	}()

	outcome, err := a.inner.ExecuteSession(ctx, lease.WithAccount(cred))

	switch {
	case errors.Is(err, ErrResourceUnavailable):
		a.accounts.Release(ctx, cred.Email)
		reported = true

		return outcome, err
	case err != nil:
		a.accounts.ReportFailure(ctx, cred.Email, lease.DeviceID, err.Error())
		reported = true

		return Outcome{Diagnostic: err.Error()}, nil
	case outcome.Success:
		a.accounts.ReportSuccess(ctx, cred.Email, lease.DeviceID)
		reported = true

		return outcome, nil
	default:
		reason := outcome.Diagnostic
		if reason == "" {
			reason = diagSessionFailed
		}

		a.accounts.ReportFailure(ctx, cred.Email, lease.DeviceID, reason)
		reported = true

		return outcome, nil
	}
}
