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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

func testLease() *models.Lease {
	return &models.Lease{ID: "lease-1", DeviceID: "D1", Proxy: models.Proxy{Address: "10.0.0.1:8080"}}
}

var testCred = models.Credential{Email: "a@example.com", Secret: "pw"}

func TestAccountExecutorSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)
	inner := NewMockSessionExecutor(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(testCred, true)
	inner.EXPECT().ExecuteSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, lease *models.Lease) (Outcome, error) {
			require.NotNil(t, lease.Account)
			assert.Equal(t, testCred, *lease.Account)
			assert.Equal(t, "10.0.0.1:8080", lease.Proxy.Address)

			return Outcome{Success: true}, nil
		})
	accounts.EXPECT().ReportSuccess(gomock.Any(), "a@example.com", "D1")

	exec := NewAccountExecutor(accounts, inner, logger.NewTestLogger())
	lease := testLease()

	outcome, err := exec.ExecuteSession(context.Background(), lease)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Nil(t, lease.Account, "the caller's lease must not be modified")
}

func TestAccountExecutorFailureReportsDiagnostic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)
	inner := NewMockSessionExecutor(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(testCred, true)
	inner.EXPECT().ExecuteSession(gomock.Any(), gomock.Any()).Return(Outcome{Diagnostic: "wrong password"}, nil)
	accounts.EXPECT().ReportFailure(gomock.Any(), "a@example.com", "D1", "wrong password")

	outcome, err := NewAccountExecutor(accounts, inner, nil).ExecuteSession(context.Background(), testLease())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "wrong password", outcome.Diagnostic)
}

func TestAccountExecutorConvertsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)
	inner := NewMockSessionExecutor(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(testCred, true)
	inner.EXPECT().ExecuteSession(gomock.Any(), gomock.Any()).Return(Outcome{}, errSessionBroke)
	accounts.EXPECT().ReportFailure(gomock.Any(), "a@example.com", "D1", errSessionBroke.Error())

	outcome, err := NewAccountExecutor(accounts, inner, nil).ExecuteSession(context.Background(), testLease())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, errSessionBroke.Error(), outcome.Diagnostic)
}

func TestAccountExecutorAllLeased(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)
	inner := NewMockSessionExecutor(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(models.Credential{}, false)
	accounts.EXPECT().HasActive().Return(true)

	_, err := NewAccountExecutor(accounts, inner, nil).ExecuteSession(context.Background(), testLease())
	require.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestAccountExecutorNoActiveAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)
	inner := NewMockSessionExecutor(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(models.Credential{}, false)
	accounts.EXPECT().HasActive().Return(false)

	outcome, err := NewAccountExecutor(accounts, inner, nil).ExecuteSession(context.Background(), testLease())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, diagNoActiveAccount, outcome.Diagnostic)
}

func TestAccountExecutorInnerUnavailableReleasesAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)
	inner := NewMockSessionExecutor(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(testCred, true)
	inner.EXPECT().ExecuteSession(gomock.Any(), gomock.Any()).Return(Outcome{}, ErrResourceUnavailable)
	accounts.EXPECT().Release(gomock.Any(), "a@example.com")

	_, err := NewAccountExecutor(accounts, inner, nil).ExecuteSession(context.Background(), testLease())
	require.ErrorIs(t, err, ErrResourceUnavailable)
}

func TestAccountExecutorPanicStillReportsFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := NewMockAccountLeaser(ctrl)

	accounts.EXPECT().Assign(gomock.Any(), "D1").Return(testCred, true)
	accounts.EXPECT().ReportFailure(gomock.Any(), "a@example.com", "D1", diagSessionAborted)

	inner := SessionExecutorFunc(func(context.Context, *models.Lease) (Outcome, error) {
		panic("boom")
	})

	exec := NewAccountExecutor(accounts, inner, nil)

	assert.Panics(t, func() {
		_, _ = exec.ExecuteSession(context.Background(), testLease())
	})
}
