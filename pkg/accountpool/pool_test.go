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
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/fleetsched/pkg/clock"
	"github.com/carverauto/fleetsched/pkg/events"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/store"
)

var (
	testEpoch    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	errStoreDown = errors.New("store unavailable")
)

type fixture struct {
	pool    *Pool
	clock   *clock.Fake
	backend *store.MemoryStore
}

// newFixture writes accounts to a temp file, seeds the snapshot store with saved and loads both.
func newFixture(t *testing.T, accounts string, saved []models.Account, opts ...Option) *fixture {
	t.Helper()

	ctx := context.Background()
	backend := store.NewMemoryStore()

	if saved != nil {
		_, err := store.NewSnapshotter(backend, store.NameAccounts).Save(ctx, 1, store.Keyed(saved, accountKey))
		require.NoError(t, err)
	}

	cfg := DefaultConfig()

	if accounts != "" {
		cfg.AccountsFile = filepath.Join(t.TempDir(), "accounts.txt")
		require.NoError(t, os.WriteFile(cfg.AccountsFile, []byte(accounts), 0o600))
	}

	fake := clock.NewFake(testEpoch)
	base := []Option{WithClock(fake), WithStore(backend), WithLogger(logger.NewTestLogger())}

	pool, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	require.NoError(t, pool.Load(ctx))

	return &fixture{pool: pool, clock: fake, backend: backend}
}

func ago(d time.Duration) *time.Time {
	return models.TimePtr(testEpoch.Add(-d))
}

func TestAssignAvoidsRecentUseOnSameDevice(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\nb@example.com:pb\n", []models.Account{
		{Email: "a@example.com", Status: models.AccountActive, LastUsedAt: ago(11 * time.Hour), AssignedDeviceID: "D1"},
	})

	cred, ok := f.pool.Assign(context.Background(), "D1")
	require.True(t, ok)
	assert.Equal(t, "b@example.com", cred.Email)
	assert.Equal(t, "pb", cred.Secret)
}

func TestAssignOrdering(t *testing.T) {
	tests := []struct {
		name   string
		saved  []models.Account
		device string
		want   string
	}{
		{
			name: "recent use elsewhere does not count against device",
			saved: []models.Account{
				{Email: "a@example.com", Status: models.AccountActive, LastUsedAt: ago(time.Hour), AssignedDeviceID: "D1"},
				{Email: "b@example.com", Status: models.AccountActive, LastUsedAt: ago(2 * time.Hour), AssignedDeviceID: "D2"},
			},
			device: "D1",
			want:   "b@example.com",
		},
		{
			name: "outside the window the least recently used wins",
			saved: []models.Account{
				{Email: "a@example.com", Status: models.AccountActive, LastUsedAt: ago(13 * time.Hour), AssignedDeviceID: "D1"},
				{Email: "b@example.com", Status: models.AccountActive, LastUsedAt: ago(time.Hour), AssignedDeviceID: "D2"},
			},
			device: "D1",
			want:   "a@example.com",
		},
		{
			name: "never used before used",
			saved: []models.Account{
				{Email: "a@example.com", Status: models.AccountActive, LastUsedAt: ago(48 * time.Hour)},
				{Email: "b@example.com", Status: models.AccountActive},
			},
			device: "D3",
			want:   "b@example.com",
		},
		{
			name: "email breaks ties",
			saved: []models.Account{
				{Email: "b@example.com", Status: models.AccountActive},
				{Email: "a@example.com", Status: models.AccountActive},
			},
			device: "D3",
			want:   "a@example.com",
		},
		{
			name: "problematic accounts are skipped",
			saved: []models.Account{
				{Email: "a@example.com", Status: models.AccountProblematic},
				{Email: "b@example.com", Status: models.AccountActive, LastUsedAt: ago(time.Hour), AssignedDeviceID: "D3"},
			},
			device: "D3",
			want:   "b@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "a@example.com:pa\nb@example.com:pb\n", tt.saved)

			cred, ok := f.pool.Assign(context.Background(), tt.device)
			require.True(t, ok)
			assert.Equal(t, tt.want, cred.Email)
		})
	}
}

func TestAssignStampsAndLeases(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\n", []models.Account{
		{Email: "a@example.com", Status: models.AccountActive, LoginAttempts: 2},
	})

	cred, ok := f.pool.Assign(context.Background(), "D1")
	require.True(t, ok)

	account, ok := f.pool.Get(cred.Email)
	require.True(t, ok)
	assert.True(t, account.InUse)
	assert.Equal(t, "D1", account.AssignedDeviceID)
	assert.Zero(t, account.LoginAttempts)
	assert.Equal(t, testEpoch, *account.LastUsedAt)

	_, ok = f.pool.Assign(context.Background(), "D2")
	assert.False(t, ok, "a leased account is not handed out twice")
	assert.True(t, f.pool.HasActive())

	f.pool.Release(context.Background(), cred.Email)

	_, ok = f.pool.Assign(context.Background(), "D2")
	assert.True(t, ok)
}

func TestAssignIsExclusiveUnderConcurrency(t *testing.T) {
	var lines []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		lines = append(lines, name+"@example.com:secret")
	}

	f := newFixture(t, strings.Join(lines, "\n"), nil)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned = make(map[string]int)
	)

	for i := 0; i < 25; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			cred, ok := f.pool.Assign(context.Background(), "D1")
			if !ok {
				return
			}

			mu.Lock()
			assigned[cred.Email]++
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Len(t, assigned, 5)

	for email, n := range assigned {
		assert.Equal(t, 1, n, email)
	}
}

func TestQuarantineAfterThresholdIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := events.NewMockPublisher(ctrl)

	var quarantined []*models.QuarantineEvent

	publisher.EXPECT().PublishQuarantine(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.QuarantineEvent) error {
			quarantined = append(quarantined, e)
			return nil
		}).Times(1)

	f := newFixture(t, "a@example.com:pa\n", nil, WithPublisher(publisher))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		cred, ok := f.pool.Assign(ctx, "D1")
		require.True(t, ok, "assignment %d", i)
		f.pool.ReportFailure(ctx, cred.Email, "D1", "login rejected")

		account, _ := f.pool.Get("a@example.com")
		if i < 3 {
			assert.Equal(t, models.AccountActive, account.Status, "after %d failures", i)
		} else {
			assert.Equal(t, models.AccountProblematic, account.Status)
		}
	}

	_, ok := f.pool.Assign(ctx, "D1")
	assert.False(t, ok)
	assert.False(t, f.pool.HasActive())

	f.pool.ReportFailure(ctx, "a@example.com", "D1", "late report")

	account, _ := f.pool.Get("a@example.com")
	assert.Equal(t, models.AccountProblematic, account.Status)
	assert.Equal(t, 4, account.ConsecutiveFailures)
	assert.Equal(t, "late report", account.LastError)

	require.Len(t, quarantined, 1)
	assert.Equal(t, models.KindAccount, quarantined[0].Kind)
	assert.Equal(t, models.ActionQuarantined, quarantined[0].Action)
	assert.Equal(t, 3, quarantined[0].Failures)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\n", nil)
	ctx := context.Background()

	f.pool.ReportFailure(ctx, "a@example.com", "D1", "timeout")
	f.pool.ReportFailure(ctx, "a@example.com", "D1", "timeout")
	f.pool.ReportSuccess(ctx, "a@example.com", "D2")
	f.pool.ReportFailure(ctx, "a@example.com", "D1", "timeout")
	f.pool.ReportFailure(ctx, "a@example.com", "D1", "timeout")

	account, _ := f.pool.Get("a@example.com")
	assert.Equal(t, models.AccountActive, account.Status)
	assert.Equal(t, 2, account.ConsecutiveFailures)
	assert.Equal(t, 1, account.SuccessfulLogins)
	require.NotNil(t, account.LastLoginAt)
}

func TestReportSuccessUpdatesMetadata(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\n", nil)
	ctx := context.Background()

	cred, ok := f.pool.Assign(ctx, "D1")
	require.True(t, ok)
	f.pool.ReportFailure(ctx, cred.Email, "D1", "captcha")

	cred, ok = f.pool.Assign(ctx, "D2")
	require.True(t, ok)
	f.pool.ReportSuccess(ctx, cred.Email, "D2")

	account, _ := f.pool.Get(cred.Email)
	assert.False(t, account.InUse)
	assert.Equal(t, "D2", account.AssignedDeviceID)
	assert.Empty(t, account.LastError)
	assert.Zero(t, account.LoginAttempts)
	assert.Zero(t, account.ConsecutiveFailures)
	assert.Equal(t, 1, account.SuccessfulLogins)
}

func TestUnknownAccountReportsAreIgnored(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\n", nil)

	f.pool.ReportFailure(context.Background(), "ghost@example.com", "D1", "x")
	f.pool.ReportSuccess(context.Background(), "ghost@example.com", "D1")

	assert.Equal(t, 1, f.pool.Stats().Total)
}

func TestResetQuarantinedRespectsCoolDown(t *testing.T) {
	f := newFixture(t, "old@example.com:p\nrecent@example.com:p\nfresh@example.com:p\nok@example.com:p\n", []models.Account{
		{Email: "old@example.com", Status: models.AccountProblematic, LastUsedAt: ago(8 * 24 * time.Hour), ConsecutiveFailures: 3},
		{Email: "recent@example.com", Status: models.AccountProblematic, LastUsedAt: ago(24 * time.Hour), ConsecutiveFailures: 3},
		{Email: "fresh@example.com", Status: models.AccountProblematic},
		{Email: "ok@example.com", Status: models.AccountActive, LastUsedAt: ago(30 * 24 * time.Hour)},
	})

	restored := f.pool.ResetQuarantined(context.Background(), 7*24*time.Hour)
	assert.Equal(t, 2, restored)

	old, _ := f.pool.Get("old@example.com")
	assert.Equal(t, models.AccountActive, old.Status)
	assert.Zero(t, old.ConsecutiveFailures)

	fresh, _ := f.pool.Get("fresh@example.com")
	assert.Equal(t, models.AccountActive, fresh.Status)

	recent, _ := f.pool.Get("recent@example.com")
	assert.Equal(t, models.AccountProblematic, recent.Status)

	assert.Zero(t, f.pool.ResetQuarantined(context.Background(), 7*24*time.Hour))
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\n", nil)
	ctx := context.Background()

	require.NoError(t, f.pool.SetStatus(ctx, "a@example.com", models.AccountProblematic))
	_, ok := f.pool.Assign(ctx, "D1")
	assert.False(t, ok)

	require.NoError(t, f.pool.SetStatus(ctx, "a@example.com", models.AccountActive))
	_, ok = f.pool.Assign(ctx, "D1")
	assert.True(t, ok)

	require.ErrorIs(t, f.pool.SetStatus(ctx, "ghost@example.com", models.AccountActive), ErrUnknownAccount)
	require.ErrorIs(t, f.pool.SetStatus(ctx, "a@example.com", "locked"), ErrInvalidStatus)
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t, "a@example.com:pa\nb@example.com:pb\n", nil)
	ctx := context.Background()

	cred, ok := f.pool.Assign(ctx, "D1")
	require.True(t, ok)
	f.pool.ReportFailure(ctx, cred.Email, "D1", "bad password")

	_, ok = f.pool.Assign(ctx, "D2")
	require.True(t, ok)

	before := f.pool.Snapshot()

	second, err := New(DefaultConfig(), WithStore(f.backend), WithClock(f.clock), WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	require.NoError(t, second.Load(ctx))

	after := second.Snapshot()
	require.Len(t, after, len(before))

	for i := range before {
		want := before[i]
		want.InUse = false
		assert.Equal(t, want, after[i])
	}
}

func TestLoadMergesFileAndSnapshot(t *testing.T) {
	f := newFixture(t, "# team\na@example.com:new-secret\nbroken-line\na@example.com:ignored\nb@example.com:pb:with:colons\n", []models.Account{
		{Email: "a@example.com", Secret: "old-secret", Status: models.AccountProblematic, ConsecutiveFailures: 3, InUse: true},
		{Email: "legacy@example.com", Secret: "pl", Status: "needs_login"},
	})

	snap := f.pool.Snapshot()
	require.Len(t, snap, 3)

	assert.Equal(t, "a@example.com", snap[0].Email)
	assert.Equal(t, "new-secret", snap[0].Secret)
	assert.Equal(t, models.AccountProblematic, snap[0].Status)
	assert.False(t, snap[0].InUse)

	assert.Equal(t, "b@example.com", snap[1].Email)
	assert.Equal(t, "pb:with:colons", snap[1].Secret)
	assert.Equal(t, models.AccountActive, snap[1].Status)

	assert.Equal(t, "legacy@example.com", snap[2].Email)
	assert.Equal(t, models.AccountActive, snap[2].Status)
}

func TestStats(t *testing.T) {
	f := newFixture(t, "a@example.com:p\nb@example.com:p\nc@example.com:p\n", []models.Account{
		{Email: "c@example.com", Status: models.AccountProblematic, LastUsedAt: ago(time.Hour)},
	})

	_, ok := f.pool.Assign(context.Background(), "D1")
	require.True(t, ok)

	assert.Equal(t, Stats{Total: 3, Active: 2, Problematic: 1, InUse: 1, Available: 1, NeverUsed: 1}, f.pool.Stats())
}

func TestLoadReadFailureLeavesSnapshotAlone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := store.NewMockStore(ctrl)
	backend.EXPECT().Read(gomock.Any(), store.NameAccounts).Return(nil, false, errStoreDown)
	// no Write is expected: the stored registry must survive

	cfg := DefaultConfig()
	cfg.AccountsFile = filepath.Join(t.TempDir(), "accounts.txt")
	require.NoError(t, os.WriteFile(cfg.AccountsFile, []byte("a@example.com:pa\n"), 0o600))

	pool, err := New(cfg, WithStore(backend), WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)

	err = pool.Load(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, pool.Snapshot())
}

func TestWriteFailureKeepsStateAndNextWriteCarriesIt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var last map[string]models.Account

	capture := func(_ context.Context, _ string, payload []byte) error {
		last = nil

		return json.Unmarshal(payload, &last)
	}

	backend := store.NewMockStore(ctrl)
	gomock.InOrder(
		backend.EXPECT().Read(gomock.Any(), store.NameAccounts).Return(nil, false, nil),
		backend.EXPECT().Write(gomock.Any(), store.NameAccounts, gomock.Any()).DoAndReturn(capture),
		backend.EXPECT().Write(gomock.Any(), store.NameAccounts, gomock.Any()).Return(errStoreDown),
		backend.EXPECT().Write(gomock.Any(), store.NameAccounts, gomock.Any()).DoAndReturn(capture),
	)

	cfg := DefaultConfig()
	cfg.AccountsFile = filepath.Join(t.TempDir(), "accounts.txt")
	require.NoError(t, os.WriteFile(cfg.AccountsFile, []byte("a@example.com:pa\nb@example.com:pb\n"), 0o600))

	ctx := context.Background()

	pool, err := New(cfg, WithStore(backend), WithClock(clock.NewFake(testEpoch)), WithLogger(logger.NewTestLogger()))
	require.NoError(t, err)
	require.NoError(t, pool.Load(ctx))

	first, ok := pool.Assign(ctx, "D1")
	require.True(t, ok)

	// the failed write did not undo the lease
	a, _ := pool.Get(first.Email)
	assert.True(t, a.InUse)

	second, ok := pool.Assign(ctx, "D2")
	require.True(t, ok)
	assert.NotEqual(t, first.Email, second.Email)

	require.Len(t, last, 2)
	assert.True(t, last[first.Email].InUse)
	assert.Equal(t, "D1", last[first.Email].AssignedDeviceID)
	assert.True(t, last[second.Email].InUse)
}
