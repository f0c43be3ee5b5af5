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
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
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
	errProbeFailed  = errors.New("connection refused")
	errSupplierDown = errors.New("supplier down")
	errStoreDown    = errors.New("store unavailable")
	testEpoch       = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestPool(t *testing.T, cfg *Config, opts ...Option) (*Pool, *clock.Fake) {
	t.Helper()

	fake := clock.NewFake(testEpoch)
	base := []Option{WithClock(fake), WithLogger(logger.NewTestLogger())}

	p, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)

	return p, fake
}

func healthyProxy(t *testing.T, addr string, checkedAt time.Time) models.Proxy {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	p := models.NewProxy(host, port, "", "")
	p.Health = models.HealthHealthy
	p.LastCheckedAt = models.TimePtr(checkedAt)

	return p
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrNilConfig)

	cfg := DefaultConfig()
	cfg.MinPoolRatio = 1.5
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrInvalidRatio)

	cfg = DefaultConfig()
	cfg.ReuseDelay = models.Duration(-time.Second)
	_, err = New(cfg)
	require.ErrorIs(t, err, ErrNegativeDuration)
}

func TestLeaseIsExclusiveUnderConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	p, _ := newTestPool(t, DefaultConfig(), WithProber(NewMockProber(ctrl)))

	for _, addr := range []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80", "10.0.0.4:80", "10.0.0.5:80"} {
		p.Add(context.Background(), healthyProxy(t, addr, testEpoch))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		leased []string
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			proxy, ok := p.Lease(context.Background())
			if !ok {
				return
			}

			mu.Lock()
			leased = append(leased, proxy.Address)
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Len(t, leased, 5)
	assert.ElementsMatch(t, []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80", "10.0.0.4:80", "10.0.0.5:80"}, leased)
	assert.Equal(t, 5, p.Stats().InUse)
}

func TestLeaseReleaseNeverDoubleAssigns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := DefaultConfig()
	cfg.ReuseDelay = 0

	p, _ := newTestPool(t, cfg, WithProber(NewMockProber(ctrl)))
	p.Add(context.Background(), healthyProxy(t, "10.0.0.1:80", testEpoch), healthyProxy(t, "10.0.0.2:80", testEpoch))

	var (
		wg         sync.WaitGroup
		holders    sync.Map
		violations atomic.Int32
		grants     atomic.Int32
	)

	for g := 0; g < 8; g++ {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			for i := 0; i < 50; i++ {
				proxy, ok := p.Lease(context.Background())
				if !ok {
					continue
				}

				grants.Add(1)

				if _, loaded := holders.LoadOrStore(proxy.Address, worker); loaded {
					violations.Add(1)
				}

				holders.Delete(proxy.Address)
				p.Release(context.Background(), proxy.Address, true)
			}
		}(g)
	}

	wg.Wait()

	assert.Zero(t, violations.Load())
	assert.Positive(t, grants.Load())
	assert.Zero(t, p.Stats().InUse)
}

func TestLeaseRoundRobin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReuseDelay = 0

	p, _ := newTestPool(t, cfg)
	p.Add(context.Background(),
		healthyProxy(t, "10.0.0.1:80", testEpoch),
		healthyProxy(t, "10.0.0.2:80", testEpoch),
		healthyProxy(t, "10.0.0.3:80", testEpoch),
	)

	var order []string

	for i := 0; i < 4; i++ {
		proxy, ok := p.Lease(context.Background())
		require.True(t, ok)

		order = append(order, proxy.Address)
		p.Release(context.Background(), proxy.Address, true)
	}

	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80", "10.0.0.1:80"}, order)
}

func TestReuseDelay(t *testing.T) {
	p, fake := newTestPool(t, DefaultConfig())
	p.Add(context.Background(), healthyProxy(t, "10.0.0.1:80", testEpoch))

	proxy, ok := p.Lease(context.Background())
	require.True(t, ok)
	p.Release(context.Background(), proxy.Address, true)

	_, ok = p.Lease(context.Background())
	assert.False(t, ok, "proxy must rest for the reuse delay")

	fake.Advance(5*time.Minute + time.Second)

	again, ok := p.Lease(context.Background())
	require.True(t, ok)
	assert.Equal(t, proxy.Address, again.Address)
}

func TestEvictionAfterSixFailedReleases(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	publisher := events.NewMockPublisher(ctrl)

	var got *models.QuarantineEvent

	publisher.EXPECT().PublishQuarantine(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.QuarantineEvent) error {
			got = e
			return nil
		}).Times(1)

	p, _ := newTestPool(t, DefaultConfig(), WithPublisher(publisher), WithProber(NewMockProber(ctrl)))
	p.Add(context.Background(), healthyProxy(t, "10.0.0.9:3128", testEpoch))

	proxy, ok := p.Lease(context.Background())
	require.True(t, ok)

	for i := 0; i < 6; i++ {
		p.Release(context.Background(), proxy.Address, false)
	}

	require.Len(t, p.Snapshot(), 1)
	assert.Equal(t, 6, p.Snapshot()[0].ConsecutiveFailures)

	p.Maintain(context.Background())

	assert.Empty(t, p.Snapshot())
	require.NotNil(t, got)
	assert.Equal(t, models.KindProxy, got.Kind)
	assert.Equal(t, models.ActionEvicted, got.Action)
	assert.Equal(t, "10.0.0.9:3128", got.Subject)
	assert.Equal(t, 6, got.Failures)
}

func TestSuccessfulProbeClearsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	p, _ := newTestPool(t, DefaultConfig(), WithProber(prober))
	p.Add(context.Background(), healthyProxy(t, "10.0.0.9:3128", testEpoch))

	for i := 0; i < 5; i++ {
		p.Release(context.Background(), "10.0.0.9:3128", false)
	}

	p.Maintain(context.Background())

	snap := p.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.HealthHealthy, snap[0].Health)
	assert.Zero(t, snap[0].ConsecutiveFailures)
}

func TestFailedProbeMarksUnhealthy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	prober := NewMockProber(ctrl)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return(errProbeFailed).Times(1)

	p, fake := newTestPool(t, DefaultConfig(), WithProber(prober))
	p.Add(context.Background(), models.NewProxy("10.0.0.7", "8080", "", ""))

	_, ok := p.Lease(context.Background())
	assert.False(t, ok)

	snap := p.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, models.HealthUnhealthy, snap[0].Health)
	assert.Equal(t, 1, snap[0].ConsecutiveFailures)
	assert.Equal(t, fake.Now(), *snap[0].LastCheckedAt)
}

func TestMaintainReplenishesBelowFloor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	supplier := NewMockSupplier(ctrl)
	prober := NewMockProber(ctrl)

	p, _ := newTestPool(t, DefaultConfig(), WithSupplier(supplier), WithProber(prober))

	for _, addr := range []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80", "10.0.0.4:80", "10.0.0.5:80"} {
		proxy := healthyProxy(t, addr, testEpoch)
		proxy.Health = models.HealthUnhealthy
		p.Add(context.Background(), proxy)
	}

	supplier.EXPECT().FetchProxies(gomock.Any(), defaultSupplyLimit).Return([]models.Proxy{
		models.NewProxy("10.0.0.1", "80", "", ""),
		models.NewProxy("10.0.1.1", "80", "u", "p"),
	}, nil).Times(1)

	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, proxy models.Proxy) error {
			assert.Equal(t, "10.0.1.1:80", proxy.Address)
			return nil
		}).Times(1)

	proxy, ok := p.Lease(context.Background())
	require.True(t, ok)
	assert.Equal(t, "10.0.1.1:80", proxy.Address)
	assert.Equal(t, "u", proxy.Username)
	assert.Len(t, p.Snapshot(), 6)
}

func TestLeaseFetchesOnDemandWhenEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	supplier := NewMockSupplier(ctrl)
	prober := NewMockProber(ctrl)

	supplier.EXPECT().FetchProxies(gomock.Any(), gomock.Any()).
		Return([]models.Proxy{models.NewProxy("10.0.2.1", "80", "", "")}, nil).Times(1)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	p, _ := newTestPool(t, DefaultConfig(), WithSupplier(supplier), WithProber(prober))

	proxy, ok := p.Lease(context.Background())
	require.True(t, ok)
	assert.Equal(t, "10.0.2.1:80", proxy.Address)
	assert.True(t, p.Snapshot()[0].InUse)
}

func TestLeaseRescansOnlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	supplier := NewMockSupplier(ctrl)
	prober := NewMockProber(ctrl)

	supplier.EXPECT().FetchProxies(gomock.Any(), gomock.Any()).
		Return([]models.Proxy{models.NewProxy("10.0.2.1", "80", "", "")}, nil).Times(1)
	prober.EXPECT().Probe(gomock.Any(), gomock.Any()).Return(errProbeFailed).Times(1)

	p, _ := newTestPool(t, DefaultConfig(), WithSupplier(supplier), WithProber(prober))

	_, ok := p.Lease(context.Background())
	assert.False(t, ok)
}

func TestSupplierErrorIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	supplier := NewMockSupplier(ctrl)
	supplier.EXPECT().FetchProxies(gomock.Any(), gomock.Any()).Return(nil, errSupplierDown).Times(1)

	p, _ := newTestPool(t, DefaultConfig(), WithSupplier(supplier))

	_, ok := p.Lease(context.Background())
	assert.False(t, ok)
}

func TestReleaseUnknownIsIgnored(t *testing.T) {
	p, _ := newTestPool(t, DefaultConfig())

	p.Release(context.Background(), "192.0.2.1:1", false)

	assert.Zero(t, p.Stats().Total)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()

	first, _ := newTestPool(t, DefaultConfig(), WithStore(backend))
	first.Add(ctx, healthyProxy(t, "10.0.0.1:80", testEpoch), healthyProxy(t, "10.0.0.2:80", testEpoch))

	leased, ok := first.Lease(ctx)
	require.True(t, ok)

	second, _ := newTestPool(t, DefaultConfig(), WithStore(backend))
	require.NoError(t, second.Load(ctx))

	restored := second.Snapshot()
	require.Len(t, restored, 2)

	for _, proxy := range restored {
		assert.False(t, proxy.InUse, "no lease survives a restart")
		assert.Equal(t, models.HealthHealthy, proxy.Health)

		if proxy.Address == leased.Address {
			require.NotNil(t, proxy.LastUsedAt)
			assert.True(t, leased.LastUsedAt.Equal(*proxy.LastUsedAt))
		}
	}
}

func TestLoadMergesFileWithSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()

	saved := healthyProxy(t, "10.0.0.1:80", testEpoch)
	saved.ConsecutiveFailures = 2
	saved.InUse = true
	extra := healthyProxy(t, "10.9.9.9:80", testEpoch)

	_, err := store.NewSnapshotter(backend, store.NameProxies).Save(ctx, 1, store.Keyed([]models.Proxy{saved, extra}, proxyKey))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("# pool\n10.0.0.1:80:user:pass\nbogus\n10.0.0.2:81\n"), 0o600))

	cfg := DefaultConfig()
	cfg.ProxiesFile = path

	p, _ := newTestPool(t, cfg, WithStore(backend))
	require.NoError(t, p.Load(ctx))

	snap := p.Snapshot()
	require.Len(t, snap, 3)

	assert.Equal(t, "10.0.0.1:80", snap[0].Address)
	assert.Equal(t, "user", snap[0].Username)
	assert.Equal(t, 2, snap[0].ConsecutiveFailures)
	assert.Equal(t, models.HealthHealthy, snap[0].Health)
	assert.False(t, snap[0].InUse)

	assert.Equal(t, "10.0.0.2:81", snap[1].Address)
	assert.Equal(t, models.HealthUnknown, snap[1].Health)

	assert.Equal(t, "10.9.9.9:80", snap[2].Address)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProxiesFile = filepath.Join(t.TempDir(), "missing.txt")

	p, _ := newTestPool(t, cfg)
	require.NoError(t, p.Load(context.Background()))
	assert.Empty(t, p.Snapshot())
}

func TestStats(t *testing.T) {
	p, _ := newTestPool(t, DefaultConfig())

	unhealthy := healthyProxy(t, "10.0.0.2:80", testEpoch)
	unhealthy.Health = models.HealthUnhealthy

	unknown := healthyProxy(t, "10.0.0.3:80", testEpoch)
	unknown.Health = models.HealthUnknown

	p.Add(context.Background(), healthyProxy(t, "10.0.0.1:80", testEpoch), unhealthy, unknown)

	assert.Equal(t, Stats{Total: 3, Healthy: 1, Unhealthy: 1, Unknown: 1, Available: 1}, p.Stats())
}

func TestLoadReadFailureLeavesSnapshotAlone(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := store.NewMockStore(ctrl)
	backend.EXPECT().Read(gomock.Any(), store.NameProxies).Return(nil, false, errStoreDown)

	path := filepath.Join(t.TempDir(), "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.1:80\n"), 0o600))

	cfg := DefaultConfig()
	cfg.ProxiesFile = path

	p, _ := newTestPool(t, cfg, WithStore(backend), WithProber(NewMockProber(ctrl)))

	err := p.Load(context.Background())
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, p.Snapshot())
}

func TestWriteFailureKeepsLeaseAndNextWriteCarriesIt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		failing atomic.Bool
		mu      sync.Mutex
		last    map[string]models.Proxy
	)

	backend := store.NewMockStore(ctrl)
	backend.EXPECT().Write(gomock.Any(), store.NameProxies, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, payload []byte) error {
			if failing.Load() {
				return errStoreDown
			}

			mu.Lock()
			defer mu.Unlock()

			last = nil

			return json.Unmarshal(payload, &last)
		}).AnyTimes()

	cfg := DefaultConfig()
	cfg.ReuseDelay = 0

	p, _ := newTestPool(t, cfg, WithStore(backend), WithProber(NewMockProber(ctrl)))

	ctx := context.Background()
	p.Add(ctx, healthyProxy(t, "10.0.0.1:80", testEpoch), healthyProxy(t, "10.0.0.2:80", testEpoch))

	failing.Store(true)

	first, ok := p.Lease(ctx)
	require.True(t, ok)

	// the lease survives the failed write
	second, ok := p.Lease(ctx)
	require.True(t, ok)
	assert.NotEqual(t, first.Address, second.Address)

	failing.Store(false)
	p.Release(ctx, second.Address, true)

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, last, 2)
	assert.True(t, last[first.Address].InUse)
	assert.False(t, last[second.Address].InUse)
	assert.NotNil(t, last[second.Address].LastUsedAt)
}
