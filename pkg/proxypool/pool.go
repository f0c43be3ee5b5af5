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

// Package proxypool owns the proxy registry: exclusive leases, reuse cooldown, health probing,
// eviction of repeat failures and replenishment from an external supplier.
package proxypool

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/carverauto/fleetsched/pkg/clock"
	"github.com/carverauto/fleetsched/pkg/events"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/store"
)

const (
	outcomeGranted = "granted"
	outcomeNone    = "none"

	triggerMaintain = "maintain"
	triggerOnDemand = "on_demand"

	maintainKey = "maintain"
)

// Pool hands out proxies exclusively, one caller at a time per proxy.
type Pool struct {
	cfg       *Config
	supplier  Supplier
	prober    Prober
	store     store.Store
	snap      *store.Snapshotter
	publisher events.Publisher
	clock     clock.Clock
	logger    logger.Logger

	mu      sync.Mutex
	proxies []*models.Proxy
	index   map[string]*models.Proxy
	cursor  int
	version uint64

	maintenance singleflight.Group
}

// Option configures a Pool.
type Option func(*Pool)

// WithSupplier sets the external proxy source used for replenishment.
func WithSupplier(s Supplier) Option {
	return func(p *Pool) { p.supplier = s }
}

// WithProber overrides the default HTTP prober.
func WithProber(pr Prober) Option {
	return func(p *Pool) { p.prober = pr }
}

// WithStore sets the snapshot backend.
func WithStore(s store.Store) Option {
	return func(p *Pool) { p.store = s }
}

// WithPublisher sets where eviction events go.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Pool) { p.publisher = pub }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(p *Pool) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// Stats summarizes the registry.
type Stats struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Unknown   int `json:"unknown"`
	InUse     int `json:"in_use"`
	Available int `json:"available"`
}

// New builds an empty pool. Call Load or Add to populate it.
func New(cfg *Config, opts ...Option) (*Pool, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:       cfg,
		index:     make(map[string]*models.Proxy),
		publisher: events.Nop{},
		clock:     clock.Real(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = logger.Component(p.logger, "proxypool")

	if p.store == nil {
		p.store = store.NewMemoryStore()
	}

	p.snap = store.NewSnapshotter(p.store, store.NameProxies)

	if p.prober == nil {
		p.prober = NewHTTPProber(cfg.ProbeURL, cfg.ProbeTimeout.Std())
	}

	if p.supplier == nil && cfg.Webshare != nil {
		p.supplier = NewWebshareSupplier(cfg.Webshare, p.logger)
	}

	return p, nil
}

// Lease returns a copy of the next eligible proxy, marked in use. It runs maintenance first and,
// if a full rotation finds nothing, tries one on-demand replenishment before giving up.
func (p *Pool) Lease(ctx context.Context) (*models.Proxy, bool) {
	p.Maintain(ctx)

	if proxy, ok := p.tryLease(ctx); ok {
		return proxy, true
	}

	if p.supplier != nil {
		p.logger.Info().Msg("no eligible proxy, fetching more from supplier")

		if added := p.replenish(ctx, triggerOnDemand); len(added) > 0 {
			p.probe(ctx, added)

			if proxy, ok := p.tryLease(ctx); ok {
				return proxy, true
			}
		}
	}

	recordLease(ctx, outcomeNone)
	p.logger.Warn().Msg("no suitable proxy available")

	return nil, false
}

func (p *Pool) tryLease(ctx context.Context) (*models.Proxy, bool) {
	p.mu.Lock()

	now := p.clock.Now()
	n := len(p.proxies)

	for i := 0; i < n; i++ {
		idx := (p.cursor + i) % n
		proxy := p.proxies[idx]

		if !p.eligible(proxy, now) {
			continue
		}

		proxy.InUse = true
		proxy.LastUsedAt = models.TimePtr(now)
		p.cursor = (idx + 1) % n

		leased := proxy.Clone()
		version, snapshot := p.snapshotLocked()
		p.mu.Unlock()

		p.persist(ctx, version, snapshot)
		recordLease(ctx, outcomeGranted)
		p.logger.Info().Str("proxy", leased.Address).Msg("assigned proxy")

		return &leased, true
	}

	p.mu.Unlock()

	return nil, false
}

func (p *Pool) eligible(proxy *models.Proxy, now time.Time) bool {
	if proxy.InUse || proxy.Health != models.HealthHealthy {
		return false
	}

	delay := p.cfg.ReuseDelay.Std()
	if proxy.LastUsedAt == nil || delay <= 0 {
		return true
	}

	return now.Sub(*proxy.LastUsedAt) > delay
}

// Release returns a leased proxy. A failed session marks it for re-check and counts a failure.
func (p *Pool) Release(ctx context.Context, address string, success bool) {
	p.mu.Lock()

	proxy, ok := p.index[address]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn().Str("proxy", address).Msg("release of unknown proxy ignored")

		return
	}

	proxy.InUse = false

	if !success {
		proxy.Health = models.HealthUnknown
		proxy.ConsecutiveFailures++
	}

	failures := proxy.ConsecutiveFailures
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordRelease(ctx, success)

	if success {
		p.logger.Info().Str("proxy", address).Msg("released proxy")
	} else {
		p.logger.Warn().Str("proxy", address).Int("failures", failures).Msg("session failed on proxy, marked for re-check")
	}
}

// Maintain evicts repeat failures, replenishes a depleted pool, probes unchecked or stale
// proxies and evicts again. Concurrent callers share one in-flight pass.
func (p *Pool) Maintain(ctx context.Context) {
	_, _, _ = p.maintenance.Do(maintainKey, func() (any, error) {
		p.maintain(ctx)

		return nil, nil
	})
}

func (p *Pool) maintain(ctx context.Context) {
	p.evict(ctx)

	if p.supplier != nil && p.belowFloor() {
		p.replenish(ctx, triggerMaintain)
	}

	p.probe(ctx, nil)
	p.evict(ctx)
}

func (p *Pool) belowFloor() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	available := 0

	for _, proxy := range p.proxies {
		if proxy.Health == models.HealthHealthy && !proxy.InUse {
			available++
		}
	}

	floor := int(math.Floor(float64(len(p.proxies)) * p.cfg.MinPoolRatio))

	p.logger.Debug().
		Int("total", len(p.proxies)).
		Int("available", available).
		Int("min_required", floor).
		Msg("maintaining proxy pool")

	return available < floor
}

func (p *Pool) replenish(ctx context.Context, trigger string) []string {
	fetched, err := p.supplier.FetchProxies(ctx, p.cfg.SupplyLimit)
	if err != nil {
		p.logger.Error().Err(err).Str("trigger", trigger).Msg("failed to fetch proxies from supplier")

		return nil
	}

	added := p.add(ctx, fetched)
	recordSupplied(ctx, len(added), trigger)

	p.logger.Info().
		Int("fetched", len(fetched)).
		Int("added", len(added)).
		Str("trigger", trigger).
		Msg("replenished proxy pool")

	return added
}

// Add inserts proxies whose address is not yet known and returns how many were added.
func (p *Pool) Add(ctx context.Context, proxies ...models.Proxy) int {
	return len(p.add(ctx, proxies))
}

func (p *Pool) add(ctx context.Context, proxies []models.Proxy) []string {
	p.mu.Lock()

	var added []string

	for i := range proxies {
		proxy := proxies[i].Clone()
		if proxy.Address == "" {
			continue
		}

		if _, exists := p.index[proxy.Address]; exists {
			continue
		}

		if proxy.Scheme == "" {
			proxy.Scheme = models.SchemeHTTP
		}

		if proxy.Health == "" {
			proxy.Health = models.HealthUnknown
		}

		proxy.InUse = false

		p.proxies = append(p.proxies, &proxy)
		p.index[proxy.Address] = &proxy
		added = append(added, proxy.Address)
	}

	if len(added) == 0 {
		p.mu.Unlock()

		return nil
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)

	return added
}

// probe checks free proxies that are unchecked or stale. When only is non-nil the pass is
// limited to those addresses.
func (p *Pool) probe(ctx context.Context, only []string) {
	candidates := p.probeCandidates(only)
	if len(candidates) == 0 {
		return
	}

	results := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(p.cfg.ProbeConcurrency)

	for i := range candidates {
		g.Go(func() error {
			results[i] = p.prober.Probe(ctx, candidates[i])

			return nil
		})
	}

	_ = g.Wait()

	p.mu.Lock()

	now := p.clock.Now()

	for i := range candidates {
		proxy, ok := p.index[candidates[i].Address]
		if !ok {
			continue
		}

		proxy.LastCheckedAt = models.TimePtr(now)

		if results[i] == nil {
			proxy.Health = models.HealthHealthy
			proxy.ConsecutiveFailures = 0
		} else {
			proxy.Health = models.HealthUnhealthy
			proxy.ConsecutiveFailures++
		}
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)

	for i := range candidates {
		healthy := results[i] == nil
		recordProbe(ctx, healthy)

		if healthy {
			p.logger.Debug().Str("proxy", candidates[i].Address).Msg("proxy is healthy")
		} else {
			p.logger.Warn().Err(results[i]).Str("proxy", candidates[i].Address).Msg("proxy check failed")
		}
	}
}

func (p *Pool) probeCandidates(only []string) []models.Proxy {
	var filter map[string]struct{}

	if only != nil {
		filter = make(map[string]struct{}, len(only))
		for _, addr := range only {
			filter[addr] = struct{}{}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	recheck := p.cfg.RecheckInterval.Std()

	var out []models.Proxy

	for _, proxy := range p.proxies {
		if proxy.InUse {
			continue
		}

		if filter != nil {
			if _, ok := filter[proxy.Address]; !ok {
				continue
			}
		}

		stale := proxy.LastCheckedAt == nil || now.Sub(*proxy.LastCheckedAt) > recheck
		if proxy.Health == models.HealthUnknown || stale {
			out = append(out, proxy.Clone())
		}
	}

	return out
}

// evict drops free proxies whose consecutive failures exceed MaxFailures.
func (p *Pool) evict(ctx context.Context) {
	p.mu.Lock()

	kept := make([]*models.Proxy, 0, len(p.proxies))
	shift := 0

	var evicted []models.Proxy

	for i, proxy := range p.proxies {
		if proxy.ConsecutiveFailures > p.cfg.MaxFailures && !proxy.InUse {
			evicted = append(evicted, proxy.Clone())
			delete(p.index, proxy.Address)

			if i < p.cursor {
				shift++
			}

			continue
		}

		kept = append(kept, proxy)
	}

	if len(evicted) == 0 {
		p.mu.Unlock()

		return
	}

	p.proxies = kept
	p.cursor -= shift

	if len(kept) == 0 {
		p.cursor = 0
	} else {
		p.cursor %= len(kept)
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordEvictions(ctx, len(evicted))

	now := p.clock.Now()

	for i := range evicted {
		p.logger.Warn().
			Str("proxy", evicted[i].Address).
			Int("failures", evicted[i].ConsecutiveFailures).
			Msg("removed consistently failing proxy")

		p.publish(ctx, &models.QuarantineEvent{
			Kind:      models.KindProxy,
			Subject:   evicted[i].Address,
			Action:    models.ActionEvicted,
			Failures:  evicted[i].ConsecutiveFailures,
			Reason:    "consecutive failures exceeded limit",
			Timestamp: now,
		})
	}
}

func (p *Pool) publish(ctx context.Context, event *models.QuarantineEvent) {
	if err := p.publisher.PublishQuarantine(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("subject", event.Subject).Msg("failed to publish quarantine event")
	}
}

// Snapshot returns a copy of every proxy in rotation order.
func (p *Pool) Snapshot() []models.Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Proxy, len(p.proxies))
	for i, proxy := range p.proxies {
		out[i] = proxy.Clone()
	}

	return out
}

// Stats counts proxies by state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	stats := Stats{Total: len(p.proxies)}

	for _, proxy := range p.proxies {
		switch proxy.Health {
		case models.HealthHealthy:
			stats.Healthy++
		case models.HealthUnhealthy:
			stats.Unhealthy++
		default:
			stats.Unknown++
		}

		if proxy.InUse {
			stats.InUse++
		}

		if p.eligible(proxy, now) {
			stats.Available++
		}
	}

	return stats
}

func (p *Pool) snapshotLocked() (uint64, []models.Proxy) {
	p.version++

	out := make([]models.Proxy, len(p.proxies))
	for i, proxy := range p.proxies {
		out[i] = proxy.Clone()
	}

	return p.version, out
}

func proxyKey(proxy *models.Proxy) string { return proxy.Address }

func setProxyKey(proxy *models.Proxy, address string) { proxy.Address = address }

func (p *Pool) persist(ctx context.Context, version uint64, snapshot []models.Proxy) {
	if _, err := p.snap.Save(ctx, version, store.Keyed(snapshot, proxyKey)); err != nil {
		p.logger.Error().Err(err).Msg("failed to persist proxy registry")
	}
}
