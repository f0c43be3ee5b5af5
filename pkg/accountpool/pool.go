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

// Package accountpool owns the credential registry: fairness-ordered exclusive assignment,
// outcome bookkeeping, quarantine after repeated failures and cool-down reset.
package accountpool

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/fleetsched/pkg/clock"
	"github.com/carverauto/fleetsched/pkg/events"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/store"
)

// Pool assigns accounts to devices, at most one holder per account.
type Pool struct {
	cfg       *Config
	store     store.Store
	snap      *store.Snapshotter
	publisher events.Publisher
	clock     clock.Clock
	logger    logger.Logger

	mu       sync.Mutex
	accounts map[string]*models.Account
	version  uint64
}

// Option configures a Pool.
type Option func(*Pool)

// WithStore sets the snapshot backend.
func WithStore(s store.Store) Option {
	return func(p *Pool) { p.store = s }
}

// WithPublisher sets where quarantine events go.
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
	Total       int `json:"total"`
	Active      int `json:"active"`
	Problematic int `json:"problematic"`
	InUse       int `json:"in_use"`
	Available   int `json:"available"`
	NeverUsed   int `json:"never_used"`
}

// New builds an empty pool. Call Load to populate it.
func New(cfg *Config, opts ...Option) (*Pool, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:       cfg,
		publisher: events.Nop{},
		clock:     clock.Real(),
		accounts:  make(map[string]*models.Account),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = logger.Component(p.logger, "accountpool")

	if p.store == nil {
		p.store = store.NewMemoryStore()
	}

	p.snap = store.NewSnapshotter(p.store, store.NameAccounts)

	return p, nil
}

// Assign leases the fairest active, unleased account to deviceID. Accounts used on this device
// within the recent-use window go last, then never-used accounts are preferred, then the least
// recently used, with email as the tie-break.
func (p *Pool) Assign(ctx context.Context, deviceID string) (models.Credential, bool) {
	p.mu.Lock()

	now := p.clock.Now()
	window := p.cfg.RecentUseWindow.Std()

	type candidate struct {
		account *models.Account
		recent  bool
	}

	candidates := make([]candidate, 0, len(p.accounts))

	for _, account := range p.accounts {
		if account.Status != models.AccountActive || account.InUse {
			continue
		}

		recent := account.AssignedDeviceID == deviceID &&
			account.LastUsedAt != nil &&
			now.Sub(*account.LastUsedAt) < window

		candidates = append(candidates, candidate{account: account, recent: recent})
	}

	if len(candidates) == 0 {
		p.mu.Unlock()

		recordAssign(ctx, false)
		p.logger.Warn().Str("device_id", deviceID).Msg("no free active account")

		return models.Credential{}, false
	}

	slices.SortFunc(candidates, func(a, b candidate) int {
		if c := compareBool(a.recent, b.recent); c != 0 {
			return c
		}

		if c := compareBool(a.account.LastUsedAt != nil, b.account.LastUsedAt != nil); c != 0 {
			return c
		}

		if a.account.LastUsedAt != nil && b.account.LastUsedAt != nil {
			if c := a.account.LastUsedAt.Compare(*b.account.LastUsedAt); c != 0 {
				return c
			}
		}

		return strings.Compare(a.account.Email, b.account.Email)
	})

	chosen := candidates[0]
	account := chosen.account

	var previous *time.Time
	if account.LastUsedAt != nil {
		previous = models.TimePtr(*account.LastUsedAt)
	}

	account.LastUsedAt = models.TimePtr(now)
	account.AssignedDeviceID = deviceID
	account.LoginAttempts = 0
	account.InUse = true

	cred := models.Credential{Email: account.Email, Secret: account.Secret}
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordAssign(ctx, true)

	event := p.logger.Info().
		Str("account", cred.Email).
		Str("device_id", deviceID).
		Bool("used_on_device_recently", chosen.recent)
	if previous != nil {
		event = event.Time("previous_use", *previous)
	}

	event.Msg("assigned account")

	return cred, true
}

func compareBool(a, b bool) int {
	return cmp.Compare(boolRank(a), boolRank(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}

	return 0
}

// HasActive reports whether any account is active, leased or not.
func (p *Pool) HasActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, account := range p.accounts {
		if account.Status == models.AccountActive {
			return true
		}
	}

	return false
}

// ReportSuccess records a successful session and releases the lease.
func (p *Pool) ReportSuccess(ctx context.Context, email, deviceID string) {
	p.mu.Lock()

	account, ok := p.accounts[email]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn().Str("account", email).Msg("cannot report success for unknown account")

		return
	}

	now := p.clock.Now()
	account.SuccessfulLogins++
	account.LoginAttempts = 0
	account.ConsecutiveFailures = 0
	account.Status = models.AccountActive
	account.LastError = ""
	account.LastLoginAt = models.TimePtr(now)
	account.AssignedDeviceID = deviceID
	account.InUse = false

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordReport(ctx, true)
	p.logger.Info().Str("account", email).Str("device_id", deviceID).Msg("session success reported")
}

// ReportFailure records a failed session and releases the lease. The account becomes
// problematic once its consecutive failures reach the threshold; further failures keep it there.
func (p *Pool) ReportFailure(ctx context.Context, email, deviceID, reason string) {
	p.mu.Lock()

	account, ok := p.accounts[email]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn().Str("account", email).Msg("cannot report failure for unknown account")

		return
	}

	account.LoginAttempts++
	account.ConsecutiveFailures++
	account.LastError = reason
	account.InUse = false

	quarantined := false
	if account.Status == models.AccountActive && account.ConsecutiveFailures >= p.cfg.FailureThreshold {
		account.Status = models.AccountProblematic
		quarantined = true
	}

	failures := account.ConsecutiveFailures
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordReport(ctx, false)
	p.logger.Info().Str("account", email).Str("device_id", deviceID).Str("reason", reason).Msg("session failure reported")

	if !quarantined {
		return
	}

	recordQuarantine(ctx, models.ActionQuarantined, 1)
	p.logger.Warn().
		Str("account", email).
		Str("device_id", deviceID).
		Int("failures", failures).
		Msg("account marked as problematic")

	p.publish(ctx, &models.QuarantineEvent{
		Kind:      models.KindAccount,
		Subject:   email,
		Action:    models.ActionQuarantined,
		Failures:  failures,
		Reason:    reason,
		Timestamp: p.clock.Now(),
	})
}

// Release drops a lease without recording an outcome.
func (p *Pool) Release(ctx context.Context, email string) {
	p.mu.Lock()

	account, ok := p.accounts[email]
	if !ok || !account.InUse {
		p.mu.Unlock()

		return
	}

	account.InUse = false
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	p.logger.Debug().Str("account", email).Msg("released account without outcome")
}

// ResetQuarantined restores problematic accounts that have not been used within coolDown (or
// never were) and returns how many were restored.
func (p *Pool) ResetQuarantined(ctx context.Context, coolDown time.Duration) int {
	p.mu.Lock()

	now := p.clock.Now()
	cutoff := now.Add(-coolDown)

	var restored []string

	for _, account := range p.accounts {
		if account.Status != models.AccountProblematic {
			continue
		}

		if account.LastUsedAt != nil && !account.LastUsedAt.Before(cutoff) {
			continue
		}

		account.Status = models.AccountActive
		account.LoginAttempts = 0
		account.ConsecutiveFailures = 0
		account.LastError = ""
		restored = append(restored, account.Email)
	}

	if len(restored) == 0 {
		p.mu.Unlock()

		return 0
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordQuarantine(ctx, models.ActionRestored, len(restored))

	slices.Sort(restored)

	for _, email := range restored {
		p.publish(ctx, &models.QuarantineEvent{
			Kind:      models.KindAccount,
			Subject:   email,
			Action:    models.ActionRestored,
			Reason:    "cool-down elapsed",
			Timestamp: now,
		})
	}

	p.logger.Info().Int("restored", len(restored)).Dur("cool_down", coolDown).Msg("reset problematic accounts")

	return len(restored)
}

// SetStatus overrides an account's status. Setting active clears its failure counters.
func (p *Pool) SetStatus(ctx context.Context, email string, status models.AccountStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	p.mu.Lock()

	account, ok := p.accounts[email]
	if !ok {
		p.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrUnknownAccount, email)
	}

	previous := account.Status
	account.Status = status

	if status == models.AccountActive {
		account.LoginAttempts = 0
		account.ConsecutiveFailures = 0
	}

	failures := account.ConsecutiveFailures
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	p.logger.Info().Str("account", email).Str("status", string(status)).Msg("account status updated")

	if previous == status {
		return nil
	}

	action := models.ActionQuarantined
	if status == models.AccountActive {
		action = models.ActionRestored
	}

	recordQuarantine(ctx, action, 1)
	p.publish(ctx, &models.QuarantineEvent{
		Kind:      models.KindAccount,
		Subject:   email,
		Action:    action,
		Failures:  failures,
		Reason:    "manual override",
		Timestamp: p.clock.Now(),
	})

	return nil
}

// Get returns a copy of one account.
func (p *Pool) Get(email string) (models.Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	account, ok := p.accounts[email]
	if !ok {
		return models.Account{}, false
	}

	return account.Clone(), true
}

// Snapshot returns copies of every account ordered by email.
func (p *Pool) Snapshot() []models.Account {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sortedLocked()
}

// Stats counts accounts by state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{Total: len(p.accounts)}

	for _, account := range p.accounts {
		switch account.Status {
		case models.AccountActive:
			stats.Active++

			if !account.InUse {
				stats.Available++
			}
		case models.AccountProblematic:
			stats.Problematic++
		}

		if account.InUse {
			stats.InUse++
		}

		if account.LastUsedAt == nil {
			stats.NeverUsed++
		}
	}

	return stats
}

func (p *Pool) sortedLocked() []models.Account {
	out := make([]models.Account, 0, len(p.accounts))
	for _, account := range p.accounts {
		out = append(out, account.Clone())
	}

	slices.SortFunc(out, func(a, b models.Account) int {
		return strings.Compare(a.Email, b.Email)
	})

	return out
}

func (p *Pool) snapshotLocked() (uint64, []models.Account) {
	p.version++

	return p.version, p.sortedLocked()
}

func accountKey(a *models.Account) string { return a.Email }

func setAccountKey(a *models.Account, email string) { a.Email = email }

func (p *Pool) persist(ctx context.Context, version uint64, snapshot []models.Account) {
	if _, err := p.snap.Save(ctx, version, store.Keyed(snapshot, accountKey)); err != nil {
		p.logger.Error().Err(err).Msg("failed to persist account registry")
	}
}

func (p *Pool) publish(ctx context.Context, event *models.QuarantineEvent) {
	if err := p.publisher.PublishQuarantine(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("account", event.Subject).Msg("failed to publish quarantine event")
	}
}
