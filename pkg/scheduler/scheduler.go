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

// Package scheduler assembles the proxy, account and device pools into one running service.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/carverauto/fleetsched/pkg/accountpool"
	"github.com/carverauto/fleetsched/pkg/clock"
	"github.com/carverauto/fleetsched/pkg/config"
	"github.com/carverauto/fleetsched/pkg/events"
	"github.com/carverauto/fleetsched/pkg/executor"
	"github.com/carverauto/fleetsched/pkg/fleet"
	"github.com/carverauto/fleetsched/pkg/lifecycle"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/proxypool"
	"github.com/carverauto/fleetsched/pkg/store"
	"github.com/carverauto/fleetsched/pkg/version"
)

var (
	_ config.Validator  = (*Config)(nil)
	_ lifecycle.Service = (*Scheduler)(nil)
)

// Scheduler owns one instance of each pool and the background loops that refresh them.
type Scheduler struct {
	cfg       *Config
	store     store.Store
	publisher events.Publisher
	clock     clock.Clock
	logger    logger.Logger

	// base is handed to the pools, which tag it with their own component
	base logger.Logger

	proxies  *proxypool.Pool
	accounts *accountpool.Pool
	devices  *fleet.Pool

	// canRun is false when no session executor was configured
	canRun   bool
	readOnly bool

	mu        sync.Mutex
	started   bool
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	store      store.Store
	publisher  events.Publisher
	executor   fleet.SessionExecutor
	enumerator fleet.DeviceEnumerator
	supplier   proxypool.Supplier
	prober     proxypool.Prober
	clock      clock.Clock
	logger     logger.Logger
	readOnly   bool
}

// WithStore overrides the configured snapshot backend.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithPublisher overrides the configured event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithExecutor supplies the session executor instead of the configured command.
func WithExecutor(e fleet.SessionExecutor) Option {
	return func(o *options) { o.executor = e }
}

// WithEnumerator replaces adb device discovery.
func WithEnumerator(e fleet.DeviceEnumerator) Option {
	return func(o *options) { o.enumerator = e }
}

// WithProxySupplier replaces the configured proxy supply source.
func WithProxySupplier(s proxypool.Supplier) Option {
	return func(o *options) { o.supplier = s }
}

// WithProxyProber replaces the HTTP health probe.
func WithProxyProber(p proxypool.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithClock replaces the wall clock for every pool and the background loops.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithReadOnly loads state without ever writing snapshots or publishing events. For status
// inspection alongside a running scheduler.
func WithReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Status is a point-in-time summary of all three pools.
type Status struct {
	Devices  fleet.Stats       `json:"devices"`
	Accounts accountpool.Stats `json:"accounts"`
	Proxies  proxypool.Stats   `json:"proxies"`
}

// ResetResult reports what Reset restored.
type ResetResult struct {
	Accounts int `json:"accounts"`
	Devices  int `json:"devices"`
}

// New validates cfg, opens the store and event publisher and builds the pools. Without an
// executor (WithExecutor or cfg.Executor) the scheduler can report and reset state but not run.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Scheduler, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Scheduler{
		cfg:       cfg,
		store:     o.store,
		publisher: o.publisher,
		clock:     o.clock,
		logger:    logger.Component(o.logger, "scheduler"),
		base:      o.logger,
		done:      make(chan struct{}),
	}

	if s.clock == nil {
		s.clock = clock.Real()
	}

	if o.readOnly && s.publisher == nil {
		s.publisher = events.Nop{}
	}

	if err := s.openBackends(ctx); err != nil {
		return nil, err
	}

	if o.readOnly {
		s.store = store.ReadOnly(s.store)
		s.readOnly = true
	}

	if err := s.buildPools(o); err != nil {
		_ = s.closeBackends()

		return nil, err
	}

	return s, nil
}

func (s *Scheduler) openBackends(ctx context.Context) error {
	if s.store == nil {
		st, err := store.Open(ctx, s.cfg.Store, s.base)
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}

		s.store = st
	}

	if s.publisher != nil {
		return nil
	}

	if !s.cfg.Events.Enabled {
		s.publisher = events.Nop{}

		return nil
	}

	pub, err := events.Connect(ctx, s.cfg.Events, s.base)
	if err != nil {
		_ = s.store.Close()

		return fmt.Errorf("failed to connect event publisher: %w", err)
	}

	s.publisher = pub

	return nil
}

func (s *Scheduler) buildPools(o *options) error {
	proxyOpts := []proxypool.Option{
		proxypool.WithStore(s.store),
		proxypool.WithPublisher(s.publisher),
		proxypool.WithClock(s.clock),
		proxypool.WithLogger(s.base),
	}

	if o.supplier != nil {
		proxyOpts = append(proxyOpts, proxypool.WithSupplier(o.supplier))
	}

	if o.prober != nil {
		proxyOpts = append(proxyOpts, proxypool.WithProber(o.prober))
	}

	proxies, err := proxypool.New(s.cfg.Proxies, proxyOpts...)
	if err != nil {
		return fmt.Errorf("failed to build proxy pool: %w", err)
	}

	accounts, err := accountpool.New(s.cfg.Accounts,
		accountpool.WithStore(s.store),
		accountpool.WithPublisher(s.publisher),
		accountpool.WithClock(s.clock),
		accountpool.WithLogger(s.base),
	)
	if err != nil {
		return fmt.Errorf("failed to build account pool: %w", err)
	}

	inner := o.executor
	if inner == nil && s.cfg.Executor != nil {
		cmd, err := executor.New(s.cfg.Executor, s.base)
		if err != nil {
			return fmt.Errorf("failed to build session executor: %w", err)
		}

		inner = cmd
	}

	if inner == nil {
		inner = fleet.SessionExecutorFunc(func(context.Context, *models.Lease) (fleet.Outcome, error) {
			return fleet.Outcome{}, ErrExecutorRequired
		})
	}

	enumerator := o.enumerator
	if enumerator == nil {
		enumerator = fleet.NewADBEnumerator(s.cfg.Workers.ADB, s.base)
	}

	devices, err := fleet.New(s.cfg.Workers, enumerator, proxies,
		fleet.NewAccountExecutor(accounts, inner, s.base),
		fleet.WithStore(s.store),
		fleet.WithPublisher(s.publisher),
		fleet.WithClock(s.clock),
		fleet.WithLogger(s.base),
	)
	if err != nil {
		return fmt.Errorf("failed to build device pool: %w", err)
	}

	s.proxies = proxies
	s.accounts = accounts
	s.devices = devices
	s.canRun = o.executor != nil || s.cfg.Executor != nil

	return nil
}

// Load restores all three pools from their input files and the snapshot store.
func (s *Scheduler) Load(ctx context.Context) error {
	if err := s.proxies.Load(ctx); err != nil {
		return fmt.Errorf("failed to load proxies: %w", err)
	}

	if err := s.accounts.Load(ctx); err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	if err := s.devices.Load(ctx); err != nil {
		return fmt.Errorf("failed to load devices: %w", err)
	}

	return nil
}

// Start loads state, starts the device workers and the background discovery, reset and
// maintenance loops.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}

	if !s.canRun {
		return ErrExecutorRequired
	}

	select {
	case <-s.done:
		return ErrStopped
	default:
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return ErrAlreadyStarted
	}

	s.started = true
	s.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()

		return err
	}

	// restore accounts whose cool-down elapsed while we were down
	s.accounts.ResetQuarantined(ctx, s.cfg.Accounts.CoolDown())

	if err := s.devices.Start(ctx); err != nil {
		return fmt.Errorf("failed to start device pool: %w", err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	s.logger.Info().
		Str("version", version.Version()).
		Dur("discovery_interval", s.cfg.DiscoveryInterval.Std()).
		Dur("reset_interval", s.cfg.ResetInterval.Std()).
		Dur("maintain_interval", s.cfg.MaintainInterval.Std()).
		Msg("scheduler started")

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	discovery := s.clock.Ticker(s.cfg.DiscoveryInterval.Std())
	defer discovery.Stop()

	reset := s.clock.Ticker(s.cfg.ResetInterval.Std())
	defer reset.Stop()

	maintain := s.clock.Ticker(s.cfg.MaintainInterval.Std())
	defer maintain.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-discovery.Chan():
			if err := s.devices.Discover(ctx); err != nil {
				s.logger.Error().Err(err).Msg("periodic device discovery failed")
			}
		case <-reset.Chan():
			s.accounts.ResetQuarantined(ctx, s.cfg.Accounts.CoolDown())
		case <-maintain.Chan():
			s.proxies.Maintain(ctx)
		}
	}
}

// Stop halts the background loops, waits for device workers and closes the backends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	var errs []error

	if started {
		s.stopOnce.Do(func() { close(s.done) })

		if err := s.devices.Stop(ctx); err != nil {
			errs = append(errs, err)
		}

		s.wg.Wait()
	}

	if err := s.closeBackends(); err != nil {
		errs = append(errs, err)
	}

	s.logger.Info().Msg("scheduler stopped")

	return errors.Join(errs...)
}

// Close releases the store and publisher without starting. Used by one-shot commands.
func (s *Scheduler) Close() error {
	return s.closeBackends()
}

func (s *Scheduler) closeBackends() error {
	s.closeOnce.Do(func() { s.closeErr = s.closeBackendsOnce() })

	return s.closeErr
}

func (s *Scheduler) closeBackendsOnce() error {
	var errs []error

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close snapshot store: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Status summarizes the pools.
func (s *Scheduler) Status() Status {
	return Status{
		Devices:  s.devices.Stats(),
		Accounts: s.accounts.Stats(),
		Proxies:  s.proxies.Stats(),
	}
}

// Reset restores problematic accounts past their cool-down and every failed device.
func (s *Scheduler) Reset(ctx context.Context) ResetResult {
	return ResetResult{
		Accounts: s.accounts.ResetQuarantined(ctx, s.cfg.Accounts.CoolDown()),
		Devices:  s.devices.ResetFailed(ctx),
	}
}

// Devices returns the device registry.
func (s *Scheduler) Devices() []models.Device {
	return s.devices.Devices()
}

// Accounts returns the account registry.
func (s *Scheduler) Accounts() []models.Account {
	return s.accounts.Snapshot()
}

// Proxies returns the proxy registry.
func (s *Scheduler) Proxies() []models.Proxy {
	return s.proxies.Snapshot()
}
