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
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/fleetsched/pkg/clock"
	"github.com/carverauto/fleetsched/pkg/events"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/store"
)

const outcomeSkipped = "skipped"

// Pool owns the device registry and runs sessions on idle devices with up to MaxWorkers
// concurrent workers. A device runs at most one session at a time.
type Pool struct {
	cfg        *Config
	enumerator DeviceEnumerator
	proxies    ProxyLeaser
	executor   SessionExecutor
	store      store.Store
	snap       *store.Snapshotter
	publisher  events.Publisher
	clock      clock.Clock
	logger     logger.Logger
	tracer     trace.Tracer

	queue    *queue
	grow     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	devices map[string]*models.Device
	version uint64
	workers int
	started bool
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

// WithTracerProvider sets where session spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pool) { p.tracer = tp.Tracer(meterName) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// Stats summarizes the registry.
type Stats struct {
	Total   int `json:"total"`
	Idle    int `json:"idle"`
	Running int `json:"running"`
	Failed  int `json:"failed"`
	Queued  int `json:"queued"`
	Workers int `json:"workers"`
}

// New builds a pool. Call Load to restore the registry and Start to begin scheduling.
func New(cfg *Config, enumerator DeviceEnumerator, proxies ProxyLeaser, executor SessionExecutor, opts ...Option) (*Pool, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if enumerator == nil || proxies == nil || executor == nil {
		return nil, ErrNilCollaborator
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:        cfg,
		enumerator: enumerator,
		proxies:    proxies,
		executor:   executor,
		publisher:  events.Nop{},
		clock:      clock.Real(),
		grow:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		devices:    make(map[string]*models.Device),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.logger = logger.Component(p.logger, "fleet")

	if p.tracer == nil {
		p.tracer = otel.Tracer(meterName)
	}
	p.queue = newQueue(p.clock)

	if p.store == nil {
		p.store = store.NewMemoryStore()
	}

	p.snap = store.NewSnapshotter(p.store, store.NameDevices)

	return p, nil
}

// Start runs an initial discovery and starts the workers. Discovery errors are logged; later
// Discover calls pick the fleet up.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()

		return ErrAlreadyStarted
	}

	p.started = true
	p.mu.Unlock()

	p.logger.Info().
		Int("max_workers", p.cfg.MaxWorkers).
		Int("retry_limit", p.cfg.RetryLimit).
		Msg("starting device pool")

	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.supervise(ctx)
	}()

	if err := p.Discover(ctx); err != nil {
		p.logger.Error().Err(err).Msg("initial device discovery failed")
	}

	p.signalGrow()

	return nil
}

// Stop tells workers to stop taking devices and waits for them up to StopTimeout. Sessions in
// flight are allowed to finish.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	p.logger.Info().Msg("stopping device pool")
	p.stopOnce.Do(func() { close(p.done) })

	waitCh := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(waitCh)
	}()

	timer := time.NewTimer(p.cfg.StopTimeout.Std())
	defer timer.Stop()

	select {
	case <-waitCh:
		p.logger.Info().Msg("device pool stopped")

		return nil
	case <-ctx.Done():
		p.logger.Warn().Err(ctx.Err()).Msg("device pool stop canceled")

		return ctx.Err()
	case <-timer.C:
		p.logger.Error().
			Int("running", p.Stats().Running).
			Dur("timeout", p.cfg.StopTimeout.Std()).
			Msg("device workers did not exit in time")

		return ErrStopTimeout
	}
}

// Discover reconciles the registry with the enumerator. New devices start idle and are queued.
// Devices that vanished are dropped unless a session is running on them.
func (p *Pool) Discover(ctx context.Context) error {
	infos, err := p.enumerator.EnumerateDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEnumerate, err)
	}

	seen := make(map[string]models.DeviceInfo, len(infos))

	for _, info := range infos {
		id := strings.TrimSpace(info.ID)
		if id == "" {
			continue
		}

		seen[id] = info
	}

	p.mu.Lock()

	now := p.clock.Now()

	var added, dropped, schedule []string

	for id, info := range seen {
		device, ok := p.devices[id]
		if !ok {
			device = &models.Device{ID: id, Status: models.DeviceIdle}
			p.devices[id] = device
			added = append(added, id)
		}

		device.LastConnected = models.TimePtr(now)
		device.Capabilities = slices.Clone(info.Capabilities)

		if device.Status == models.DeviceIdle {
			schedule = append(schedule, id)
		}
	}

	for id, device := range p.devices {
		if _, ok := seen[id]; ok || device.Status == models.DeviceRunning {
			continue
		}

		delete(p.devices, id)
		dropped = append(dropped, id)
	}

	version, snapshot := p.snapshotLocked()
	total := len(p.devices)
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)

	slices.Sort(schedule)

	for _, id := range schedule {
		p.queue.push(id)
	}

	p.signalGrow()

	slices.Sort(added)
	slices.Sort(dropped)

	p.logger.Info().
		Int("devices", total).
		Strs("added", added).
		Strs("dropped", dropped).
		Msg("device discovery complete")

	return nil
}

func (p *Pool) signalGrow() {
	select {
	case p.grow <- struct{}{}:
	default:
	}
}

// supervise starts workers as the fleet grows, up to MaxWorkers. Workers are never retired.
func (p *Pool) supervise(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.grow:
			p.spawnWorkers(ctx)
		}
	}
}

func (p *Pool) spawnWorkers(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	target := min(p.cfg.MaxWorkers, len(p.devices))
	if p.workers >= target {
		return
	}

	for p.workers < target {
		p.workers++
		p.wg.Add(1)

		go p.worker(ctx, p.workers)
	}

	p.logger.Info().Int("workers", p.workers).Msg("scaled device workers")
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	bo := p.newBackOff()

	p.logger.Debug().Int("worker", workerID).Msg("device worker started")

	for {
		if p.stopping(ctx) {
			p.logger.Debug().Int("worker", workerID).Msg("device worker exiting")

			return
		}

		id, ok := p.queue.pop(ctx, p.done, p.cfg.PopTimeout.Std())
		if !ok {
			continue
		}

		switch p.runSession(ctx, workerID, id) {
		case outcomeNoProxy, outcomeUnavailable:
			if !p.sleep(ctx, bo.NextBackOff()) {
				return
			}
		case outcomeSkipped:
		default:
			bo.Reset()
		}
	}
}

func (p *Pool) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.NoProxyBackoff.Std()
	bo.MaxInterval = p.cfg.MaxNoProxyBackoff.Std()
	bo.Reset()

	return bo
}

func (p *Pool) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	timer := p.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-p.done:
		return false
	case <-timer.Chan():
		return true
	}
}

// runSession claims an idle device, leases a proxy and executes one session on it.
func (p *Pool) runSession(ctx context.Context, workerID int, id string) string {
	p.mu.Lock()

	device, ok := p.devices[id]
	if !ok || device.Status != models.DeviceIdle {
		p.mu.Unlock()
		p.logger.Debug().Str("device_id", id).Msg("skipping device that is not idle")

		return outcomeSkipped
	}

	device.Status = models.DeviceRunning
	p.mu.Unlock()

	proxy, ok := p.proxies.Lease(ctx)
	if !ok {
		p.setIdle(id)
		p.queue.push(id)
		recordSession(ctx, outcomeNoProxy)
		p.logger.Info().Str("device_id", id).Msg("no proxy available, device requeued")

		return outcomeNoProxy
	}

	lease := &models.Lease{
		ID:        uuid.NewString(),
		DeviceID:  id,
		Proxy:     *proxy,
		StartedAt: p.clock.Now(),
	}

	// the session and its bookkeeping outlive shutdown
	sessionCtx, span := p.tracer.Start(context.WithoutCancel(ctx), spanSession,
		trace.WithAttributes(
			attribute.String(attrLeaseID, lease.ID),
			attribute.String(attrDeviceID, id),
			attribute.String(attrProxy, proxy.Address),
			attribute.Int(attrWorker, workerID),
		))
	defer span.End()

	p.mu.Lock()
	if device, ok = p.devices[id]; ok {
		device.CurrentLease = proxy.Address
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(sessionCtx, version, snapshot)

	p.logger.Info().
		Int("worker", workerID).
		Str("device_id", id).
		Str("proxy", proxy.Address).
		Str("lease_id", lease.ID).
		Msg("starting session")

	outcome, err := p.execute(sessionCtx, lease)
	result := p.finish(sessionCtx, workerID, lease, outcome, err)

	endSessionSpan(span, result, outcome, err)

	return result
}

func endSessionSpan(span trace.Span, result string, outcome Outcome, err error) {
	span.SetAttributes(attribute.String(attrOutcome, result))

	if err != nil {
		span.RecordError(err)
	}

	if result != outcomeFailure {
		return
	}

	reason := outcome.Diagnostic
	if reason == "" && err != nil {
		reason = err.Error()
	}

	span.SetStatus(codes.Error, reason)
}

func (p *Pool) setIdle(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if device, ok := p.devices[id]; ok && device.Status == models.DeviceRunning {
		device.Status = models.DeviceIdle
	}
}

// execute runs the executor and always gives the proxy back, even if the executor panics.
func (p *Pool) execute(ctx context.Context, lease *models.Lease) (outcome Outcome, err error) {
	recordRunning(ctx, 1)

	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{Diagnostic: fmt.Sprint(r)}
			err = fmt.Errorf("%w: %v", ErrSessionPanic, r)

			p.logger.Error().Str("device_id", lease.DeviceID).Interface("panic", r).Msg("session executor panicked")
		}

		recordRunning(ctx, -1)
		p.proxies.Release(ctx, lease.Proxy.Address, classify(outcome, err) != outcomeFailure)
	}()

	return p.executor.ExecuteSession(ctx, lease)
}

func classify(outcome Outcome, err error) string {
	switch {
	case errors.Is(err, ErrResourceUnavailable):
		return outcomeUnavailable
	case err != nil:
		return outcomeFailure
	case outcome.Success:
		return outcomeSuccess
	default:
		return outcomeFailure
	}
}

func (p *Pool) finish(ctx context.Context, workerID int, lease *models.Lease, outcome Outcome, err error) string {
	result := classify(outcome, err)

	diagnostic := outcome.Diagnostic
	if err != nil && diagnostic == "" {
		diagnostic = err.Error()
	}

	p.mu.Lock()

	device, ok := p.devices[lease.DeviceID]
	if !ok {
		p.mu.Unlock()
		p.logger.Warn().Str("device_id", lease.DeviceID).Msg("session finished for a device no longer tracked")

		return result
	}

	device.CurrentLease = ""
	quarantined := false

	switch result {
	case outcomeSuccess:
		device.ConsecutiveFailures = 0
		device.Status = models.DeviceIdle
	case outcomeUnavailable:
		device.Status = models.DeviceIdle
	default:
		device.ConsecutiveFailures++

		if device.ConsecutiveFailures >= p.cfg.RetryLimit {
			device.Status = models.DeviceFailed
			quarantined = true
		} else {
			device.Status = models.DeviceIdle
		}
	}

	failures := device.ConsecutiveFailures
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	recordSession(ctx, result)

	if result != outcomeUnavailable {
		recordDuration(ctx, p.clock.Now().Sub(lease.StartedAt), result)
	}

	switch result {
	case outcomeSuccess:
		p.logger.Info().Int("worker", workerID).Str("device_id", lease.DeviceID).Msg("session succeeded")
	case outcomeUnavailable:
		p.logger.Info().Str("device_id", lease.DeviceID).Err(err).Msg("session resources unavailable, device requeued")
	default:
		p.logger.Warn().
			Int("worker", workerID).
			Str("device_id", lease.DeviceID).
			Int("failures", failures).
			Str("diagnostic", diagnostic).
			Msg("session failed")
	}

	if quarantined {
		recordDeviceFailed(ctx)
		p.logger.Error().
			Str("device_id", lease.DeviceID).
			Int("failures", failures).
			Msg("device reached retry limit, removed from scheduling")

		p.publish(ctx, &models.QuarantineEvent{
			Kind:      models.KindDevice,
			Subject:   lease.DeviceID,
			Action:    models.ActionQuarantined,
			Failures:  failures,
			Reason:    diagnostic,
			Timestamp: p.clock.Now(),
		})

		return result
	}

	p.queue.push(lease.DeviceID)

	return result
}

// ResetDevice clears a device's failure count and, if it had failed, schedules it again.
func (p *Pool) ResetDevice(ctx context.Context, id string) error {
	p.mu.Lock()

	device, ok := p.devices[id]
	if !ok {
		p.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	wasFailed := device.Status == models.DeviceFailed
	device.ConsecutiveFailures = 0

	if wasFailed {
		device.Status = models.DeviceIdle
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)
	p.logger.Info().Str("device_id", id).Bool("was_failed", wasFailed).Msg("device reset")

	if wasFailed {
		p.restored(ctx, []string{id})
	}

	return nil
}

// ResetFailed returns every failed device to scheduling and reports how many there were.
func (p *Pool) ResetFailed(ctx context.Context) int {
	p.mu.Lock()

	var reset []string

	for id, device := range p.devices {
		if device.Status != models.DeviceFailed {
			continue
		}

		device.Status = models.DeviceIdle
		device.ConsecutiveFailures = 0
		reset = append(reset, id)
	}

	if len(reset) == 0 {
		p.mu.Unlock()

		return 0
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)

	slices.Sort(reset)
	p.restored(ctx, reset)
	p.logger.Info().Int("reset", len(reset)).Msg("reset failed devices")

	return len(reset)
}

func (p *Pool) restored(ctx context.Context, ids []string) {
	now := p.clock.Now()

	for _, id := range ids {
		p.queue.push(id)
		p.publish(ctx, &models.QuarantineEvent{
			Kind:      models.KindDevice,
			Subject:   id,
			Action:    models.ActionRestored,
			Reason:    "manual reset",
			Timestamp: now,
		})
	}
}

// Get returns a copy of one device.
func (p *Pool) Get(id string) (models.Device, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	device, ok := p.devices[id]
	if !ok {
		return models.Device{}, false
	}

	return device.Clone(), true
}

// Devices returns copies of every device ordered by id.
func (p *Pool) Devices() []models.Device {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.sortedLocked()
}

// Stats counts devices by state.
func (p *Pool) Stats() Stats {
	p.mu.Lock()

	stats := Stats{Total: len(p.devices), Workers: p.workers}

	for _, device := range p.devices {
		switch device.Status {
		case models.DeviceIdle:
			stats.Idle++
		case models.DeviceRunning:
			stats.Running++
		case models.DeviceFailed:
			stats.Failed++
		}
	}

	p.mu.Unlock()

	stats.Queued = p.queue.len()

	return stats
}

// Load restores the device registry. Failed devices stay failed; everything else comes back
// idle with no lease.
func (p *Pool) Load(ctx context.Context) error {
	var keyed map[string]models.Device

	found, err := p.snap.Load(ctx, &keyed)
	if err != nil {
		return fmt.Errorf("failed to load device registry: %w", err)
	}

	if !found {
		p.logger.Debug().Msg("no saved device registry")

		return nil
	}

	saved := store.Records(keyed, setDeviceKey)

	p.mu.Lock()

	for i := range saved {
		device := saved[i].Clone()
		device.CurrentLease = ""

		if device.Status != models.DeviceFailed {
			device.Status = models.DeviceIdle
		}

		p.devices[device.ID] = &device
	}

	total := len(p.devices)
	p.mu.Unlock()

	p.logger.Info().Int("devices", total).Msg("restored device registry")

	return nil
}

func (p *Pool) sortedLocked() []models.Device {
	out := make([]models.Device, 0, len(p.devices))
	for _, device := range p.devices {
		out = append(out, device.Clone())
	}

	slices.SortFunc(out, func(a, b models.Device) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out
}

func (p *Pool) snapshotLocked() (uint64, []models.Device) {
	p.version++

	return p.version, p.sortedLocked()
}

func deviceKey(d *models.Device) string { return d.ID }

func setDeviceKey(d *models.Device, id string) { d.ID = id }

func (p *Pool) persist(ctx context.Context, version uint64, snapshot []models.Device) {
	if _, err := p.snap.Save(ctx, version, store.Keyed(snapshot, deviceKey)); err != nil {
		p.logger.Error().Err(err).Msg("failed to persist device registry")
	}
}

func (p *Pool) publish(ctx context.Context, event *models.QuarantineEvent) {
	if err := p.publisher.PublishQuarantine(ctx, event); err != nil {
		p.logger.Warn().Err(err).Str("device_id", event.Subject).Msg("failed to publish quarantine event")
	}
}
