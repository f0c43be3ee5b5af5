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

package scheduler

import (
	"fmt"
	"time"

	"github.com/carverauto/fleetsched/pkg/accountpool"
	"github.com/carverauto/fleetsched/pkg/config"
	"github.com/carverauto/fleetsched/pkg/events"
	"github.com/carverauto/fleetsched/pkg/executor"
	"github.com/carverauto/fleetsched/pkg/fleet"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/proxypool"
	"github.com/carverauto/fleetsched/pkg/store"
)

const (
	defaultDiscoveryInterval = time.Minute
	defaultResetInterval     = time.Hour
	defaultMaintainInterval  = 5 * time.Minute
)

type section struct {
	name string
	v    config.Validator
}

// Config is the fleetsched configuration document.
type Config struct {
	Logging  *logger.Config        `json:"logging,omitempty"`
	Metrics  *logger.MetricsConfig `json:"metrics,omitempty"`
	Store    *store.Config         `json:"store,omitempty"`
	Events   *events.Config        `json:"events,omitempty"`
	Proxies  *proxypool.Config     `json:"proxies,omitempty"`
	Accounts *accountpool.Config   `json:"accounts,omitempty"`
	Workers  *fleet.Config         `json:"workers,omitempty"`
	Executor *executor.Config      `json:"executor,omitempty"`

	// DiscoveryInterval is how often the device fleet is re-enumerated.
	DiscoveryInterval models.Duration `json:"discovery_interval,omitempty"`
	// ResetInterval is how often problematic accounts past their cool-down are restored.
	ResetInterval models.Duration `json:"reset_interval,omitempty"`
	// MaintainInterval is how often the proxy pool is maintained while no leases are requested.
	MaintainInterval models.Duration `json:"maintain_interval,omitempty"`
}

// DefaultConfig returns a configuration with every section at its defaults. Executor is left
// unset.
func DefaultConfig() *Config {
	return &Config{
		Logging:           logger.DefaultConfig(),
		Store:             &store.Config{Backend: store.BackendMemory},
		Events:            &events.Config{},
		Proxies:           proxypool.DefaultConfig(),
		Accounts:          accountpool.DefaultConfig(),
		Workers:           fleet.DefaultConfig(),
		DiscoveryInterval: models.Duration(defaultDiscoveryInterval),
		ResetInterval:     models.Duration(defaultResetInterval),
		MaintainInterval:  models.Duration(defaultMaintainInterval),
	}
}

// Validate fills missing sections with defaults and validates each one.
func (c *Config) Validate() error {
	defaults := DefaultConfig()

	if c.Logging == nil {
		c.Logging = defaults.Logging
	}

	if c.Store == nil {
		c.Store = defaults.Store
	}

	if c.Events == nil {
		c.Events = defaults.Events
	}

	if c.Proxies == nil {
		c.Proxies = defaults.Proxies
	}

	if c.Accounts == nil {
		c.Accounts = defaults.Accounts
	}

	if c.Workers == nil {
		c.Workers = defaults.Workers
	}

	if c.DiscoveryInterval < 0 || c.ResetInterval < 0 || c.MaintainInterval < 0 {
		return ErrNegativeInterval
	}

	if c.DiscoveryInterval == 0 {
		c.DiscoveryInterval = defaults.DiscoveryInterval
	}

	if c.ResetInterval == 0 {
		c.ResetInterval = defaults.ResetInterval
	}

	if c.MaintainInterval == 0 {
		c.MaintainInterval = defaults.MaintainInterval
	}

	sections := []section{
		{"store", c.Store},
		{"events", c.Events},
		{"proxies", c.Proxies},
		{"accounts", c.Accounts},
		{"workers", c.Workers},
	}

	if c.Executor != nil {
		sections = append(sections, section{"executor", c.Executor})
	}

	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%w %s: %w", errInvalidSubsection, s.name, err)
		}
	}

	return nil
}
