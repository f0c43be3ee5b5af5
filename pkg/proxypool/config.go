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
	"fmt"
	"time"

	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultMinPoolRatio     = 0.20
	defaultReuseDelay       = 5 * time.Minute
	defaultRecheckInterval  = time.Hour
	defaultMaxFailures      = 5
	defaultSupplyLimit      = 50
	defaultProbeConcurrency = 8
	defaultProbeURL         = "https://httpbin.org/ip"
	defaultProbeTimeout     = 10 * time.Second
)

// Config controls leasing, health checking and replenishment.
//
// MinPoolRatio and ReuseDelay are taken as given (zero disables them); start from DefaultConfig
// to get the standard values. The remaining fields fall back to defaults when zero.
type Config struct {
	ProxiesFile      string          `json:"proxies_file,omitempty"`
	MinPoolRatio     float64         `json:"min_pool_ratio"`
	ReuseDelay       models.Duration `json:"reuse_delay"`
	RecheckInterval  models.Duration `json:"recheck_interval,omitempty"`
	MaxFailures      int             `json:"max_failures,omitempty"`
	SupplyLimit      int             `json:"supply_limit,omitempty"`
	ProbeConcurrency int             `json:"probe_concurrency,omitempty"`
	ProbeURL         string          `json:"probe_url,omitempty"`
	ProbeTimeout     models.Duration `json:"probe_timeout,omitempty"`
	Webshare         *WebshareConfig `json:"webshare,omitempty"`
}

// DefaultConfig returns the standard pool settings.
func DefaultConfig() *Config {
	return &Config{
		MinPoolRatio:     defaultMinPoolRatio,
		ReuseDelay:       models.Duration(defaultReuseDelay),
		RecheckInterval:  models.Duration(defaultRecheckInterval),
		MaxFailures:      defaultMaxFailures,
		SupplyLimit:      defaultSupplyLimit,
		ProbeConcurrency: defaultProbeConcurrency,
		ProbeURL:         defaultProbeURL,
		ProbeTimeout:     models.Duration(defaultProbeTimeout),
	}
}

// Validate rejects out-of-range values and fills zero fields with defaults.
func (c *Config) Validate() error {
	if c.MinPoolRatio < 0 || c.MinPoolRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidRatio, c.MinPoolRatio)
	}

	if c.ReuseDelay < 0 || c.RecheckInterval < 0 || c.ProbeTimeout < 0 {
		return ErrNegativeDuration
	}

	if c.MaxFailures < 0 || c.SupplyLimit < 0 || c.ProbeConcurrency < 0 {
		return ErrNegativeLimit
	}

	if c.RecheckInterval == 0 {
		c.RecheckInterval = models.Duration(defaultRecheckInterval)
	}

	if c.MaxFailures == 0 {
		c.MaxFailures = defaultMaxFailures
	}

	if c.SupplyLimit == 0 {
		c.SupplyLimit = defaultSupplyLimit
	}

	if c.ProbeConcurrency == 0 {
		c.ProbeConcurrency = defaultProbeConcurrency
	}

	if c.ProbeURL == "" {
		c.ProbeURL = defaultProbeURL
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if c.Webshare != nil {
		return c.Webshare.Validate()
	}

	return nil
}
