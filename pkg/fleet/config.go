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
	"fmt"
	"time"

	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultMaxWorkers        = 10
	defaultRetryLimit        = 3
	defaultPopTimeout        = time.Second
	defaultNoProxyBackoff    = 5 * time.Second
	defaultMaxNoProxyBackoff = time.Minute
	defaultStopTimeout       = 30 * time.Second
)

// Config controls the device worker pool.
type Config struct {
	MaxWorkers int `json:"max_workers,omitempty"`
	RetryLimit int `json:"retry_limit,omitempty"`

	// PopTimeout bounds how long an idle worker waits on the queue before re-checking shutdown.
	PopTimeout models.Duration `json:"pop_timeout,omitempty"`

	// NoProxyBackoff is the first wait after a worker fails to lease a resource. Repeated misses
	// grow it exponentially up to MaxNoProxyBackoff.
	NoProxyBackoff    models.Duration `json:"no_proxy_backoff,omitempty"`
	MaxNoProxyBackoff models.Duration `json:"max_no_proxy_backoff,omitempty"`

	StopTimeout models.Duration `json:"stop_timeout,omitempty"`

	ADB *ADBConfig `json:"adb,omitempty"`
}

// DefaultConfig returns the standard settings.
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:        defaultMaxWorkers,
		RetryLimit:        defaultRetryLimit,
		PopTimeout:        models.Duration(defaultPopTimeout),
		NoProxyBackoff:    models.Duration(defaultNoProxyBackoff),
		MaxNoProxyBackoff: models.Duration(defaultMaxNoProxyBackoff),
		StopTimeout:       models.Duration(defaultStopTimeout),
	}
}

// Validate rejects negative values and fills zero fields with defaults.
func (c *Config) Validate() error {
	if c.MaxWorkers < 0 || c.RetryLimit < 0 {
		return ErrNegativeLimit
	}

	for name, d := range map[string]models.Duration{
		"pop_timeout":          c.PopTimeout,
		"no_proxy_backoff":     c.NoProxyBackoff,
		"max_no_proxy_backoff": c.MaxNoProxyBackoff,
		"stop_timeout":         c.StopTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeDuration, name)
		}
	}

	if c.MaxWorkers == 0 {
		c.MaxWorkers = defaultMaxWorkers
	}

	if c.RetryLimit == 0 {
		c.RetryLimit = defaultRetryLimit
	}

	if c.PopTimeout == 0 {
		c.PopTimeout = models.Duration(defaultPopTimeout)
	}

	if c.NoProxyBackoff == 0 {
		c.NoProxyBackoff = models.Duration(defaultNoProxyBackoff)
	}

	if c.MaxNoProxyBackoff == 0 {
		c.MaxNoProxyBackoff = models.Duration(defaultMaxNoProxyBackoff)
	}

	if c.MaxNoProxyBackoff < c.NoProxyBackoff {
		c.MaxNoProxyBackoff = c.NoProxyBackoff
	}

	if c.StopTimeout == 0 {
		c.StopTimeout = models.Duration(defaultStopTimeout)
	}

	if c.ADB != nil {
		c.ADB.applyDefaults()
	}

	return nil
}
