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
	"time"

	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultRecentUseWindow  = 12 * time.Hour
	defaultFailureThreshold = 3
	defaultCoolDownDays     = 7

	day = 24 * time.Hour
)

// Config controls assignment fairness and quarantine.
type Config struct {
	AccountsFile     string          `json:"accounts_file,omitempty"`
	RecentUseWindow  models.Duration `json:"recent_use_window,omitempty"`
	FailureThreshold int             `json:"failure_threshold,omitempty"`
	CoolDownDays     int             `json:"cool_down_days,omitempty"`
}

// DefaultConfig returns the standard settings.
func DefaultConfig() *Config {
	return &Config{
		RecentUseWindow:  models.Duration(defaultRecentUseWindow),
		FailureThreshold: defaultFailureThreshold,
		CoolDownDays:     defaultCoolDownDays,
	}
}

// Validate rejects negative values and fills zero fields with defaults.
func (c *Config) Validate() error {
	if c.RecentUseWindow < 0 {
		return ErrNegativeWindow
	}

	if c.FailureThreshold < 0 || c.CoolDownDays < 0 {
		return ErrNegativeLimit
	}

	if c.RecentUseWindow == 0 {
		c.RecentUseWindow = models.Duration(defaultRecentUseWindow)
	}

	if c.FailureThreshold == 0 {
		c.FailureThreshold = defaultFailureThreshold
	}

	if c.CoolDownDays == 0 {
		c.CoolDownDays = defaultCoolDownDays
	}

	return nil
}

// CoolDown is the configured quarantine cool-down.
func (c *Config) CoolDown() time.Duration {
	return time.Duration(c.CoolDownDays) * day
}
