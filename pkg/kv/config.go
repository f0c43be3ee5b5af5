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

package kv

import (
	"github.com/carverauto/fleetsched/pkg/models"
)

const defaultBucket = "fleetsched"

// Config describes the JetStream bucket snapshots are written to.
type Config struct {
	NATSURL        string          `json:"nats_url"`
	Bucket         string          `json:"bucket,omitempty"`
	Domain         string          `json:"domain,omitempty"`
	CredsFile      string          `json:"creds_file,omitempty"`
	BucketMaxBytes int64           `json:"bucket_max_bytes,omitempty"`
	BucketTTL      models.Duration `json:"bucket_ttl,omitempty"`
	BucketHistory  uint32          `json:"bucket_history,omitempty"`
}

// Validate checks required fields and fills in the default bucket.
func (c *Config) Validate() error {
	if c.NATSURL == "" {
		return ErrNatsURLRequired
	}

	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}

	if c.BucketHistory == 0 {
		c.BucketHistory = 1
	}

	return nil
}
