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

package store

import (
	"context"
	"fmt"

	"github.com/carverauto/fleetsched/pkg/kv"
	"github.com/carverauto/fleetsched/pkg/logger"
)

// Backend names accepted in Config.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendKV       = "kv"
	BackendPostgres = "postgres"
)

// Config selects and configures the snapshot backend.
type Config struct {
	Backend   string          `json:"backend"`
	Dir       string          `json:"dir,omitempty"`
	KV        *kv.Config      `json:"kv,omitempty"`
	KeyPrefix string          `json:"key_prefix,omitempty"`
	Postgres  *PostgresConfig `json:"postgres,omitempty"`
}

// Validate checks that the selected backend has what it needs. An empty backend means memory.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendMemory:
		c.Backend = BackendMemory
	case BackendFile:
		if c.Dir == "" {
			return ErrDirRequired
		}
	case BackendKV:
		if c.KV == nil {
			return ErrKVConfigRequired
		}

		return c.KV.Validate()
	case BackendPostgres:
		if c.Postgres == nil {
			return ErrPostgresRequired
		}

		if c.Postgres.Host == "" {
			return ErrPostgresHostEmpty
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	return nil
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg *Config, log logger.Logger) (Store, error) {
	if cfg == nil {
		return NewMemoryStore(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendKV:
		nats, err := kv.NewNatsStore(ctx, cfg.KV, log)
		if err != nil {
			return nil, err
		}

		return NewKVStore(nats, cfg.KeyPrefix), nil
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.Postgres, log)
	default:
		return NewMemoryStore(), nil
	}
}
