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
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultPostgresPort = 5432

	createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS fleet_snapshots (
	name       TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	selectSnapshot = `SELECT payload FROM fleet_snapshots WHERE name = $1`

	upsertSnapshot = `
INSERT INTO fleet_snapshots (name, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE
SET payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at`
)

// PostgresConfig describes the database snapshots are upserted into.
type PostgresConfig struct {
	Host               string            `json:"host"`
	Port               int               `json:"port,omitempty"`
	Database           string            `json:"database"`
	Username           string            `json:"username,omitempty"`
	Password           string            `json:"password,omitempty"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	ApplicationName    string            `json:"application_name,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	MaxConnLifetime    models.Duration   `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod  models.Duration   `json:"health_check_period,omitempty"`
	StatementTimeout   models.Duration   `json:"statement_timeout,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore upserts snapshots into the fleet_snapshots table.
type PostgresStore struct {
	db pgxConn
}

// NewPostgresStore dials the database, creates the snapshot table if needed and returns the store.
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig, log logger.Logger) (*PostgresStore, error) {
	if cfg == nil {
		return nil, ErrPostgresRequired
	}

	connURL, err := buildPostgresConnURL(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime.Std()
	}

	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod.Std()
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}

	if cfg.StatementTimeout > 0 {
		ms := cfg.StatementTimeout.Std() / time.Millisecond
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(int64(ms), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize pool: %w", err)
	}

	s := &PostgresStore{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	logger.Component(log, "store").Info().
		Str("host", cfg.Host).
		Int("port", portOf(cfg)).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("connected to postgres snapshot store")

	return s, nil
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("postgres: failed to create fleet_snapshots: %w", err)
	}

	return nil
}

func (p *PostgresStore) Read(ctx context.Context, name string) ([]byte, bool, error) {
	if name == "" {
		return nil, false, ErrInvalidName
	}

	var payload []byte

	err := p.db.QueryRow(ctx, selectSnapshot, name).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("postgres: failed to read snapshot %s: %w", name, err)
	}

	return payload, true, nil
}

func (p *PostgresStore) Write(ctx context.Context, name string, payload []byte) error {
	if name == "" {
		return ErrInvalidName
	}

	if _, err := p.db.Exec(ctx, upsertSnapshot, name, payload); err != nil {
		return fmt.Errorf("postgres: failed to write snapshot %s: %w", name, err)
	}

	return nil
}

func (p *PostgresStore) Close() error {
	p.db.Close()

	return nil
}

func portOf(cfg *PostgresConfig) int {
	if cfg.Port == 0 {
		return defaultPostgresPort
	}

	return cfg.Port
}

func buildPostgresConnURL(cfg *PostgresConfig) (*url.URL, error) {
	if cfg.Host == "" {
		return nil, ErrPostgresHostEmpty
	}

	connURL := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, portOf(cfg)),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	for k, v := range cfg.ExtraRuntimeParams {
		if k == "" {
			continue
		}

		query.Set(k, v)
	}

	connURL.RawQuery = query.Encode()

	return connURL, nil
}

var _ Store = (*PostgresStore)(nil)
