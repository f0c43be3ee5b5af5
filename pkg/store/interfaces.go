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

//go:generate mockgen -destination=mock_store.go -package=store github.com/carverauto/fleetsched/pkg/store Store

// Package store persists whole-pool snapshots under a fixed name per pool.
package store

import "context"

// Snapshot names, one per pool.
const (
	NameDevices  = "devices"
	NameAccounts = "accounts"
	NameProxies  = "proxies"
)

// Store reads and write-replaces named snapshot documents.
type Store interface {
	// Read returns the payload stored under name. The boolean is false if nothing was stored yet.
	Read(ctx context.Context, name string) ([]byte, bool, error)

	// Write replaces the payload stored under name.
	Write(ctx context.Context, name string, payload []byte) error

	// Close releases backend resources.
	Close() error
}
