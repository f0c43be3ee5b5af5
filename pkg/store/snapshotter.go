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
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Snapshotter writes versioned snapshots of one pool. Pools build the value and bump the version
// under their own lock, then call Save outside it; a version older than the last one written is
// dropped so a slow writer never replaces newer state.
type Snapshotter struct {
	store Store
	name  string

	mu      sync.Mutex
	written uint64
}

// NewSnapshotter binds a store to one snapshot name.
func NewSnapshotter(s Store, name string) *Snapshotter {
	return &Snapshotter{store: s, name: name}
}

// Name returns the snapshot name.
func (s *Snapshotter) Name() string { return s.name }

// Save encodes v and writes it unless a newer version was already written.
// It reports whether the write happened.
func (s *Snapshotter) Save(ctx context.Context, version uint64, v any) (bool, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s snapshot: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version <= s.written {
		return false, nil
	}

	if err := s.store.Write(ctx, s.name, payload); err != nil {
		return false, err
	}

	s.written = version

	return true, nil
}

// Load decodes the stored snapshot into v. It reports false if nothing was stored.
func (s *Snapshotter) Load(ctx context.Context, v any) (bool, error) {
	payload, found, err := s.store.Read(ctx, s.name)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("failed to decode %s snapshot: %w", s.name, err)
	}

	return true, nil
}

// Keyed indexes records by key, the document shape every pool snapshot is stored in. Records with
// an empty key are dropped.
func Keyed[T any](records []T, key func(*T) string) map[string]T {
	out := make(map[string]T, len(records))

	for i := range records {
		if k := key(&records[i]); k != "" {
			out[k] = records[i]
		}
	}

	return out
}

// Records flattens a keyed snapshot back into records ordered by key. The map key is
// authoritative and is written back with setKey.
func Records[T any](m map[string]T, setKey func(*T, string)) []T {
	out := make([]T, 0, len(m))

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if k == "" {
			continue
		}

		record := m[k]
		setKey(&record, k)
		out = append(out, record)
	}

	return out
}
