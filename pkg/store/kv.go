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
)

const defaultKeyPrefix = "snapshots"

// KVStore keeps snapshots in a key-value bucket under <prefix>.<name>.
type KVStore struct {
	kv     kv.KVStore
	prefix string
}

// NewKVStore wraps an open key-value store. An empty prefix selects "snapshots".
func NewKVStore(store kv.KVStore, prefix string) *KVStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &KVStore{kv: store, prefix: prefix}
}

func (k *KVStore) key(name string) (string, error) {
	if name == "" {
		return "", ErrInvalidName
	}

	return k.prefix + "." + name, nil
}

func (k *KVStore) Read(ctx context.Context, name string) ([]byte, bool, error) {
	key, err := k.key(name)
	if err != nil {
		return nil, false, err
	}

	payload, found, err := k.kv.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}

	return payload, found, nil
}

func (k *KVStore) Write(ctx context.Context, name string, payload []byte) error {
	key, err := k.key(name)
	if err != nil {
		return err
	}

	if err := k.kv.Put(ctx, key, payload, 0); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", name, err)
	}

	return nil
}

func (k *KVStore) Close() error {
	return k.kv.Close()
}

var _ Store = (*KVStore)(nil)
