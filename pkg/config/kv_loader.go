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

package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/carverauto/fleetsched/pkg/kv"
)

const kvKeyPrefix = "config/"

var errKVKeyNotFound = errors.New("key not found in KV store")

// KVConfigLoader loads configuration from a KV store.
type KVConfigLoader struct {
	store kv.KVStore
	key   string
}

// NewKVConfigLoader creates a KVConfigLoader. An empty key derives it from the file path.
func NewKVConfigLoader(store kv.KVStore, key string) *KVConfigLoader {
	return &KVConfigLoader{store: store, key: key}
}

// KVKey maps a config file path to its bucket key: "config/" plus the base name, with
// DefaultFileName standing in for a directory or empty path.
func KVKey(path string) string {
	base := filepath.Base(path)
	if path == "" || base == "." || base == string(filepath.Separator) || strings.HasSuffix(path, string(filepath.Separator)) {
		base = DefaultFileName
	}

	return kvKeyPrefix + base
}

// Load implements ConfigLoader.
func (k *KVConfigLoader) Load(ctx context.Context, path string, dst interface{}) error {
	key := k.key
	if key == "" {
		key = KVKey(path)
	}

	data, found, err := k.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: key %q: %w", errConfigRead, key, err)
	}

	if !found {
		return fmt.Errorf("%w: %q", errKVKeyNotFound, key)
	}

	return decodeConfig("kv:"+key, data, dst)
}
