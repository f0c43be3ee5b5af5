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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultFileName is the configuration file looked up when a directory is given.
const DefaultFileName = "fleetsched.json"

var (
	errConfigRead   = errors.New("failed to read configuration")
	errConfigDecode = errors.New("failed to decode configuration")
	errConfigEmpty  = errors.New("configuration document is empty")
)

// FileConfigLoader loads configuration from a local JSON file. A directory path resolves to
// DefaultFileName inside it.
type FileConfigLoader struct{}

// Load implements ConfigLoader.
func (*FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Errorf("%w: %w", errConfigRead, err)
	}

	return decodeConfig(resolved, data, dst)
}

func resolveConfigPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errConfigRead, err)
	}

	if info.IsDir() {
		return filepath.Join(path, DefaultFileName), nil
	}

	return path, nil
}

// decodeConfig strictly decodes a single JSON document. Unknown keys are rejected so a
// misspelled section does not silently fall back to defaults.
func decodeConfig(source string, data []byte, dst interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s", errConfigEmpty, source)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w from %s: %w", errConfigDecode, source, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w from %s: trailing data after document", errConfigDecode, source)
	}

	return nil
}
