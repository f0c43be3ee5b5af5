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

import "errors"

var (
	ErrInvalidName       = errors.New("store: invalid snapshot name")
	ErrUnknownBackend    = errors.New("store: unknown backend")
	ErrDirRequired       = errors.New("store: file backend requires dir")
	ErrKVConfigRequired  = errors.New("store: kv backend requires kv config")
	ErrPostgresRequired  = errors.New("store: postgres backend requires postgres config")
	ErrPostgresHostEmpty = errors.New("store: postgres host is required")
)
