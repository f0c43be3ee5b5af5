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

package proxypool

import "errors"

var (
	ErrNilConfig          = errors.New("proxypool: config is required")
	ErrInvalidRatio       = errors.New("proxypool: min_pool_ratio must be within [0,1]")
	ErrNegativeDuration   = errors.New("proxypool: durations must not be negative")
	ErrNegativeLimit      = errors.New("proxypool: limits must not be negative")
	ErrMalformedLine      = errors.New("proxypool: malformed proxy line")
	ErrInvalidPort        = errors.New("proxypool: invalid port")
	ErrUnsupportedScheme  = errors.New("proxypool: unsupported proxy scheme")
	ErrProbeStatus        = errors.New("proxypool: probe returned non-2xx status")
	ErrSupplierStatus     = errors.New("proxypool: supplier returned unexpected status")
	ErrSupplierTokenEmpty = errors.New("proxypool: webshare token is required")
)
