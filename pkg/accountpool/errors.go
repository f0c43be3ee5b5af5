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

package accountpool

import "errors"

var (
	ErrNilConfig      = errors.New("accountpool: config is required")
	ErrNegativeWindow = errors.New("accountpool: recent_use_window must not be negative")
	ErrNegativeLimit  = errors.New("accountpool: limits must not be negative")
	ErrUnknownAccount = errors.New("accountpool: unknown account")
	ErrInvalidStatus  = errors.New("accountpool: invalid account status")
)
