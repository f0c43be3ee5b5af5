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

package fleet

import "errors"

var (
	ErrNilConfig        = errors.New("fleet config is nil")
	ErrNegativeLimit    = errors.New("worker and retry limits must not be negative")
	ErrNegativeDuration = errors.New("duration must not be negative")
	ErrNilCollaborator  = errors.New("enumerator, proxy leaser and executor are required")
	ErrAlreadyStarted   = errors.New("device pool already started")
	ErrStopTimeout      = errors.New("timed out waiting for device workers to stop")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrSessionPanic     = errors.New("session executor panicked")
	ErrEnumerate        = errors.New("device enumeration failed")

	// ErrResourceUnavailable is returned by an executor that could not acquire a secondary
	// resource. The session is not counted as a failure and the device is retried after backoff.
	ErrResourceUnavailable = errors.New("session resource unavailable")
)
