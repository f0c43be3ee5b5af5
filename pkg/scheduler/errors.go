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

package scheduler

import "errors"

var (
	ErrNilConfig         = errors.New("scheduler config is nil")
	ErrExecutorRequired  = errors.New("a session executor is required: configure executor.command")
	ErrNegativeInterval  = errors.New("scheduler intervals must not be negative")
	ErrAlreadyStarted    = errors.New("scheduler already started")
	ErrReadOnly          = errors.New("a read-only scheduler cannot be started")
	ErrStopped           = errors.New("scheduler was stopped and cannot be restarted")
	errInvalidSubsection = errors.New("invalid configuration section")
)
