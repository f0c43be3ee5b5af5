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

package models

import "time"

// Lease is one in-flight session: the device, its leased proxy and, once the composition layer
// has assigned one, an account.
type Lease struct {
	ID        string      `json:"id"`
	DeviceID  string      `json:"device_id"`
	Proxy     Proxy       `json:"proxy"`
	Account   *Credential `json:"account,omitempty"`
	StartedAt time.Time   `json:"started_at"`
}

// WithAccount returns a copy of the lease carrying cred.
func (l *Lease) WithAccount(cred Credential) *Lease {
	out := *l
	out.Account = &cred

	return &out
}
