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

// AccountStatus is the eligibility of an account.
type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountProblematic AccountStatus = "problematic"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	return s == AccountActive || s == AccountProblematic
}

// Account is a credential plus its usage metadata.
type Account struct {
	Email               string        `json:"email"`
	Secret              string        `json:"secret"`
	Status              AccountStatus `json:"status"`
	LastUsedAt          *time.Time    `json:"last_used_at,omitempty"`
	AssignedDeviceID    string        `json:"assigned_device_id,omitempty"`
	LoginAttempts       int           `json:"login_attempts"`
	SuccessfulLogins    int           `json:"successful_logins"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	LastLoginAt         *time.Time    `json:"last_login_at,omitempty"`
	InUse               bool          `json:"in_use"`
}

// Credential is the part of an account handed to a session.
type Credential struct {
	Email  string `json:"email"`
	Secret string `json:"-"`
}

// Clone returns a deep copy.
func (a *Account) Clone() Account {
	out := *a
	out.LastUsedAt = cloneTime(a.LastUsedAt)
	out.LastLoginAt = cloneTime(a.LastLoginAt)

	return out
}
