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

// DeviceStatus is the scheduling state of a device.
type DeviceStatus string

const (
	DeviceIdle    DeviceStatus = "idle"
	DeviceRunning DeviceStatus = "running"
	DeviceFailed  DeviceStatus = "failed"
)

// Device is one managed remote endpoint.
type Device struct {
	ID                  string       `json:"id"`
	Status              DeviceStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	CurrentLease        string       `json:"current_lease,omitempty"`
	LastConnected       *time.Time   `json:"last_connected,omitempty"`
	Capabilities        []string     `json:"capabilities,omitempty"`
}

// DeviceInfo is what fleet enumeration reports for a reachable device.
type DeviceInfo struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Clone returns a deep copy.
func (d *Device) Clone() Device {
	out := *d
	out.LastConnected = cloneTime(d.LastConnected)

	if d.Capabilities != nil {
		out.Capabilities = append([]string(nil), d.Capabilities...)
	}

	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	v := *t

	return &v
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}
