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

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// ResourceKind names which pool a quarantine event came from.
type ResourceKind string

const (
	KindDevice  ResourceKind = "device"
	KindAccount ResourceKind = "account"
	KindProxy   ResourceKind = "proxy"
)

// QuarantineAction is the transition a quarantine event records.
type QuarantineAction string

const (
	ActionQuarantined QuarantineAction = "quarantined"
	ActionEvicted     QuarantineAction = "evicted"
	ActionRestored    QuarantineAction = "restored"
)

// QuarantineEvent is emitted whenever a device, account or proxy crosses its failure threshold
// or is brought back.
type QuarantineEvent struct {
	Kind      ResourceKind     `json:"kind"`
	Subject   string           `json:"subject"`
	Action    QuarantineAction `json:"action"`
	Failures  int              `json:"failures"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
