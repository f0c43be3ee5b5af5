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

package events

const (
	defaultStream        = "FLEET_EVENTS"
	defaultSubjectPrefix = "fleet.quarantine"
)

// Config enables CloudEvent publishing to a JetStream stream.
type Config struct {
	Enabled       bool   `json:"enabled"`
	NATSURL       string `json:"nats_url,omitempty"`
	Domain        string `json:"domain,omitempty"`
	CredsFile     string `json:"creds_file,omitempty"`
	Stream        string `json:"stream,omitempty"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// Validate fills defaults. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.NATSURL == "" {
		return ErrNatsURLRequired
	}

	if c.Stream == "" {
		c.Stream = defaultStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaultSubjectPrefix
	}

	return nil
}
