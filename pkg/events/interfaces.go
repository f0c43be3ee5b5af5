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

//go:generate mockgen -destination=mock_events.go -package=events github.com/carverauto/fleetsched/pkg/events Publisher

// Package events publishes quarantine transitions as CloudEvents.
package events

import (
	"context"

	"github.com/carverauto/fleetsched/pkg/models"
)

// Publisher delivers quarantine events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishQuarantine(ctx context.Context, event *models.QuarantineEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishQuarantine(context.Context, *models.QuarantineEvent) error { return nil }

var _ Publisher = Nop{}
