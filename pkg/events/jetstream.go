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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	cloudEventSpecVersion = "1.0"
	eventTypePrefix       = "com.carverauto.fleetsched"
	eventSource           = "fleetsched/scheduler"
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher publishes quarantine events as CloudEvents to a JetStream stream.
type JetStreamPublisher struct {
	js     streamPublisher
	prefix string
	nc     *nats.Conn
	logger logger.Logger
}

// NewJetStreamPublisher publishes through an existing JetStream context.
func NewJetStreamPublisher(js jetstream.JetStream, subjectPrefix string, log logger.Logger) *JetStreamPublisher {
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	return &JetStreamPublisher{js: js, prefix: subjectPrefix, logger: logger.Component(log, "events")}
}

// Connect dials NATS, makes sure the stream captures the subject prefix and returns a publisher
// that owns the connection.
func Connect(ctx context.Context, cfg *Config, log logger.Logger) (*JetStreamPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log = logger.Component(log, "events")

	opts := []nats.Option{
		nats.Name("fleetsched-events"),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn().Err(err).Msg("NATS error")
		}),
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	nc, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, cfg.Stream, cfg.SubjectPrefix+".>"); err != nil {
		nc.Close()

		return nil, err
	}

	log.Info().Str("stream", cfg.Stream).Str("subject_prefix", cfg.SubjectPrefix).Msg("event publisher ready")

	return &JetStreamPublisher{js: js, prefix: cfg.SubjectPrefix, nc: nc, logger: log}, nil
}

func ensureStream(ctx context.Context, js jetstream.JetStream, name, subject string) error {
	stream, err := js.Stream(ctx, name)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", name, err)
		}

		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     name,
			Subjects: []string{subject},
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}

		return nil
	}

	streamCfg := stream.CachedInfo().Config
	subjects := ensureSubjectList(streamCfg.Subjects, subject)

	if len(subjects) == len(streamCfg.Subjects) {
		return nil
	}

	streamCfg.Subjects = subjects

	if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
		return fmt.Errorf("failed to add subject %s to stream %s: %w", subject, name, err)
	}

	return nil
}

// Subject returns the subject an event is published on: <prefix>.<kind>.<action>.
func (p *JetStreamPublisher) Subject(event *models.QuarantineEvent) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, event.Kind, event.Action)
}

func (p *JetStreamPublisher) PublishQuarantine(ctx context.Context, event *models.QuarantineEvent) error {
	if event == nil {
		return ErrNilEvent
	}

	ts := event.Timestamp
	subject := p.Subject(event)

	ce := models.CloudEvent{
		SpecVersion:     cloudEventSpecVersion,
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            fmt.Sprintf("%s.%s.%s", eventTypePrefix, event.Kind, event.Action),
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &ts,
		Data:            event,
	}

	payload, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal quarantine event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("failed to publish quarantine event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", ce.ID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("published quarantine event")

	return nil
}

// Close drains the connection if the publisher owns one.
func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}

	return p.nc.Drain()
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

// ensureSubjectList appends subject unless an existing pattern already covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether a NATS subject pattern (with * and > wildcards) covers subject.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, token := range pt {
		if token == ">" {
			return len(st) > i
		}

		if i >= len(st) {
			return false
		}

		if token != "*" && token != st[i] {
			return false
		}
	}

	return len(pt) == len(st)
}

var _ Publisher = (*JetStreamPublisher)(nil)
