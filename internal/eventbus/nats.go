/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "maestro.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSMirror publishes scheduler events onto NATS subjects, one subject
// per event type under the configured prefix.
type NATSMirror struct {
	conn   *nats.Conn
	bus    *events.Bus
	prefix string
	nodeID string
	logger zerolog.Logger
}

// NewNATSMirror connects to NATS and prepares the mirror.
func NewNATSMirror(cfg NATSConfig, bus *events.Bus, instanceID string, logger zerolog.Logger) (*NATSMirror, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("nats mirror connect: %w", err)
	}

	return &NATSMirror{
		conn:   conn,
		bus:    bus,
		prefix: cfg.SubjectPrefix,
		nodeID: nodeID(instanceID),
		logger: logger.With().Str("component", "eventbus-nats").Logger(),
	}, nil
}

// Run forwards every local event until context cancellation.
func (m *NATSMirror) Run(ctx context.Context) error {
	sub := m.bus.Subscribe(events.EventAny)
	defer m.bus.Unsubscribe(events.EventAny, sub)

	m.logger.Info().Str("prefix", m.prefix).Msg("nats event mirror started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub:
			if !ok {
				return nil
			}
			raw, err := encodeMessage(evt, m.nodeID)
			if err != nil {
				continue
			}
			if err := m.conn.Publish(m.subject(evt.Type), raw); err != nil {
				m.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("nats publish failed")
			}
		}
	}
}

// subject maps an event type to a NATS subject token.
func (m *NATSMirror) subject(eventType events.EventType) string {
	token := strings.ReplaceAll(string(eventType), ":", ".")
	return m.prefix + "." + token
}

// Close drains and releases the NATS connection.
func (m *NATSMirror) Close() error {
	if err := m.conn.Drain(); err != nil {
		m.conn.Close()
		return err
	}
	return nil
}
