/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors locally published scheduler events to an
// external broker so display surfaces can subscribe without holding a
// connection to the scheduler process.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/google/uuid"
)

// Mirror forwards bus events to an external transport.
type Mirror interface {
	// Run consumes the local bus until context cancellation.
	Run(ctx context.Context) error
	Close() error
}

// message is the wire format published to the broker.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func encodeMessage(evt events.Event, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: evt.Type,
		Payload:   evt.Payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func nodeID(configured string) string {
	if configured != "" {
		return configured
	}
	return uuid.NewString()
}
