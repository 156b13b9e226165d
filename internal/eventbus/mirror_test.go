/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/caravelradio/maestro/internal/events"
)

func TestEncodeMessage(t *testing.T) {
	evt := events.Event{
		Type:    events.EventPlaying,
		Payload: events.Payload{"deck": "A"},
	}

	raw, err := encodeMessage(evt, "node-1")
	if err != nil {
		t.Fatalf("encodeMessage: %v", err)
	}

	var decoded message
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != events.EventPlaying {
		t.Errorf("event type = %q, want transition:playing", decoded.EventType)
	}
	if decoded.NodeID != "node-1" {
		t.Errorf("node id = %q, want node-1", decoded.NodeID)
	}
	if decoded.MessageID == "" {
		t.Error("message id is empty")
	}
	if decoded.Timestamp.IsZero() {
		t.Error("timestamp is zero")
	}
	if decoded.Payload["deck"] != "A" {
		t.Errorf("payload = %v", decoded.Payload)
	}
}

func TestNodeIDDefaultsToUUID(t *testing.T) {
	if got := nodeID("configured"); got != "configured" {
		t.Errorf("nodeID = %q, want configured value", got)
	}
	generated := nodeID("")
	if generated == "" {
		t.Fatal("generated node id is empty")
	}
	if other := nodeID(""); other == generated {
		t.Error("generated node ids collide")
	}
}

func TestNATSSubjectMapping(t *testing.T) {
	m := &NATSMirror{prefix: "maestro.events", logger: zerolog.Nop()}

	tests := []struct {
		eventType events.EventType
		want      string
	}{
		{events.EventPlaying, "maestro.events.transition.playing"},
		{events.EventCrossfadeBegin, "maestro.events.transition.crossfadeBegin"},
		{events.EventStop, "maestro.events.stop"},
		{events.EventQueueUpdated, "maestro.events.queue.updated"},
	}

	for _, tt := range tests {
		if got := m.subject(tt.eventType); got != tt.want {
			t.Errorf("subject(%q) = %q, want %q", tt.eventType, got, tt.want)
		}
	}
}
