/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventPlaying        EventType = "transition:playing"
	EventCrossfadeBegin EventType = "transition:crossfadeBegin"
	EventProgress       EventType = "progress"
	EventQueueUpdated   EventType = "queue:updated"
	EventStop           EventType = "stop"
	EventOverlayUpdated EventType = "overlay:updated"
	EventSnapshot       EventType = "state:snapshot"

	// EventAny subscribes to every event published on the bus.
	EventAny EventType = "*"
)

// Payload generic event payload.
type Payload map[string]any

// Event pairs a type with its payload.
type Event struct {
	Type    EventType
	Payload Payload
}

// Subscriber receives events.
type Subscriber chan Event

// Bus implements a simple in-process pubsub. Publish never blocks: a
// subscriber that cannot keep up loses events rather than stalling the
// scheduler tick.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for the event type. Use EventAny to
// receive everything.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends the payload to subscribers of the type and to wildcard
// subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	subs = append(subs, b.subs[EventAny]...)
	b.mu.RUnlock()

	evt := Event{Type: eventType, Payload: payload}
	for _, sub := range subs {
		select {
		case sub <- evt:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			b.subs[eventType] = subs
			close(sub)
			return
		}
	}
}
