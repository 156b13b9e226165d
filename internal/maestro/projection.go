/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"

	"github.com/caravelradio/maestro/internal/events"
)

// visibleQueueLimit caps the published queue projection.
const visibleQueueLimit = 5

// placeholderTitle stands in for rows whose catalog lookup failed; the
// row is still shown rather than silently omitted.
const placeholderTitle = "(unavailable)"

// QueueEntry is one row of the display projection.
type QueueEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tag   string `json:"tag"`
	Unit  string `json:"unit,omitempty"`
}

// Snapshot returns the full-state payload sent to late joiners.
func (m *Maestro) Snapshot() events.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload := events.Payload{
		"currentTrack":   nil,
		"elapsedSeconds": m.st.Elapsed.Seconds(),
		"activeDeck":     string(m.st.Deck),
		"overlayRef":     nil,
	}
	if m.st.Current != nil {
		payload["currentTrack"] = trackPayload(m.st.Current.Track)
	}
	if m.st.OverlayRef != "" {
		payload["overlayRef"] = m.st.OverlayRef
	}
	return payload
}

// VisibleQueue resolves the public queue projection: up to five entries
// across the manual commercial, request, and program tiers in that order.
func (m *Maestro) VisibleQueue(ctx context.Context) []QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visibleQueue(ctx)
}

// visibleQueue does the work; caller holds the lock.
func (m *Maestro) visibleQueue(ctx context.Context) []QueueEntry {
	entries := make([]QueueEntry, 0, visibleQueueLimit)

	for _, id := range m.st.ManualCommercials {
		if len(entries) == visibleQueueLimit {
			return entries
		}
		entries = append(entries, m.queueEntry(ctx, id, "COMMERCIAL", ""))
	}

	for _, req := range m.st.Requests {
		if len(entries) == visibleQueueLimit {
			return entries
		}
		entries = append(entries, m.queueEntry(ctx, req.TrackID, req.Tag, req.OriginUnit))
	}

	for _, id := range m.st.Program {
		if len(entries) == visibleQueueLimit {
			return entries
		}
		entries = append(entries, m.queueEntry(ctx, id, "PROGRAM", ""))
	}

	return entries
}

func (m *Maestro) queueEntry(ctx context.Context, trackID, tag, unit string) QueueEntry {
	entry := QueueEntry{ID: trackID, Title: placeholderTitle, Tag: tag, Unit: unit}
	if track, err := m.catalog.GetTrack(ctx, trackID); err == nil {
		entry.Title = track.Title
	}
	return entry
}

// publishQueue broadcasts the current projection. Caller holds the lock.
func (m *Maestro) publishQueue(ctx context.Context) {
	m.bus.Publish(events.EventQueueUpdated, events.Payload{
		"entries": m.visibleQueue(ctx),
	})
}
