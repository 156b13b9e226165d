/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"
	"time"

	"github.com/caravelradio/maestro/internal/models"
)

// pick is one resolved candidate: a track id plus where it came from.
type pick struct {
	trackID string
	origin  Origin
	request QueuedRequest
}

// resolveNext pops the next pick from the highest non-empty tier.
// Caller holds the lock. Queue entries are dequeued here; the
// commercial counter is only applied once a pick actually commits.
//
// Tier order: manual commercial, auto commercial at threshold, request
// queue, active program, weekday fallback. Within a tier strict FIFO is
// the only ordering.
func (m *Maestro) resolveNext(ctx context.Context) (pick, bool) {
	if len(m.st.ManualCommercials) > 0 {
		id := m.st.ManualCommercials[0]
		m.st.ManualCommercials = m.st.ManualCommercials[1:]
		return pick{trackID: id, origin: OriginManualCommercial}, true
	}

	if m.st.SinceCommercial >= m.commercialEvery && len(m.st.CommercialPool) > 0 {
		id := m.st.CommercialPool[m.rng.Intn(len(m.st.CommercialPool))]
		return pick{trackID: id, origin: OriginAutoCommercial}, true
	}

	if len(m.st.Requests) > 0 {
		req := m.st.Requests[0]
		m.st.Requests = m.st.Requests[1:]
		return pick{trackID: req.TrackID, origin: OriginRequest, request: req}, true
	}

	if len(m.st.Program) > 0 {
		id := m.st.Program[0]
		m.st.Program = m.st.Program[1:]
		return pick{trackID: id, origin: OriginProgram}, true
	}

	// Fallback: load today's default program as the new active program,
	// not calendar-owned, and pop its first id.
	now := m.clock.Now()
	fallbackID, ok := m.st.Fallbacks[now.Weekday()]
	if !ok {
		if fallbackID, ok = m.catalog.FallbackProgramID(ctx, now.Weekday()); !ok {
			return pick{}, false
		}
	}
	ids := m.catalog.ProgramTrackIDs(ctx, fallbackID)
	if len(ids) == 0 {
		return pick{}, false
	}
	m.st.Program = ids[1:]
	m.st.ProgramCalendarOwned = false
	m.st.CalendarProgramID = ""
	return pick{trackID: ids[0], origin: OriginFallback}, true
}

// peekNext mirrors resolveNext without dequeuing anything. It walks the
// candidates in tier order and returns the first that resolves to a
// playable track, so a stale queue head never suppresses a crossfade
// announcement. Caller holds the lock.
func (m *Maestro) peekNext(ctx context.Context) (*models.Track, Origin, bool) {
	day := m.clock.Now().Weekday()

	for _, id := range m.st.ManualCommercials {
		if track := m.resolvePlayable(ctx, id, day); track != nil {
			return track, OriginManualCommercial, true
		}
	}

	if m.st.SinceCommercial >= m.commercialEvery && len(m.st.CommercialPool) > 0 {
		id := m.st.CommercialPool[m.rng.Intn(len(m.st.CommercialPool))]
		if track := m.resolvePlayable(ctx, id, day); track != nil {
			return track, OriginAutoCommercial, true
		}
	}

	for _, req := range m.st.Requests {
		if track := m.resolvePlayable(ctx, req.TrackID, day); track != nil {
			return track, OriginRequest, true
		}
	}

	for _, id := range m.st.Program {
		if track := m.resolvePlayable(ctx, id, day); track != nil {
			return track, OriginProgram, true
		}
	}

	fallbackID, ok := m.st.Fallbacks[day]
	if !ok {
		if fallbackID, ok = m.catalog.FallbackProgramID(ctx, day); !ok {
			return nil, "", false
		}
	}
	for _, id := range m.catalog.ProgramTrackIDs(ctx, fallbackID) {
		if track := m.resolvePlayable(ctx, id, day); track != nil {
			return track, OriginFallback, true
		}
	}

	return nil, "", false
}

// resolvePlayable fetches a track and filters out anything that must
// not play today. Misses come back nil, never an error.
func (m *Maestro) resolvePlayable(ctx context.Context, trackID string, day time.Weekday) *models.Track {
	track, err := m.catalog.GetTrack(ctx, trackID)
	if err != nil {
		return nil
	}
	if !track.Playable() || !track.AvailableOn(day) {
		return nil
	}
	return track
}
