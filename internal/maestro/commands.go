/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"
	"errors"
	"time"

	"github.com/caravelradio/maestro/internal/models"
)

var (
	// ErrNoCommercials indicates the commercial pool is empty.
	ErrNoCommercials = errors.New("no commercial available")

	// ErrProgramEmpty indicates the requested program has no tracks.
	ErrProgramEmpty = errors.New("program has no tracks")

	// ErrTrackUnavailable indicates the track cannot play right now.
	ErrTrackUnavailable = errors.New("track unavailable")
)

// Skip forces an immediate committing transition, bypassing the
// crossfade window. Emergency cut; no fade.
func (m *Maestro) Skip(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info().Msg("operator skip")
	m.transition(ctx)
}

// PlayCommercialNow pushes a commercial onto the manual queue, picking
// uniformly from the pool when no id is given, and forces a transition
// unless a crossfade is already underway.
func (m *Maestro) PlayCommercialNow(ctx context.Context, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if trackID == "" {
		if len(m.st.CommercialPool) == 0 {
			return ErrNoCommercials
		}
		trackID = m.st.CommercialPool[m.rng.Intn(len(m.st.CommercialPool))]
	}

	m.st.ManualCommercials = append(m.st.ManualCommercials, trackID)
	m.updateQueueGauges()
	m.publishQueue(ctx)

	if !m.st.Crossfading {
		m.transition(ctx)
	}
	return nil
}

// VetoRequest removes a pending request from the in-memory queue and
// persists the veto. Removal is a no-op when the id is no longer queued,
// e.g. because it already played.
func (m *Maestro) VetoRequest(ctx context.Context, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, req := range m.st.Requests {
		if req.ID == requestID {
			m.st.Requests = append(m.st.Requests[:i], m.st.Requests[i+1:]...)
			m.markRequest(requestID, models.RequestVetoed)
			m.updateQueueGauges()
			m.publishQueue(ctx)
			m.logger.Info().Str("request_id", requestID).Msg("request vetoed")
			return
		}
	}
	m.logger.Debug().Str("request_id", requestID).Msg("veto target not queued, ignoring")
}

// EnqueueRequest appends to the request queue and returns the 1-based
// position across the combined manual commercial and request queues at
// the moment of insertion.
func (m *Maestro) EnqueueRequest(ctx context.Context, req QueuedRequest) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.Requests = append(m.st.Requests, req)
	position := len(m.st.ManualCommercials) + len(m.st.Requests)
	m.updateQueueGauges()
	m.publishQueue(ctx)
	return position
}

// LoadProgramManual replaces the active program queue outside calendar
// control. Playback is interrupted only when both the manual commercial
// and request queues are empty.
func (m *Maestro) LoadProgramManual(ctx context.Context, programID string) error {
	ids := m.catalog.ProgramTrackIDs(ctx, programID)
	if len(ids) == 0 {
		return ErrProgramEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.st.Program = ids
	m.st.ProgramCalendarOwned = false
	m.st.CalendarProgramID = ""
	m.updateQueueGauges()
	m.publishQueue(ctx)

	m.logger.Info().Str("program_id", programID).Int("tracks", len(ids)).Msg("program loaded manually")

	if len(m.st.ManualCommercials) == 0 && len(m.st.Requests) == 0 {
		m.transition(ctx)
	}
	return nil
}

// RefreshCatalog re-reads the commercial pool and weekday fallback map.
func (m *Maestro) RefreshCatalog(ctx context.Context) {
	pool := m.catalog.RefreshCommercialPool(ctx)
	fallbacks := m.catalog.FallbackPrograms(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.CommercialPool = pool
	if fallbacks != nil {
		m.st.Fallbacks = fallbacks
	}
	m.logger.Info().Int("commercial_pool", len(pool)).Msg("catalog config refreshed")
}

// ValidateRequestTrack checks that a track may be queued for playback
// today. Used by intake before accepting a concrete pick.
func (m *Maestro) ValidateRequestTrack(ctx context.Context, trackID string) error {
	track, err := m.catalog.GetTrack(ctx, trackID)
	if err != nil {
		return ErrTrackUnavailable
	}
	if !track.Playable() || !track.AvailableOn(m.clock.Now().Weekday()) {
		return ErrTrackUnavailable
	}
	return nil
}

// Now returns the scheduler's clock reading; intake shares it so rate
// limit windows line up with playback time in tests.
func (m *Maestro) Now() time.Time {
	return m.clock.Now()
}
